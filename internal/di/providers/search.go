package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/gabriellymonarca/Ecotrack/internal/config"
	"github.com/gabriellymonarca/Ecotrack/internal/logger"
	"github.com/gabriellymonarca/Ecotrack/internal/pipeline"
	"github.com/gabriellymonarca/Ecotrack/internal/search"
)

// SearchIndexHandle wraps the label index with shutdown capability.
type SearchIndexHandle struct {
	*search.LabelIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve label index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewLabelIndex(search.Options{
		DataPath: cfg.Data.SearchPath,
		Logger:   log.Component("search").Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Label index initialized", "labels", docCount)

	return &SearchIndexHandle{LabelIndex: index}, nil
}

// SyncLabels reindexes every lookup label from the relational store.
func SyncLabels(ctx context.Context, i do.Injector) error {
	index := do.MustInvoke[*SearchIndexHandle](i)
	rel := do.MustInvoke[*RelationalHandle](i)
	orch := do.MustInvoke[*pipeline.Orchestrator](i)

	_, err := index.Sync(ctx, rel.Store, orch.Tables().Lookups())
	return err
}

// TriggerLabelSyncIfNeeded fills an empty index from labels stored by
// earlier runs. Should be called after all services are wired.
func TriggerLabelSyncIfNeeded(i do.Injector) {
	index := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	if count, _ := index.DocumentCount(); count > 0 {
		return
	}

	go func() {
		if err := SyncLabels(context.Background(), i); err != nil {
			log.Error("Initial label sync failed", "error", err)
			return
		}
		count, _ := index.DocumentCount()
		log.Info("Initial label sync completed", "labels", count)
	}()
}
