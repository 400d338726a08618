package providers

import (
	"github.com/samber/do/v2"

	"github.com/gabriellymonarca/Ecotrack/internal/config"
	"github.com/gabriellymonarca/Ecotrack/internal/docstore"
	"github.com/gabriellymonarca/Ecotrack/internal/logger"
	"github.com/gabriellymonarca/Ecotrack/internal/relational"
)

// RelationalHandle wraps the SQLite store with shutdown capability.
type RelationalHandle struct {
	*relational.Store
}

// Shutdown implements do.Shutdownable.
func (h *RelationalHandle) Shutdown() error {
	return h.Close()
}

// ProvideRelationalStore provides the relational store holding fetched observations.
func ProvideRelationalStore(i do.Injector) (*RelationalHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	store, err := relational.Open(cfg.Data.RelationalPath, log.Component("relational").Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Relational store initialized", "path", cfg.Data.RelationalPath)

	return &RelationalHandle{Store: store}, nil
}

// DocumentStoreHandle wraps the Badger document store with shutdown capability.
type DocumentStoreHandle struct {
	*docstore.Store
}

// Shutdown implements do.Shutdownable.
func (h *DocumentStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideDocumentStore provides the document store holding the views.
func ProvideDocumentStore(i do.Injector) (*DocumentStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	store, err := docstore.Open(cfg.Data.DocumentsPath, log.Component("docstore").Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Document store initialized", "path", cfg.Data.DocumentsPath)

	return &DocumentStoreHandle{Store: store}, nil
}
