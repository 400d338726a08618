package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/gabriellymonarca/Ecotrack/internal/relational"
)

// LabelIndex wraps a Bleve index of classification labels.
//
// All public methods are safe for concurrent use. The mutex guards the
// index handle while Rebuild swaps it.
type LabelIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the label index.
type Options struct {
	DataPath string       // Directory for index storage
	Logger   *slog.Logger // Uses discard if nil
}

// LabelSource lists the labels stored in a lookup table.
type LabelSource interface {
	Labels(ctx context.Context, lookup string) ([]string, error)
}

// mappingVersion is bumped whenever the mapping changes, forcing a rebuild on open.
const mappingVersion = "1"

const batchSize = 500

// NewLabelIndex opens the index under DataPath, creating it when missing.
// An index that fails to open or carries another mapping version is recreated.
func NewLabelIndex(opts Options) (*LabelIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := os.MkdirAll(opts.DataPath, 0o750); err != nil {
		return nil, fmt.Errorf("create search dir: %w", err)
	}

	indexPath := filepath.Join(opts.DataPath, "labels.bleve")
	versionPath := filepath.Join(opts.DataPath, "labels.version")

	var index bleve.Index
	needsRebuild := false

	_, statErr := os.Stat(indexPath)
	indexExists := statErr == nil

	if indexExists {
		existing, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil:
			logger.Info("label index has no version file, rebuilding", "new_version", mappingVersion)
			needsRebuild = true
		case string(existing) != mappingVersion:
			logger.Info("label index mapping version changed, rebuilding",
				"old_version", string(existing),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		}
	}

	if indexExists && !needsRebuild {
		var err error
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open label index, recreating", "path", indexPath, "error", err)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove old index: %w", err)
		}
		index = nil
	}

	if index == nil {
		var err error
		index, err = newIndex(indexPath)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o600); err != nil {
			logger.Warn("failed to write label index version file", "error", err)
		}
		logger.Info("created label index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened label index", "path", indexPath)
	}

	return &LabelIndex{
		index:  index,
		path:   indexPath,
		logger: logger,
	}, nil
}

func newIndex(path string) (bleve.Index, error) {
	m, err := buildIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("build mapping: %w", err)
	}
	index, err := bleve.New(path, m)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return index, nil
}

// Close closes the index.
func (s *LabelIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexDocuments indexes documents in batches of 500.
func (s *LabelIndex) IndexDocuments(docs []*LabelDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := 0; i < len(docs); i += batchSize {
		end := min(i+batchSize, len(docs))

		batch := s.index.NewBatch()
		for _, doc := range docs[i:end] {
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}

		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// DeleteDocuments removes documents by id.
func (s *LabelIndex) DeleteDocuments(ids []string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch := s.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return s.index.Batch(batch)
}

// DocumentCount returns the number of indexed labels.
func (s *LabelIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the index and creates an empty one in its place.
// It holds the write lock, so searches block until it returns.
func (s *LabelIndex) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}

	index, err := newIndex(s.path)
	if err != nil {
		return err
	}

	s.index = index
	s.logger.Info("rebuilt label index", "path", s.path)
	return nil
}

// Sync reindexes every label of the given lookups and removes labels that
// disappeared since the last sync. It returns the number of indexed labels.
func (s *LabelIndex) Sync(ctx context.Context, source LabelSource, lookups []relational.LookupRef) (int, error) {
	var docs []*LabelDocument
	keep := make(map[string]struct{})

	for _, l := range lookups {
		labels, err := source.Labels(ctx, l.Table)
		if err != nil {
			return 0, fmt.Errorf("list %s labels: %w", l.Table, err)
		}
		for _, label := range labels {
			doc := NewLabelDocument(l.Sector, l.Kind, label)
			if _, dup := keep[doc.ID]; dup {
				continue
			}
			keep[doc.ID] = struct{}{}
			docs = append(docs, doc)
		}
	}

	stale, err := s.staleIDs(ctx, keep)
	if err != nil {
		return 0, err
	}
	if len(stale) > 0 {
		if err := s.DeleteDocuments(stale); err != nil {
			return 0, fmt.Errorf("delete stale labels: %w", err)
		}
	}

	if err := s.IndexDocuments(docs); err != nil {
		return 0, err
	}

	s.logger.Info("label index synced", "labels", len(docs), "removed", len(stale))
	return len(docs), nil
}

// staleIDs returns indexed ids that are not in keep.
func (s *LabelIndex) staleIDs(ctx context.Context, keep map[string]struct{}) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total, err := s.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("count labels: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(total), 0, false)
	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("list indexed labels: %w", err)
	}

	var stale []string
	for _, hit := range res.Hits {
		if _, ok := keep[hit.ID]; !ok {
			stale = append(stale, hit.ID)
		}
	}
	return stale, nil
}
