package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"go.uber.org/zap"
)

type IndexingServiceInterface interface {
	RegisterMapping(indexName string, m mapping.IndexMapping)
	BulkIndexDocuments(indexName string, documents map[string]interface{}) error
	DeleteDocument(indexName, id string) error
	Search(indexName string, req *bleve.SearchRequest) (*bleve.SearchResult, error)
	GetIndex(indexName string) (bleve.Index, error)
	DeleteIndex(indexName string) error
	IndexExists(indexName string) (bool, error)
	DeleteAllIndices() error
	Close() error
}

// IndexingService owns the open bleve indexes. An empty basePath keeps every
// index in memory.
type IndexingService struct {
	mu       sync.Mutex
	indexes  map[string]bleve.Index
	mappings map[string]mapping.IndexMapping
	logger   *zap.Logger
	basePath string
}

func NewIndexingService(logger *zap.Logger, basePath string) *IndexingService {
	return &IndexingService{
		indexes:  make(map[string]bleve.Index),
		mappings: make(map[string]mapping.IndexMapping),
		logger:   logger,
		basePath: basePath,
	}
}

// RegisterMapping sets the mapping used when indexName is created. Indexes
// opened from disk keep the mapping they were built with.
func (s *IndexingService) RegisterMapping(indexName string, m mapping.IndexMapping) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[indexName] = m
}

func (s *IndexingService) GetIndex(indexName string) (bleve.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateIndex(indexName)
}

func (s *IndexingService) indexPath(indexName string) string {
	return filepath.Join(s.basePath, indexName+".bleve")
}

// getOrCreateIndex must be called with mu held.
func (s *IndexingService) getOrCreateIndex(indexName string) (bleve.Index, error) {
	if idx, ok := s.indexes[indexName]; ok {
		return idx, nil
	}

	m, ok := s.mappings[indexName]
	if !ok {
		m = bleve.NewIndexMapping()
	}

	if s.basePath == "" {
		idx, err := bleve.NewMemOnly(m)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory index %s: %w", indexName, err)
		}
		s.indexes[indexName] = idx
		return idx, nil
	}

	fullPath := s.indexPath(indexName)
	idx, err := bleve.Open(fullPath)
	if err != nil {
		if err := os.MkdirAll(s.basePath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory %s: %w", s.basePath, err)
		}
		idx, err = bleve.New(fullPath, m)
		if err != nil {
			return nil, fmt.Errorf("failed to create index %s: %w", fullPath, err)
		}
	}

	s.indexes[indexName] = idx
	return idx, nil
}

// Search runs req and asks for every stored field.
func (s *IndexingService) Search(indexName string, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	idx, err := s.GetIndex(indexName)
	if err != nil {
		s.logger.Error("Could not get or create index", zap.Error(err))
		return nil, err
	}

	if len(req.Fields) == 0 {
		req.Fields = []string{"*"}
	}

	searchResult, err := idx.Search(req)
	if err != nil {
		s.logger.Error("Search failed", zap.String("index_name", indexName), zap.Error(err))
		return nil, err
	}

	return searchResult, nil
}

func (s *IndexingService) BulkIndexDocuments(indexName string, documents map[string]interface{}) error {
	if len(documents) == 0 {
		return nil
	}
	idx, err := s.GetIndex(indexName)
	if err != nil {
		s.logger.Error("Could not get or create index", zap.Error(err))
		return err
	}

	batch := idx.NewBatch()
	for id, doc := range documents {
		if err := batch.Index(id, doc); err != nil {
			s.logger.Error("Failed to add doc to batch", zap.String("id", id), zap.Error(err))
			return err
		}
	}

	if err := idx.Batch(batch); err != nil {
		s.logger.Error("Failed to execute batch", zap.Error(err))
		return err
	}

	s.logger.Debug("Bulk indexed documents", zap.String("index_name", indexName), zap.Int("count", len(documents)))
	return nil
}

func (s *IndexingService) DeleteDocument(indexName, id string) error {
	idx, err := s.GetIndex(indexName)
	if err != nil {
		s.logger.Error("Could not get or create index", zap.Error(err))
		return err
	}

	if err := idx.Delete(id); err != nil {
		s.logger.Error("Failed to delete document", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *IndexingService) DeleteIndex(indexName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteIndex(indexName)
}

func (s *IndexingService) deleteIndex(indexName string) error {
	idx, exists := s.indexes[indexName]
	if !exists {
		return fmt.Errorf("index %s not found in memory", indexName)
	}

	if err := idx.Close(); err != nil {
		s.logger.Error("Failed to close index before deletion",
			zap.String("index_name", indexName),
			zap.Error(err))
		return fmt.Errorf("failed to close index: %w", err)
	}
	delete(s.indexes, indexName)

	if s.basePath == "" {
		return nil
	}

	fullPath := s.indexPath(indexName)
	if err := os.RemoveAll(fullPath); err != nil {
		s.logger.Error("Failed to delete index files",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete index files: %w", err)
	}

	s.logger.Info("Successfully deleted index",
		zap.String("index_name", indexName))
	return nil
}

func (s *IndexingService) IndexExists(indexName string) (bool, error) {
	s.mu.Lock()
	_, open := s.indexes[indexName]
	s.mu.Unlock()
	if open {
		return true, nil
	}
	if s.basePath == "" {
		return false, nil
	}

	_, err := os.Stat(s.indexPath(indexName))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *IndexingService) DeleteAllIndices() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errorsOccurred []error
	var successCount int

	for indexName := range s.indexes {
		if err := s.deleteIndex(indexName); err != nil {
			errorsOccurred = append(errorsOccurred, err)
			continue
		}
		successCount++
	}

	if s.basePath != "" {
		// Index directories left behind by an earlier run.
		files, err := filepath.Glob(filepath.Join(s.basePath, "*.bleve"))
		if err != nil {
			s.logger.Error("Failed to scan for index files",
				zap.String("path", s.basePath),
				zap.Error(err))
			return fmt.Errorf("failed to scan index directory: %w", err)
		}
		for _, file := range files {
			if err := os.RemoveAll(file); err != nil {
				errorsOccurred = append(errorsOccurred, err)
				continue
			}
			successCount++
			s.logger.Info("Deleted orphaned index files",
				zap.String("index_name", strings.TrimSuffix(filepath.Base(file), ".bleve")))
		}
	}

	if len(errorsOccurred) > 0 {
		s.logger.Error("Some indices failed to delete",
			zap.Int("success_count", successCount),
			zap.Int("error_count", len(errorsOccurred)))
		return fmt.Errorf("%d errors occurred while deleting indices (%d succeeded)",
			len(errorsOccurred), successCount)
	}

	s.logger.Info("All indices deleted successfully",
		zap.Int("count", successCount))
	return nil
}

// Close closes every open index.
func (s *IndexingService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for name, idx := range s.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close index %s: %w", name, err)
		}
		delete(s.indexes, name)
	}
	return firstErr
}
