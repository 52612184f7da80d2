// Package memory provides an in-process AnnotationStore used in development
// and tests. Same map-plus-RWMutex shape as the DI cache; not durable.
package memory

import (
	"context"
	"sync"

	"phenotag-backend/application/ports"
	"phenotag-backend/domain/core/entities"
)

// AnnotationStore keeps one annotation set per image id in memory
type AnnotationStore struct {
	mu   sync.RWMutex
	sets map[string]entities.AnnotationSet
}

// NewAnnotationStore creates an empty in-memory store
func NewAnnotationStore() *AnnotationStore {
	return &AnnotationStore{
		sets: make(map[string]entities.AnnotationSet),
	}
}

var _ ports.AnnotationStore = (*AnnotationStore)(nil)

// Get returns a deep copy of the stored set, or (nil, nil) when absent
func (s *AnnotationStore) Get(ctx context.Context, imageID string) (*entities.AnnotationSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[imageID]
	if !ok {
		return nil, nil
	}
	out := set.Clone()
	return &out, nil
}

// Save stores a deep copy of the set
func (s *AnnotationStore) Save(ctx context.Context, imageID string, set entities.AnnotationSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored := set.Clone()
	stored.ImageID = imageID
	s.sets[imageID] = stored
	return nil
}

// Len returns the number of stored sets
func (s *AnnotationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sets)
}
