// Package sequence owns the per-(plant, view angle) time series of frames and
// the two propagation rules: bulk-fill from the first frame, and forward
// re-propagation from a correction point bounded by the next manual adjustment.
package sequence

import (
	"context"
	"sort"
	"sync"
	"time"

	"phenotag-backend/application/ports"
	"phenotag-backend/domain/core/entities"
	"phenotag-backend/domain/core/valueobjects"
	"phenotag-backend/domain/events"
	pkgerrors "phenotag-backend/pkg/errors"

	"go.uber.org/zap"
)

// Record is the per-frame bookkeeping entry
type Record struct {
	ImageID            string               `json:"imageId"`
	Annotations        []entities.Annotation `json:"annotations"`
	Timestamp          time.Time            `json:"timestamp"`
	IsManualAdjustment bool                 `json:"isManualAdjustment"`
	InheritedFrom      string               `json:"inheritedFrom,omitempty"`
}

// Info describes an initialized sequence
type Info struct {
	OrderedImageIDs []string `json:"orderedImageIds"`
	TotalImages     int      `json:"totalImages"`
	FirstImageID    string   `json:"firstImageId"`
	LastImageID     string   `json:"lastImageId"`
}

// SaveResult reports what a save did
type SaveResult struct {
	SavedImageID       string `json:"savedImageId"`
	PropagatedCount    int    `json:"propagatedCount"`
	IsFirstAnnotation  bool   `json:"isFirstAnnotation"`
	IsManualAdjustment bool   `json:"isManualAdjustment"`
}

// Metadata describes one frame's annotation state
type Metadata struct {
	HasAnnotations     bool   `json:"hasAnnotations"`
	IsManualAdjustment bool   `json:"isManualAdjustment"`
	InheritedFrom      string `json:"inheritedFrom,omitempty"`
	ImageIndex         int    `json:"imageIndex"`
	IsFirstImage       bool   `json:"isFirstImage"`
	IsLastImage        bool   `json:"isLastImage"`
}

// Stats summarizes annotation coverage across a sequence
type Stats struct {
	Total           int         `json:"total"`
	Annotated       int         `json:"annotated"`
	Manual          int         `json:"manual"`
	Inherited       int         `json:"inherited"`
	CoveragePercent float64     `json:"coveragePercent"`
	PerImage        []ImageStat `json:"perImage"`
}

// ImageStat is one frame's row in the coverage summary, in sequence order
type ImageStat struct {
	ImageID            string `json:"imageId"`
	HasAnnotations     bool   `json:"hasAnnotations"`
	IsManualAdjustment bool   `json:"isManualAdjustment"`
	InheritedFrom      string `json:"inheritedFrom,omitempty"`
}

// state is the bookkeeping for one initialized sequence
type state struct {
	images  []entities.Image
	index   map[string]int
	records map[string]*Record
	manual  map[string]struct{}
}

// Sequencer manages frame sequences and distributes annotation sets forward
// through them. Callers serialize saves per sequence; the internal mutex only
// protects the tables, it does not order concurrent saves.
type Sequencer struct {
	mu        sync.Mutex
	sequences map[valueobjects.SequenceKey]*state
	store     ports.AnnotationStore
	emitter   *events.Emitter
	logger    *zap.Logger
}

// NewSequencer creates a sequencer backed by the given store
func NewSequencer(store ports.AnnotationStore, emitter *events.Emitter, logger *zap.Logger) *Sequencer {
	return &Sequencer{
		sequences: make(map[valueobjects.SequenceKey]*state),
		store:     store,
		emitter:   emitter,
		logger:    logger,
	}
}

// Initialize builds (or destructively rebuilds) the sequence for a plant/view
// pair. Input images need not be pre-sorted; they are ordered by capture time.
// Re-initializing resets all bookkeeping including manual-adjustment flags.
func (s *Sequencer) Initialize(plantID, viewAngle string, images []entities.Image) (Info, error) {
	key, err := valueobjects.NewSequenceKey(plantID, viewAngle)
	if err != nil {
		return Info{}, pkgerrors.NewValidationError(err.Error())
	}
	if len(images) == 0 {
		return Info{}, pkgerrors.NewValidationError("sequence must contain at least one image")
	}

	sorted := make([]entities.Image, len(images))
	copy(sorted, images)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CaptureTime.Before(sorted[j].CaptureTime)
	})

	st := &state{
		images:  sorted,
		index:   make(map[string]int, len(sorted)),
		records: make(map[string]*Record, len(sorted)),
		manual:  make(map[string]struct{}),
	}
	for i, img := range sorted {
		st.index[img.ID] = i
	}

	s.mu.Lock()
	s.sequences[key] = st
	s.mu.Unlock()

	s.logger.Info("sequence initialized",
		zap.String("sequence", key.String()),
		zap.Int("totalImages", len(sorted)),
	)

	ids := make([]string, len(sorted))
	for i, img := range sorted {
		ids[i] = img.ID
	}
	return Info{
		OrderedImageIDs: ids,
		TotalImages:     len(ids),
		FirstImageID:    ids[0],
		LastImageID:     ids[len(ids)-1],
	}, nil
}

// Save records an annotation set on a frame and propagates it forward.
//
// A save on the first frame bulk-fills: every later non-manual frame receives a
// deep copy, and manually-adjusted frames are skipped without stopping the
// sweep. A save on any later frame overwrites consecutive non-manual frames and
// stops hard at the first manually-adjusted frame.
//
// The source frame's write to the store completes before propagation begins, so
// operator work is never lost to a propagation failure. A store failure on a
// propagated frame is logged and skipped; the in-memory record still updates so
// the sequence view stays consistent.
func (s *Sequencer) Save(ctx context.Context, plantID, viewAngle, imageID string, annotations []entities.Annotation, isManualAdjustment bool) (SaveResult, error) {
	key, st, err := s.lookup(plantID, viewAngle)
	if err != nil {
		return SaveResult{}, err
	}

	s.mu.Lock()
	idx, ok := st.index[imageID]
	if !ok {
		s.mu.Unlock()
		return SaveResult{}, pkgerrors.NewImageNotInSequenceError(plantID, viewAngle, imageID)
	}
	isFirst := !s.hasAnyAnnotationsLocked(st)
	s.mu.Unlock()

	saved := entities.CloneAnnotations(annotations)

	// Persist the source frame first.
	set := entities.AnnotationSet{
		ImageID:      imageID,
		Annotations:  entities.CloneAnnotations(saved),
		LastModified: time.Now(),
	}
	if err := s.store.Save(ctx, imageID, set); err != nil {
		return SaveResult{}, err
	}

	s.mu.Lock()
	st.records[imageID] = &Record{
		ImageID:            imageID,
		Annotations:        saved,
		Timestamp:          time.Now(),
		IsManualAdjustment: isManualAdjustment,
	}
	if isManualAdjustment {
		// Monotone: manual flags are never cleared by propagation.
		st.manual[imageID] = struct{}{}
	}

	var targets []string
	if idx == 0 {
		targets = s.bulkFillTargetsLocked(st)
	} else {
		targets = s.boundedTargetsLocked(st, idx)
	}
	for _, targetID := range targets {
		st.records[targetID] = &Record{
			ImageID:       targetID,
			Annotations:   entities.CloneAnnotations(saved),
			Timestamp:     time.Now(),
			InheritedFrom: imageID,
		}
	}
	s.mu.Unlock()

	propagated := 0
	for _, targetID := range targets {
		targetSet := entities.AnnotationSet{
			ImageID:      targetID,
			Annotations:  entities.CloneAnnotations(saved),
			LastModified: time.Now(),
		}
		if err := s.store.Save(ctx, targetID, targetSet); err != nil {
			s.logger.Warn("propagated save failed",
				zap.String("sequence", key.String()),
				zap.String("sourceImageId", imageID),
				zap.String("targetImageId", targetID),
				zap.Error(err),
			)
			continue
		}
		propagated++
	}

	s.logger.Info("annotations saved",
		zap.String("sequence", key.String()),
		zap.String("imageId", imageID),
		zap.Bool("manual", isManualAdjustment),
		zap.Int("propagated", propagated),
	)
	if s.emitter != nil && len(targets) > 0 {
		s.emitter.Emit(ctx, events.NewAnnotationsPropagated(plantID, viewAngle, imageID, propagated))
	}

	return SaveResult{
		SavedImageID:       imageID,
		PropagatedCount:    propagated,
		IsFirstAnnotation:  isFirst,
		IsManualAdjustment: isManualAdjustment,
	}, nil
}

// Annotations returns the frame's current annotations, empty if none
func (s *Sequencer) GetAnnotations(plantID, viewAngle, imageID string) []entities.Annotation {
	_, st, err := s.lookup(plantID, viewAngle)
	if err != nil {
		return []entities.Annotation{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := st.records[imageID]
	if !ok {
		return []entities.Annotation{}
	}
	return entities.CloneAnnotations(rec.Annotations)
}

// Metadata returns the frame's annotation metadata, or nil for unknown frames
func (s *Sequencer) GetMetadata(plantID, viewAngle, imageID string) *Metadata {
	_, st, err := s.lookup(plantID, viewAngle)
	if err != nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := st.index[imageID]
	if !ok {
		return nil
	}

	meta := &Metadata{
		ImageIndex:   idx,
		IsFirstImage: idx == 0,
		IsLastImage:  idx == len(st.images)-1,
	}
	if rec, ok := st.records[imageID]; ok {
		meta.HasAnnotations = len(rec.Annotations) > 0
		meta.IsManualAdjustment = rec.IsManualAdjustment
		meta.InheritedFrom = rec.InheritedFrom
	}
	return meta
}

// GetStats summarizes coverage for a sequence
func (s *Sequencer) GetStats(plantID, viewAngle string) (Stats, error) {
	_, st, err := s.lookup(plantID, viewAngle)
	if err != nil {
		return Stats{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{Total: len(st.images), PerImage: make([]ImageStat, 0, len(st.images))}
	for _, img := range st.images {
		row := ImageStat{ImageID: img.ID}
		if rec, ok := st.records[img.ID]; ok && len(rec.Annotations) > 0 {
			row.HasAnnotations = true
			row.IsManualAdjustment = rec.IsManualAdjustment
			row.InheritedFrom = rec.InheritedFrom
			stats.Annotated++
			if rec.IsManualAdjustment {
				stats.Manual++
			}
			if rec.InheritedFrom != "" {
				stats.Inherited++
			}
		}
		stats.PerImage = append(stats.PerImage, row)
	}
	if stats.Total > 0 {
		stats.CoveragePercent = float64(stats.Annotated) / float64(stats.Total) * 100
	}
	return stats, nil
}

// OrderedImages implements ports.SequenceReader
func (s *Sequencer) OrderedImages(plantID, viewAngle string) ([]entities.Image, error) {
	_, st, err := s.lookup(plantID, viewAngle)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.Image, len(st.images))
	copy(out, st.images)
	return out, nil
}

func (s *Sequencer) lookup(plantID, viewAngle string) (valueobjects.SequenceKey, *state, error) {
	key, err := valueobjects.NewSequenceKey(plantID, viewAngle)
	if err != nil {
		return valueobjects.SequenceKey{}, nil, pkgerrors.NewValidationError(err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sequences[key]
	if !ok {
		return valueobjects.SequenceKey{}, nil, pkgerrors.NewNotInitializedError(plantID, viewAngle)
	}
	return key, st, nil
}

func (s *Sequencer) hasAnyAnnotationsLocked(st *state) bool {
	for _, rec := range st.records {
		if len(rec.Annotations) > 0 {
			return true
		}
	}
	return false
}

// bulkFillTargetsLocked returns every later frame not flagged manual. Manual
// frames are skipped but do not stop the sweep.
func (s *Sequencer) bulkFillTargetsLocked(st *state) []string {
	var targets []string
	for _, img := range st.images[1:] {
		if _, manual := st.manual[img.ID]; manual {
			continue
		}
		targets = append(targets, img.ID)
	}
	return targets
}

// boundedTargetsLocked returns consecutive non-manual frames after idx,
// stopping hard at the first manually-adjusted frame.
func (s *Sequencer) boundedTargetsLocked(st *state, idx int) []string {
	var targets []string
	for _, img := range st.images[idx+1:] {
		if _, manual := st.manual[img.ID]; manual {
			break
		}
		targets = append(targets, img.ID)
	}
	return targets
}
