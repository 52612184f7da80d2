package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"phenotag-backend/domain/core/entities"
	"phenotag-backend/domain/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStore is an in-memory AnnotationStore with fault injection. gate, when
// set, blocks Get until the channel closes so tests can hold the drain loop
// open while more operations queue up.
type fakeStore struct {
	mu     sync.Mutex
	sets   map[string]entities.AnnotationSet
	saves  []string
	failOn map[string]error
	gate   chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sets:   make(map[string]entities.AnnotationSet),
		failOn: make(map[string]error),
	}
}

func (f *fakeStore) Get(ctx context.Context, imageID string) (*entities.AnnotationSet, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[imageID]; ok {
		return nil, err
	}
	set, ok := f.sets[imageID]
	if !ok {
		return nil, nil
	}
	clone := set.Clone()
	return &clone, nil
}

func (f *fakeStore) Save(ctx context.Context, imageID string, set entities.AnnotationSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[imageID]; ok {
		return err
	}
	f.sets[imageID] = set.Clone()
	f.saves = append(f.saves, imageID)
	return nil
}

func (f *fakeStore) savedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.saves))
	copy(out, f.saves)
	return out
}

func (f *fakeStore) annotations(imageID string) []entities.Annotation {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.sets[imageID]
	if !ok {
		return nil
	}
	return entities.CloneAnnotations(set.Annotations)
}

// fakeSequenceReader serves a fixed ordered image list
type fakeSequenceReader struct {
	images []entities.Image
	err    error
}

func (f *fakeSequenceReader) OrderedImages(plantID, viewAngle string) ([]entities.Image, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.images, nil
}

func sequenceOf(ids ...string) *fakeSequenceReader {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	images := make([]entities.Image, len(ids))
	for i, id := range ids {
		images[i] = entities.Image{ID: id, CaptureTime: base.Add(time.Duration(i) * time.Hour)}
	}
	return &fakeSequenceReader{images: images}
}

func newTestEngine(store *fakeStore, reader *fakeSequenceReader) (*Engine, *events.Emitter) {
	emitter := events.NewEmitter(zap.NewNop())
	engine := NewEngine(store, reader, emitter, zap.NewNop())
	engine.SetEnabled(true)
	return engine, emitter
}

// completedSignal subscribes before any trigger and signals each drain finish
func completedSignal(emitter *events.Emitter) chan struct{} {
	done := make(chan struct{}, 16)
	emitter.Subscribe(func(ctx context.Context, event events.DomainEvent) error {
		if event.GetEventType() == events.EventTypeSyncCompleted {
			done <- struct{}{}
		}
		return nil
	})
	return done
}

func source(imageID string) SourceContext {
	return SourceContext{PlantID: "plant-1", ViewAngle: "side-0", ImageID: imageID}
}

func TestEngineDisabledDropsOperations(t *testing.T) {
	store := newFakeStore()
	engine, _ := newTestEngine(store, sequenceOf("A", "B", "C"))
	engine.SetEnabled(false)

	engine.TriggerAddKeypoint(entities.NewKeypoint(1, 10, 10), source("A"))

	assert.Equal(t, 0, engine.QueueLength())
	assert.Empty(t, store.savedIDs())
	assert.Nil(t, engine.LastResult())
}

func TestEngineSyncsFutureFramesOnly(t *testing.T) {
	store := newFakeStore()
	engine, emitter := newTestEngine(store, sequenceOf("A", "B", "C", "D"))
	done := completedSignal(emitter)

	engine.TriggerAddKeypoint(entities.NewKeypoint(1, 10, 10), source("B"))
	<-done

	result := engine.LastResult()
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Synced)
	assert.ElementsMatch(t, []string{"C", "D"}, store.savedIDs())
	assert.Nil(t, store.annotations("A"), "frames before the edit are never touched")
	assert.Nil(t, store.annotations("B"), "the source frame is the caller's own save, not sync's")
}

func TestEngineExcludesOutOfOrderTimestamps(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	// C sits after B by position but its clock reads earlier than B's.
	reader := &fakeSequenceReader{images: []entities.Image{
		{ID: "A", CaptureTime: base},
		{ID: "B", CaptureTime: base.Add(2 * time.Hour)},
		{ID: "C", CaptureTime: base.Add(time.Hour)},
		{ID: "D", CaptureTime: base.Add(3 * time.Hour)},
	}}
	store := newFakeStore()
	engine, emitter := newTestEngine(store, reader)
	done := completedSignal(emitter)

	engine.TriggerAddKeypoint(entities.NewKeypoint(1, 10, 10), source("B"))
	<-done

	result := engine.LastResult()
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, []string{"D"}, store.savedIDs(), "a target must be later by both position and timestamp")
}

func TestEngineNeverWritesEarlierIndexedFrames(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	// A precedes the source by position but its clock erroneously reads later.
	// Position is the hard cutoff: A must never be written regardless.
	reader := &fakeSequenceReader{images: []entities.Image{
		{ID: "A", CaptureTime: base.Add(5 * time.Hour)},
		{ID: "C", CaptureTime: base.Add(time.Hour)},
		{ID: "B", CaptureTime: base.Add(2 * time.Hour)},
		{ID: "D", CaptureTime: base.Add(3 * time.Hour)},
	}}
	store := newFakeStore()
	engine, emitter := newTestEngine(store, reader)
	done := completedSignal(emitter)

	engine.TriggerAddKeypoint(entities.NewKeypoint(1, 10, 10), source("C"))
	<-done

	result := engine.LastResult()
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Synced)
	assert.ElementsMatch(t, []string{"B", "D"}, store.savedIDs())
	assert.Nil(t, store.annotations("A"), "an earlier-positioned frame is out of range even with a later timestamp")
}

func TestEnginePartialFailureIsolation(t *testing.T) {
	store := newFakeStore()
	store.failOn["C"] = assert.AnError
	engine, emitter := newTestEngine(store, sequenceOf("A", "B", "C", "D"))
	done := completedSignal(emitter)

	var errorEvents []events.SyncError
	var mu sync.Mutex
	emitter.Subscribe(func(ctx context.Context, event events.DomainEvent) error {
		if e, ok := event.(events.SyncError); ok {
			mu.Lock()
			errorEvents = append(errorEvents, e)
			mu.Unlock()
		}
		return nil
	})

	engine.TriggerMoveKeypoint(entities.NewKeypoint(1, 20, 20), nil, source("A"))
	<-done

	result := engine.LastResult()
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Synced, "B and D still sync around the failed frame")
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "C", result.Errors[0].ImageID)
	assert.ElementsMatch(t, []string{"B", "D"}, store.savedIDs())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, errorEvents, 1)
	assert.Equal(t, "C", errorEvents[0].ImageID)
}

func TestEngineSerializesBurstIntoOneDrain(t *testing.T) {
	store := newFakeStore()
	gate := make(chan struct{})
	store.gate = gate
	engine, emitter := newTestEngine(store, sequenceOf("A", "B"))
	done := completedSignal(emitter)

	var started, completed int
	var mu sync.Mutex
	emitter.Subscribe(func(ctx context.Context, event events.DomainEvent) error {
		mu.Lock()
		defer mu.Unlock()
		switch event.GetEventType() {
		case events.EventTypeSyncStarted:
			started++
		case events.EventTypeSyncCompleted:
			completed++
		}
		return nil
	})

	// The first operation blocks inside its store read; the rest pile up.
	for i := 0; i < 5; i++ {
		engine.TriggerAddKeypoint(entities.NewKeypoint(i+1, float64(i), float64(i)), source("A"))
	}
	close(gate)
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, started, "a burst collapses into one drain run")
	assert.Equal(t, 1, completed)
	assert.Equal(t, 0, engine.QueueLength())

	annotations := store.annotations("B")
	assert.Len(t, annotations, 5, "all five edits landed in order on the target")
}

func TestEngineRoutesCustomPayloadsToCustomOperations(t *testing.T) {
	store := newFakeStore()
	store.failOn["B"] = assert.AnError
	engine, emitter := newTestEngine(store, sequenceOf("A", "B"))
	done := completedSignal(emitter)

	var kinds []string
	var mu sync.Mutex
	emitter.Subscribe(func(ctx context.Context, event events.DomainEvent) error {
		if e, ok := event.(events.SyncError); ok {
			mu.Lock()
			kinds = append(kinds, e.OperationKind)
			mu.Unlock()
		}
		return nil
	})

	custom := entities.NewCustomAnnotation("leaf-tip", 1, 10, 10)
	engine.TriggerAddKeypoint(custom, source("A"))
	<-done
	engine.TriggerMoveKeypoint(custom, nil, source("A"))
	<-done
	engine.TriggerDeleteKeypoint(custom, source("A"))
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"custom_create", "custom_update", "custom_delete"}, kinds)
}

func TestEngineTargetResolutionFailure(t *testing.T) {
	store := newFakeStore()
	engine, emitter := newTestEngine(store, sequenceOf("A", "B", "C"))
	done := completedSignal(emitter)

	engine.TriggerAddKeypoint(entities.NewKeypoint(1, 10, 10), source("not-in-sequence"))
	<-done

	result := engine.LastResult()
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.Synced)
	assert.NotEmpty(t, result.Message)
	assert.Empty(t, store.savedIDs(), "no frame is touched when targets cannot be resolved")
}

func TestEngineTargetTimeout(t *testing.T) {
	store := newFakeStore()
	store.gate = make(chan struct{}) // never closed; Get blocks until the per-target deadline
	engine, emitter := newTestEngine(store, sequenceOf("A", "B"))
	engine.WithTargetTimeout(50 * time.Millisecond)
	done := completedSignal(emitter)

	engine.TriggerAddKeypoint(entities.NewKeypoint(1, 10, 10), source("A"))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("drain did not finish; a hung store call stalled the queue")
	}

	result := engine.LastResult()
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.Synced)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "B", result.Errors[0].ImageID)
}

func TestEngineWait(t *testing.T) {
	store := newFakeStore()
	engine, _ := newTestEngine(store, sequenceOf("A", "B"))

	engine.TriggerAddKeypoint(entities.NewKeypoint(1, 10, 10), source("A"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, engine.Wait(ctx))
	assert.Equal(t, 0, engine.QueueLength())
}
