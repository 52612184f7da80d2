package integration

import (
	"context"
	"testing"
	"time"

	"phenotag-backend/application/sequence"
	syncengine "phenotag-backend/application/sync"
	"phenotag-backend/domain/core/entities"
	"phenotag-backend/domain/events"
	"phenotag-backend/infrastructure/persistence/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	store     *memory.AnnotationStore
	emitter   *events.Emitter
	sequencer *sequence.Sequencer
	engine    *syncengine.Engine
}

func setup(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewAnnotationStore()
	emitter := events.NewEmitter(logger)
	sequencer := sequence.NewSequencer(store, emitter, logger)
	engine := syncengine.NewEngine(store, sequencer, emitter, logger)
	return &fixture{store: store, emitter: emitter, sequencer: sequencer, engine: engine}
}

func (f *fixture) initSequence(t *testing.T, plantID, viewAngle string, ids ...string) {
	t.Helper()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	images := make([]entities.Image, len(ids))
	for i, id := range ids {
		images[i] = entities.Image{ID: id, CaptureTime: base.Add(time.Duration(i) * time.Hour)}
	}
	_, err := f.sequencer.Initialize(plantID, viewAngle, images)
	require.NoError(t, err)
}

func (f *fixture) storedAnnotations(t *testing.T, imageID string) []entities.Annotation {
	t.Helper()
	set, err := f.store.Get(context.Background(), imageID)
	require.NoError(t, err)
	if set == nil {
		return nil
	}
	return set.Annotations
}

// The full operator workflow: bulk-fill on first save, a pinned manual
// correction, then bounded re-propagation around it, all through the persisted
// store rather than the sequencer's in-memory view.
func TestPropagationFlow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.initSequence(t, "plant-7", "top", "A", "B", "C", "D")

	t.Run("first save bulk-fills the sequence", func(t *testing.T) {
		result, err := f.sequencer.Save(ctx, "plant-7", "top", "A",
			[]entities.Annotation{entities.NewKeypoint(1, 10, 10)}, false)
		require.NoError(t, err)
		assert.True(t, result.IsFirstAnnotation)
		assert.Equal(t, 3, result.PropagatedCount)

		for _, id := range []string{"A", "B", "C", "D"} {
			annotations := f.storedAnnotations(t, id)
			require.Len(t, annotations, 1, "frame %s", id)
			assert.Equal(t, 10.0, annotations[0].X)
		}
	})

	t.Run("manual correction pins a frame and carries forward", func(t *testing.T) {
		result, err := f.sequencer.Save(ctx, "plant-7", "top", "C",
			[]entities.Annotation{entities.NewKeypoint(1, 99, 99)}, true)
		require.NoError(t, err)
		assert.Equal(t, 1, result.PropagatedCount)
		assert.Equal(t, 99.0, f.storedAnnotations(t, "C")[0].X)
		assert.Equal(t, 99.0, f.storedAnnotations(t, "D")[0].X)
	})

	t.Run("re-propagation stops at the pinned frame", func(t *testing.T) {
		result, err := f.sequencer.Save(ctx, "plant-7", "top", "B",
			[]entities.Annotation{entities.NewKeypoint(1, 50, 50)}, false)
		require.NoError(t, err)
		assert.Equal(t, 0, result.PropagatedCount)

		assert.Equal(t, 50.0, f.storedAnnotations(t, "B")[0].X)
		assert.Equal(t, 99.0, f.storedAnnotations(t, "C")[0].X)
		assert.Equal(t, 99.0, f.storedAnnotations(t, "D")[0].X, "the boundary at C keeps B's save out")
	})
}

// Real-time sync rides on the same store and the sequencer's image ordering:
// an edit on one frame reconciles into every future frame's persisted set.
func TestRealTimeSyncFlow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.initSequence(t, "plant-7", "side-0", "A", "B", "C")

	_, err := f.sequencer.Save(ctx, "plant-7", "side-0", "A",
		[]entities.Annotation{entities.NewKeypoint(1, 10, 10)}, false)
	require.NoError(t, err)

	f.engine.SetEnabled(true)

	source := syncengine.SourceContext{PlantID: "plant-7", ViewAngle: "side-0", ImageID: "A"}
	f.engine.TriggerAddKeypoint(entities.NewKeypoint(2, 30, 40), source)
	f.engine.TriggerMoveKeypoint(entities.NewKeypoint(1, 15, 15), nil, source)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.engine.Wait(waitCtx))

	for _, id := range []string{"B", "C"} {
		annotations := f.storedAnnotations(t, id)
		require.Len(t, annotations, 2, "frame %s", id)

		var byOrder = map[int]entities.Annotation{}
		for _, a := range annotations {
			byOrder[a.Order] = a
		}
		assert.Equal(t, 15.0, byOrder[1].X, "frame %s: move landed", id)
		assert.Equal(t, 30.0, byOrder[2].X, "frame %s: add landed", id)
	}

	// The source frame itself is untouched by sync; the operator's own save
	// already covers it.
	assert.Len(t, f.storedAnnotations(t, "A"), 1)

	result := f.engine.LastResult()
	require.NotNil(t, result)
	assert.True(t, result.Success)
}

// Deleting on an early frame removes the matching keypoint from future frames
// and leaves unrelated custom annotations alone.
func TestSyncDeleteRespectsCustomKeys(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.initSequence(t, "plant-9", "top", "A", "B")

	_, err := f.sequencer.Save(ctx, "plant-9", "top", "A", []entities.Annotation{
		entities.NewKeypoint(1, 10, 10),
		entities.NewCustomAnnotation("leaf-tip", 1, 20, 20),
	}, false)
	require.NoError(t, err)

	f.engine.SetEnabled(true)
	source := syncengine.SourceContext{PlantID: "plant-9", ViewAngle: "top", ImageID: "A"}
	f.engine.TriggerDeleteKeypoint(entities.NewKeypoint(1, 10, 10), source)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.engine.Wait(waitCtx))

	annotations := f.storedAnnotations(t, "B")
	require.Len(t, annotations, 1, "only the regular keypoint at order 1 is removed")
	assert.True(t, annotations[0].Type.IsCustom())
	assert.Equal(t, "leaf-tip", annotations[0].CustomTypeID)
}
