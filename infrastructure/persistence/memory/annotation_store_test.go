package memory

import (
	"context"
	"testing"
	"time"

	"phenotag-backend/domain/core/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReturnsNilWhenAbsent(t *testing.T) {
	store := NewAnnotationStore()

	set, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, set)
}

func TestSaveAndGetRoundtrip(t *testing.T) {
	store := NewAnnotationStore()
	ctx := context.Background()

	in := entities.AnnotationSet{
		ImageID:      "img-1",
		Annotations:  []entities.Annotation{entities.NewKeypoint(1, 10, 20)},
		LastModified: time.Now(),
	}
	require.NoError(t, store.Save(ctx, "img-1", in))

	out, err := store.Get(ctx, "img-1")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "img-1", out.ImageID)
	require.Len(t, out.Annotations, 1)
	assert.Equal(t, 10.0, out.Annotations[0].X)
	assert.Equal(t, 1, store.Len())
}

func TestStoreIsolatesCallers(t *testing.T) {
	store := NewAnnotationStore()
	ctx := context.Background()

	in := entities.AnnotationSet{
		ImageID:     "img-1",
		Annotations: []entities.Annotation{entities.NewKeypoint(1, 10, 20)},
	}
	require.NoError(t, store.Save(ctx, "img-1", in))

	// Mutating the caller's copy after save must not leak into the store.
	in.Annotations[0].X = 999

	out, err := store.Get(ctx, "img-1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, out.Annotations[0].X)

	// Mutating a returned copy must not leak either.
	out.Annotations[0].Y = 999
	again, err := store.Get(ctx, "img-1")
	require.NoError(t, err)
	assert.Equal(t, 20.0, again.Annotations[0].Y)
}

func TestStoreHonorsContext(t *testing.T) {
	store := NewAnnotationStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Get(ctx, "img-1")
	assert.ErrorIs(t, err, context.Canceled)

	err = store.Save(ctx, "img-1", entities.NewAnnotationSet("img-1"))
	assert.ErrorIs(t, err, context.Canceled)
}
