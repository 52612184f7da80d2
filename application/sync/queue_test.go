package sync

import (
	"testing"

	"phenotag-backend/domain/core/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queuedOp(imageID string) Operation {
	return AddKeypoint{
		Keypoint:      entities.NewKeypoint(1, 10, 10),
		SourceContext: SourceContext{PlantID: "plant-1", ViewAngle: "side-0", ImageID: imageID},
	}
}

func TestQueueDrainOwnership(t *testing.T) {
	q := newOperationQueue()
	assert.False(t, q.isDraining())

	startDrain, length := q.enqueue(queuedOp("A"))
	assert.True(t, startDrain, "first enqueue on an idle queue owns the drain")
	assert.Equal(t, 1, length)
	assert.True(t, q.isDraining())

	startDrain, length = q.enqueue(queuedOp("B"))
	assert.False(t, startDrain, "a draining queue never hands out ownership twice")
	assert.Equal(t, 2, length)
}

func TestQueueFIFO(t *testing.T) {
	q := newOperationQueue()
	q.enqueue(queuedOp("A"))
	q.enqueue(queuedOp("B"))
	q.enqueue(queuedOp("C"))

	for _, want := range []string{"A", "B", "C"} {
		op, ok := q.dequeue()
		require.True(t, ok)
		assert.Equal(t, want, op.Source().ImageID)
	}
}

func TestQueueReturnsToIdleWhenEmpty(t *testing.T) {
	q := newOperationQueue()
	q.enqueue(queuedOp("A"))

	op, ok := q.dequeue()
	require.True(t, ok)
	assert.Equal(t, "A", op.Source().ImageID)
	assert.True(t, q.isDraining(), "still draining until the empty pop")

	_, ok = q.dequeue()
	assert.False(t, ok)
	assert.False(t, q.isDraining())

	// Idle again means the next enqueue starts a fresh drain.
	startDrain, _ := q.enqueue(queuedOp("B"))
	assert.True(t, startDrain)
}

func TestQueueWaitIdle(t *testing.T) {
	q := newOperationQueue()
	q.enqueue(queuedOp("A"))

	done := make(chan struct{})
	go func() {
		q.waitIdle()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("waitIdle returned while draining")
	default:
	}

	q.dequeue()
	_, ok := q.dequeue()
	require.False(t, ok)
	<-done
}
