// Package sync mirrors individual annotation edits to the future frames of a
// sequence as they happen. Operations are serialized through a FIFO queue
// drained by a single logical worker, so two edits can never race on the same
// target image's annotation document.
package sync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"phenotag-backend/application/ports"
	"phenotag-backend/domain/core/entities"
	"phenotag-backend/domain/core/reconcile"
	"phenotag-backend/domain/core/valueobjects"
	"phenotag-backend/domain/events"
	pkgerrors "phenotag-backend/pkg/errors"

	"go.uber.org/zap"
)

// DefaultTargetTimeout bounds one target's store get/save pair so a hung store
// call cannot stall the whole queue.
const DefaultTargetTimeout = 10 * time.Second

// TargetError records a failed write to one target image
type TargetError struct {
	ImageID string `json:"imageId"`
	Message string `json:"message"`
}

// Result reports the outcome of one sync operation
type Result struct {
	Success bool          `json:"success"`
	Synced  int           `json:"synced"`
	Errors  []TargetError `json:"errors,omitempty"`
	Message string        `json:"message,omitempty"`
}

// Engine applies queued edit operations to every future frame of the editing
// context. It depends only on the injected store and sequence reader, with no
// ambient lookup of sibling managers.
type Engine struct {
	store         ports.AnnotationStore
	sequences     ports.SequenceReader
	emitter       *events.Emitter
	logger        *zap.Logger
	queue         *operationQueue
	enabled       atomic.Bool
	targetTimeout time.Duration

	resultMu   sync.Mutex
	lastResult *Result
}

// NewEngine creates a sync engine. Sync starts disabled; the operator opts in.
func NewEngine(store ports.AnnotationStore, sequences ports.SequenceReader, emitter *events.Emitter, logger *zap.Logger) *Engine {
	return &Engine{
		store:         store,
		sequences:     sequences,
		emitter:       emitter,
		logger:        logger,
		queue:         newOperationQueue(),
		targetTimeout: DefaultTargetTimeout,
	}
}

// WithTargetTimeout overrides the per-target store timeout
func (e *Engine) WithTargetTimeout(d time.Duration) *Engine {
	if d > 0 {
		e.targetTimeout = d
	}
	return e
}

// SetEnabled flips the real-time sync switch and emits a toggled event
func (e *Engine) SetEnabled(enabled bool) {
	e.enabled.Store(enabled)
	e.logger.Info("real-time sync toggled", zap.Bool("enabled", enabled))
	e.emitter.Emit(context.Background(), events.NewSyncToggled(enabled))
}

// Enabled reports whether real-time sync is on
func (e *Engine) Enabled() bool {
	return e.enabled.Load()
}

// QueueLength returns the number of operations waiting in the queue
func (e *Engine) QueueLength() int {
	return e.queue.length()
}

// LastResult returns the most recent operation result, or nil
func (e *Engine) LastResult() *Result {
	e.resultMu.Lock()
	defer e.resultMu.Unlock()
	return e.lastResult
}

// Wait blocks until the queue has drained back to idle or ctx expires
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.queue.waitIdle()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TriggerAddKeypoint queues an add edit. Custom-typed payloads always route to
// the custom sub-operations so the reconciliation key stays consistent.
func (e *Engine) TriggerAddKeypoint(keypoint entities.Annotation, source SourceContext) {
	if !e.enabled.Load() {
		return
	}
	if keypoint.Type.IsCustom() {
		e.submit(CustomCreate{Annotation: keypoint, SourceContext: source})
		return
	}
	e.submit(AddKeypoint{Keypoint: keypoint, SourceContext: source})
}

// TriggerMoveKeypoint queues a move edit
func (e *Engine) TriggerMoveKeypoint(keypoint entities.Annotation, previous *valueobjects.Point, source SourceContext) {
	if !e.enabled.Load() {
		return
	}
	if keypoint.Type.IsCustom() {
		e.submit(CustomUpdate{Annotation: keypoint, SourceContext: source})
		return
	}
	e.submit(MoveKeypoint{Keypoint: keypoint, PreviousPosition: previous, SourceContext: source})
}

// TriggerDeleteKeypoint queues a delete edit
func (e *Engine) TriggerDeleteKeypoint(keypoint entities.Annotation, source SourceContext) {
	if !e.enabled.Load() {
		return
	}
	if keypoint.Type.IsCustom() {
		e.submit(CustomDelete{Annotation: keypoint, SourceContext: source})
		return
	}
	e.submit(DeleteKeypoint{Keypoint: keypoint, SourceContext: source})
}

// TriggerEditDirection queues a direction edit
func (e *Engine) TriggerEditDirection(keypoint entities.Annotation, source SourceContext) {
	if !e.enabled.Load() {
		return
	}
	e.submit(EditDirection{Keypoint: keypoint, SourceContext: source})
}

// TriggerCustomCreate queues creation of a custom-typed annotation
func (e *Engine) TriggerCustomCreate(annotation entities.Annotation, source SourceContext) {
	if !e.enabled.Load() {
		return
	}
	e.submit(CustomCreate{Annotation: annotation, SourceContext: source})
}

// TriggerCustomUpdate queues an update of a custom-typed annotation
func (e *Engine) TriggerCustomUpdate(annotation entities.Annotation, source SourceContext) {
	if !e.enabled.Load() {
		return
	}
	e.submit(CustomUpdate{Annotation: annotation, SourceContext: source})
}

// TriggerCustomDelete queues deletion of a custom-typed annotation
func (e *Engine) TriggerCustomDelete(annotation entities.Annotation, source SourceContext) {
	if !e.enabled.Load() {
		return
	}
	e.submit(CustomDelete{Annotation: annotation, SourceContext: source})
}

// submit pushes the operation and starts the drain loop if the worker was idle
func (e *Engine) submit(op Operation) {
	startDrain, queueLength := e.queue.enqueue(op)
	e.logger.Debug("sync operation queued",
		zap.String("kind", string(op.Kind())),
		zap.Int("queueLength", queueLength),
	)
	if startDrain {
		go e.drain(queueLength)
	}
}

// drain is the single logical worker. It emits one started event per run, pops
// operations strictly FIFO, and emits one completed event once the queue is
// empty. Nothing in here may panic or return early: a failure is recorded on
// the operation's result, never thrown out of the loop.
func (e *Engine) drain(initialLength int) {
	ctx := context.Background()
	e.emitter.Emit(ctx, events.NewSyncStarted(initialLength))

	for {
		op, ok := e.queue.dequeue()
		if !ok {
			break
		}
		result := e.process(ctx, op)
		e.resultMu.Lock()
		e.lastResult = &result
		e.resultMu.Unlock()
	}

	e.emitter.Emit(ctx, events.NewSyncCompleted())
}

// process applies one operation to every future image of its source context
func (e *Engine) process(ctx context.Context, op Operation) Result {
	source := op.Source()

	targets, err := e.resolveTargets(source)
	if err != nil {
		// Total inability to resolve targets fails the operation without
		// touching any frame and without stalling the queue.
		e.logger.Error("target resolution failed",
			zap.String("kind", string(op.Kind())),
			zap.String("plantId", source.PlantID),
			zap.String("viewAngle", source.ViewAngle),
			zap.Error(err),
		)
		e.emitter.Emit(ctx, events.NewSyncError(string(op.Kind()), source.ImageID, err))
		return Result{Success: false, Synced: 0, Message: err.Error()}
	}

	result := Result{Success: true}
	for _, target := range targets {
		if err := e.applyToTarget(ctx, target.ID, op); err != nil {
			result.Errors = append(result.Errors, TargetError{ImageID: target.ID, Message: err.Error()})
			e.emitter.Emit(ctx, events.NewSyncError(string(op.Kind()), target.ID, err))
			e.logger.Warn("sync target failed",
				zap.String("kind", string(op.Kind())),
				zap.String("targetImageId", target.ID),
				zap.Error(err),
			)
			continue
		}
		result.Synced++
	}
	result.Success = len(result.Errors) == 0

	e.logger.Info("sync operation processed",
		zap.String("kind", string(op.Kind())),
		zap.String("sourceImageId", source.ImageID),
		zap.Int("targets", len(targets)),
		zap.Int("synced", result.Synced),
		zap.Int("failed", len(result.Errors)),
	)
	return result
}

// resolveTargets computes the future-image set: frames strictly after the
// source by sequence position AND by capture timestamp, ascending. Position
// alone is not enough when clocks are out of order; timestamp alone could reach
// back before the operator's current frame.
func (e *Engine) resolveTargets(source SourceContext) ([]entities.Image, error) {
	images, err := e.sequences.OrderedImages(source.PlantID, source.ViewAngle)
	if err != nil {
		return nil, err
	}

	sourceIdx := -1
	for i, img := range images {
		if img.ID == source.ImageID {
			sourceIdx = i
			break
		}
	}
	if sourceIdx < 0 {
		return nil, pkgerrors.NewImageNotInSequenceError(source.PlantID, source.ViewAngle, source.ImageID)
	}

	sourceTime := images[sourceIdx].CaptureTime
	var targets []entities.Image
	for _, img := range images[sourceIdx+1:] {
		if img.CaptureTime.After(sourceTime) {
			targets = append(targets, img)
		}
	}
	return targets, nil
}

// applyToTarget runs one target's read-reconcile-write under the per-target
// timeout. A frame that was never annotated reconciles against an empty set.
func (e *Engine) applyToTarget(ctx context.Context, targetID string, op Operation) error {
	tctx, cancel := context.WithTimeout(ctx, e.targetTimeout)
	defer cancel()

	existing, err := e.store.Get(tctx, targetID)
	if err != nil {
		return e.classify(tctx, targetID, err)
	}

	base := entities.NewAnnotationSet(targetID)
	if existing != nil {
		base = *existing
	}

	updated := reconcile.Reconcile(base, op.Payload(), op.Kind())
	if err := e.store.Save(tctx, targetID, updated); err != nil {
		return e.classify(tctx, targetID, err)
	}
	return nil
}

// classify folds a timeout into the store-unavailable taxonomy so callers see
// one failure vocabulary
func (e *Engine) classify(ctx context.Context, targetID string, err error) error {
	if ctx.Err() != nil && !pkgerrors.IsStoreUnavailable(err) && !pkgerrors.IsStoreRejected(err) {
		return pkgerrors.NewStoreUnavailableError(targetID, err)
	}
	return err
}
