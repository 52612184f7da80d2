package observability

import (
	"context"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer provides distributed tracing around store and bus calls.
// When disabled it is a no-op, so callers never branch on it.
type Tracer struct {
	serviceName string
	enabled     bool
}

// NewTracer creates a new tracer instance
func NewTracer(serviceName string, enabled bool) *Tracer {
	return &Tracer{
		serviceName: serviceName,
		enabled:     enabled,
	}
}

// Segment opens a subsegment and returns the derived context plus a closer.
// Outside a sampled request (or with tracing disabled) it returns the input
// context and a no-op closer.
func (t *Tracer) Segment(ctx context.Context, name string) (context.Context, func()) {
	if t == nil || !t.enabled || xray.GetSegment(ctx) == nil {
		return ctx, func() {}
	}

	ctx, seg := xray.BeginSubsegment(ctx, fmt.Sprintf("%s.%s", t.serviceName, name))
	return ctx, func() { seg.Close(nil) }
}
