package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the application instruments. The zero value is not usable;
// build one with NewMetrics.
type Metrics struct {
	generations metric.Int64Counter
	genLatency  metric.Float64Histogram
	captures    metric.Int64Counter
	uploads     metric.Int64Counter
}

// NewMetrics registers instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentation)
	generations, err := meter.Int64Counter("cardstudio.ai.generations",
		metric.WithDescription("AI generation attempts by tool and outcome"))
	if err != nil {
		return nil, err
	}
	genLatency, err := meter.Float64Histogram("cardstudio.ai.latency",
		metric.WithUnit("s"),
		metric.WithDescription("AI generation latency"))
	if err != nil {
		return nil, err
	}
	captures, err := meter.Int64Counter("cardstudio.cards.captures",
		metric.WithDescription("card captures by template kind and outcome"))
	if err != nil {
		return nil, err
	}
	uploads, err := meter.Int64Counter("cardstudio.gallery.uploads",
		metric.WithDescription("gallery uploads by target and outcome"))
	if err != nil {
		return nil, err
	}
	return &Metrics{generations: generations, genLatency: genLatency, captures: captures, uploads: uploads}, nil
}

// RecordGeneration counts one generation attempt.
func (m *Metrics) RecordGeneration(ctx context.Context, tool, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool", tool), attribute.String("outcome", outcome))
	m.generations.Add(ctx, 1, attrs)
	m.genLatency.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordCapture counts one rasterization.
func (m *Metrics) RecordCapture(ctx context.Context, kind, outcome string) {
	if m == nil {
		return
	}
	m.captures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind), attribute.String("outcome", outcome)))
}

// RecordUpload counts one gallery upload.
func (m *Metrics) RecordUpload(ctx context.Context, target, outcome string) {
	if m == nil {
		return
	}
	m.uploads.Add(ctx, 1, metric.WithAttributes(attribute.String("target", target), attribute.String("outcome", outcome)))
}
