package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ConsumerInstrumenter records OTEL metrics around fabric event handlers.
type ConsumerInstrumenter struct {
	tracer   trace.Tracer
	inFlight metric.Int64UpDownCounter
	duration metric.Float64Histogram
	handled  metric.Int64Counter
}

// NewConsumerInstrumenter builds the instruments on the global meter
// provider, so Setup should run first.
func NewConsumerInstrumenter() (*ConsumerInstrumenter, error) {
	meter := otel.Meter(instrumentationName)

	inFlight, err := meter.Int64UpDownCounter(
		"chat_realtime_consumer_events_in_flight",
		metric.WithDescription("Number of fabric events being handled"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"chat_realtime_consumer_event_duration_seconds",
		metric.WithDescription("Fabric event handling duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	handled, err := meter.Int64Counter(
		"chat_realtime_consumer_events_total",
		metric.WithDescription("Total fabric events handled"),
	)
	if err != nil {
		return nil, err
	}

	return &ConsumerInstrumenter{
		tracer:   Tracer(),
		inFlight: inFlight,
		duration: duration,
		handled:  handled,
	}, nil
}

// InstrumentEvent runs fn inside a span and records its outcome.
func (c *ConsumerInstrumenter) InstrumentEvent(ctx context.Context, subject string, fn func(context.Context) error) error {
	c.inFlight.Add(ctx, 1)
	defer c.inFlight.Add(ctx, -1)

	ctx, span := c.tracer.Start(ctx, "handle "+subject,
		trace.WithAttributes(attribute.String("messaging.destination.name", subject)),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	attrs := metric.WithAttributes(
		attribute.String("subject", subject),
		attribute.String("status", status),
	)
	c.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	c.handled.Add(ctx, 1, attrs)
	return err
}
