package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"jan-server/services/chat-realtime-api/internal/infrastructure/metrics"
	"jan-server/services/chat-realtime-api/internal/infrastructure/observability"
)

// NATSFabric is the production fabric.
type NATSFabric struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// ConnectNATS dials url. The connection retries in the background, so the
// service starts even when the fabric is briefly unavailable.
func ConnectNATS(url, name string, log zerolog.Logger) (*NATSFabric, error) {
	log = log.With().Str("component", "nats-fabric").Logger()
	f := &NATSFabric{log: log}
	metrics.FabricState.Set(float64(StateConnecting))

	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.ConnectHandler(func(*nats.Conn) {
			metrics.FabricState.Set(float64(StateConnected))
			log.Info().Str("url", url).Msg("connected to NATS")
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			metrics.FabricState.Set(float64(StateConnected))
			log.Info().Str("url", conn.ConnectedUrl()).Msg("reconnected to NATS")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			metrics.FabricState.Set(float64(StateConnecting))
			log.Warn().Err(err).Msg("disconnected from NATS")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			metrics.FabricState.Set(float64(StateDisconnected))
			log.Info().Msg("NATS connection closed")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			ev := log.Error().Err(err)
			if sub != nil {
				ev = ev.Str("subject", sub.Subject)
			}
			ev.Msg("NATS async error")
		}),
	)
	if err != nil {
		metrics.FabricState.Set(float64(StateDisconnected))
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	if nc.IsConnected() {
		metrics.FabricState.Set(float64(StateConnected))
	}
	f.nc = nc
	return f, nil
}

func (f *NATSFabric) Publish(ctx context.Context, subject string, data []byte) error {
	ctx, span := observability.Tracer().Start(ctx, subject+" publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(messagingAttrs(subject, data)...),
	)
	defer span.End()

	if err := f.nc.PublishMsg(&nats.Msg{Subject: subject, Data: data, Header: injectHeader(ctx)}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (f *NATSFabric) Request(ctx context.Context, subject string, data []byte) (*Msg, error) {
	ctx, span := observability.Tracer().Start(ctx, subject+" request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(messagingAttrs(subject, data)...),
	)
	defer span.End()

	reply, err := f.nc.RequestMsgWithContext(ctx, &nats.Msg{Subject: subject, Data: data, Header: injectHeader(ctx)})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, nats.ErrNoResponders) {
			return nil, ErrNoResponders
		}
		if errors.Is(err, nats.ErrTimeout) {
			return nil, context.DeadlineExceeded
		}
		return nil, err
	}
	span.SetAttributes(attribute.Int("messaging.message.response_size_bytes", len(reply.Data)))
	return fromNATS(reply), nil
}

func (f *NATSFabric) Subscribe(subject, queue string, handler Handler) (Subscription, error) {
	cb := func(m *nats.Msg) {
		msg := fromNATS(m)
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.MapCarrier(msg.Header))
		ctx, span := observability.Tracer().Start(ctx, subject+" process",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(messagingAttrs(m.Subject, m.Data)...),
		)
		defer span.End()
		handler(ctx, msg)
	}

	var (
		sub *nats.Subscription
		err error
	)
	if queue != "" {
		sub, err = f.nc.QueueSubscribe(subject, queue, cb)
	} else {
		sub, err = f.nc.Subscribe(subject, cb)
	}
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	f.log.Info().Str("subject", subject).Str("queue", queue).Msg("subscribed")
	return sub, nil
}

func (f *NATSFabric) State() State {
	switch f.nc.Status() {
	case nats.CONNECTED:
		return StateConnected
	case nats.CONNECTING, nats.RECONNECTING:
		return StateConnecting
	default:
		return StateDisconnected
	}
}

// Close drains subscriptions before closing the connection.
func (f *NATSFabric) Close() error {
	if err := f.nc.Drain(); err != nil {
		f.nc.Close()
		return err
	}
	return nil
}

func injectHeader(ctx context.Context) nats.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	h := nats.Header{}
	for k, v := range carrier {
		h.Set(k, v)
	}
	return h
}

func fromNATS(m *nats.Msg) *Msg {
	header := make(map[string]string, len(m.Header))
	for k := range m.Header {
		header[k] = m.Header.Get(k)
	}
	msg := &Msg{Subject: m.Subject, Data: m.Data, Header: header}
	if m.Reply != "" {
		msg.respond = m.Respond
	}
	return msg
}

func messagingAttrs(subject string, data []byte) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("messaging.system", "nats"),
		attribute.String("messaging.destination.name", subject),
		attribute.Int("messaging.message.payload_size_bytes", len(data)),
	}
}

var _ Fabric = (*NATSFabric)(nil)
