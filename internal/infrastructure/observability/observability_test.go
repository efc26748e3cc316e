package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/chat-realtime-api/internal/config"
)

func TestExporterEndpoint(t *testing.T) {
	tests := []struct {
		raw      string
		endpoint string
		insecure bool
	}{
		{"http://otel:4318", "otel:4318", true},
		{"https://collector.example.com", "collector.example.com", false},
		{"otel:4318", "otel:4318", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			endpoint, insecure := exporterEndpoint(tt.raw)
			assert.Equal(t, tt.endpoint, endpoint)
			assert.Equal(t, tt.insecure, insecure)
		})
	}
}

func TestSetupWithoutExporter(t *testing.T) {
	cfg := &config.Config{ServiceName: "chat-realtime-api", Environment: "test", FabricDriver: "memory"}

	shutdown, err := Setup(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NotNil(t, Tracer())
	assert.NoError(t, shutdown(context.Background()))
}

func TestConsumerInstrumenterPassesErrorThrough(t *testing.T) {
	inst, err := NewConsumerInstrumenter()
	require.NoError(t, err)

	calls := 0
	require.NoError(t, inst.InstrumentEvent(context.Background(), "chat.user.deactivated", func(context.Context) error {
		calls++
		return nil
	}))

	boom := errors.New("boom")
	assert.ErrorIs(t, inst.InstrumentEvent(context.Background(), "chat.user.deactivated", func(context.Context) error {
		calls++
		return boom
	}), boom)
	assert.Equal(t, 2, calls)
}
