package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, name string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name {
			require.Len(t, family.GetMetric(), 1)
			return family.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func TestObserveRoomsReadsCountAtScrape(t *testing.T) {
	rooms := 3
	ObserveRooms(func() int { return rooms })
	ObserveRooms(func() int { return 99 })

	assert.Equal(t, float64(3), gaugeValue(t, "chat_realtime_active_rooms"))

	rooms = 5
	assert.Equal(t, float64(5), gaugeValue(t, "chat_realtime_active_rooms"))
}
