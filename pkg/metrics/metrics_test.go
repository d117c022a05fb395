package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterExposesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("booking")
	require.NoError(t, m.Register(reg))

	m.TasksScheduled.WithLabelValues("booking.complete").Inc()
	m.BookingsCreated.Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.TasksScheduled.WithLabelValues("booking.complete")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BookingsCreated))

	// a second set cannot share the registry
	assert.Error(t, New("booking").Register(reg))
}
