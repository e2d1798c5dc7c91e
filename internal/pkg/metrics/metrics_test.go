package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewRegistersAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.OrdersCreated.Inc()
	m.OrderTransitions.WithLabelValues("completed").Inc()
	m.ReviewsDuplicate.WithLabelValues("product").Add(2)
	m.ObserveSweep(time.Now(), 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrderTransitions.WithLabelValues("completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReviewsDuplicate.WithLabelValues("product")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OrdersExpired))

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewWithoutRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil)
		New(nil)
	})
}
