package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.InboundEvent("MSG")
	c.InboundEvent("MSG")
	c.OutboundEvent("PONG")
	c.MessageAdmitted("user")
	c.MessageSuppressed()

	assert.Equal(t, float64(2), testutil.ToFloat64(c.inboundEvents.WithLabelValues("MSG")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.outboundEvents.WithLabelValues("PONG")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.admitted.WithLabelValues("user")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.suppressed))
}
