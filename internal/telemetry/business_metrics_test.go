package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVATMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewVATMetrics("test", reg)

	m.Calculations.WithLabelValues("api", "ok").Inc()
	m.Calculations.WithLabelValues("api", "ok").Inc()
	m.VATCalculated.WithLabelValues("AED").Add(26.25)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Calculations.WithLabelValues("api", "ok")))
	assert.Equal(t, 26.25, testutil.ToFloat64(m.VATCalculated.WithLabelValues("AED")))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_vat_calculations_total")
	assert.Contains(t, names, "test_vat_calculated_amount_total")
}

func TestNewVATMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewVATMetrics("", prometheus.NewRegistry())
		NewVATMetrics("", prometheus.NewRegistry())
	})
}
