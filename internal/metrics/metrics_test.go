package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.EvaluationsTotal.WithLabelValues("tick").Inc()
	m.AlertsEmittedTotal.WithLabelValues("expired").Add(2)
	m.Items.WithLabelValues("soon").Set(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("tick")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AlertsEmittedTotal.WithLabelValues("expired")))

	expected := `
# HELP mhd_items Number of tracked items by freshness status
# TYPE mhd_items gauge
mhd_items{status="soon"} 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "mhd_items"))
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop()
		Nop()
	})
}
