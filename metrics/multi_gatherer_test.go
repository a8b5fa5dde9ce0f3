package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/emmanuel-garza/ddfmm/metrics"
)

func TestMultiGathererSumsAcrossNamespaces(t *testing.T) {
	regA := prometheus.NewRegistry()
	counterA := prometheus.NewCounter(prometheus.CounterOpts{Name: "ddfmm_test_total", ConstLabels: prometheus.Labels{"store": "tree"}})
	counterA.Add(3)
	require.NoError(t, regA.Register(counterA))

	regB := prometheus.NewRegistry()
	counterB := prometheus.NewCounter(prometheus.CounterOpts{Name: "ddfmm_test_total", ConstLabels: prometheus.Labels{"store": "tree"}})
	counterB.Add(4)
	require.NoError(t, regB.Register(counterB))

	mg := metrics.NewMultiGatherer()
	require.NoError(t, mg.Register("rank0", regA))
	require.NoError(t, mg.Register("rank1", regB))

	mfs, err := mg.Gather()
	require.NoError(t, err)
	require.Equal(t, float64(7), metrics.SumCounter(mfs, "ddfmm_test_total"))
	require.Equal(t, float64(0), metrics.SumCounter(mfs, "no_such_metric"))
}

func TestMultiGathererRejectsDuplicateNamespace(t *testing.T) {
	mg := metrics.NewMultiGatherer()
	require.NoError(t, mg.Register("rank0", prometheus.NewRegistry()))
	require.Error(t, mg.Register("rank0", prometheus.NewRegistry()))
}
