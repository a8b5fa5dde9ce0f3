package engine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emmanuel-garza/ddfmm/config"
	"github.com/emmanuel-garza/ddfmm/engine"
)

func gridPoints(n int) [][3]float64 {
	pts := make([][3]float64, 0, n*n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				pts = append(pts, [3]float64{
					float64(i) - float64(n)/2,
					float64(j) - float64(n)/2,
					float64(k) - float64(n)/2,
				})
			}
		}
	}
	return pts
}

func TestEvalLowFrequencyOnlySingleRank(t *testing.T) {
	cfg := config.Default()
	cfg.K = 1
	cfg.Ptsmax = 4
	cfg.Maxlevel = 4
	require.NoError(t, cfg.Verify())
	require.Equal(t, 0, cfg.UnitLevel(), "K=1 keeps the whole tree in the non-directional regime")

	points := gridPoints(4)
	ev, err := engine.New(cfg, points, 1)
	require.NoError(t, err)

	densities := make([]complex128, len(points))
	for i := range densities {
		densities[i] = complex(1, 0)
	}

	vals, err := ev.Eval(densities)
	require.NoError(t, err)
	require.Len(t, vals, len(points))

	var nonzero int
	for _, v := range vals {
		if v != 0 {
			nonzero++
		}
	}
	require.Greater(t, nonzero, 0, "evaluation should produce some nonzero potential")
}

func TestEvalLowFrequencyMultiRankMatchesSingleRank(t *testing.T) {
	cfg := config.Default()
	cfg.K = 1
	cfg.Ptsmax = 2
	cfg.Maxlevel = 4
	cfg.Geomprtn = 2
	require.NoError(t, cfg.Verify())

	points := gridPoints(4)
	densities := make([]complex128, len(points))
	for i := range densities {
		densities[i] = complex(1, 0)
	}

	single, err := engine.New(cfg, points, 1)
	require.NoError(t, err)
	singleVals, err := single.Eval(densities)
	require.NoError(t, err)

	multi, err := engine.New(cfg, points, 2)
	require.NoError(t, err)
	multiVals, err := multi.Eval(densities)
	require.NoError(t, err)

	require.Len(t, multiVals, len(singleVals))
	for i := range singleVals {
		require.InDelta(t, real(singleVals[i]), real(multiVals[i]), 1e-9)
		require.InDelta(t, imag(singleVals[i]), imag(multiVals[i]), 1e-9)
	}
}

func TestEvalDirectionalRegimeMultiRank(t *testing.T) {
	cfg := config.Default()
	cfg.K = 16
	cfg.Ptsmax = 1
	cfg.Maxlevel = 4
	cfg.Geomprtn = 2
	require.NoError(t, cfg.Verify())
	require.Greater(t, cfg.UnitLevel(), 0, "K=16 must put UnitLevel above the root so a directional regime exists")

	points := [][3]float64{
		{-7, -7, -7}, {-6, -7, -7},
		{6, 6, 6}, {7, 7, 7},
		{-7, 7, -7}, {7, -7, 7},
	}
	ev, err := engine.New(cfg, points, 2)
	require.NoError(t, err)

	densities := make([]complex128, len(points))
	for i := range densities {
		densities[i] = complex(1, 0)
	}

	vals, err := ev.Eval(densities)
	require.NoError(t, err)
	require.Len(t, vals, len(points))

	var sawValue bool
	for _, v := range vals {
		if v != 0 {
			sawValue = true
		}
	}
	require.True(t, sawValue, "directional evaluation should produce some nonzero potential")

	sent, received := ev.TrafficKBytes()
	require.GreaterOrEqual(t, sent, 0.0)
	require.GreaterOrEqual(t, received, 0.0)
}

func TestEvalRejectsWrongDensityLength(t *testing.T) {
	cfg := config.Default()
	cfg.K = 1
	cfg.Ptsmax = 4
	cfg.Maxlevel = 3
	require.NoError(t, cfg.Verify())

	points := gridPoints(2)
	ev, err := engine.New(cfg, points, 1)
	require.NoError(t, err)

	_, err = ev.Eval(make([]complex128, len(points)+1))
	require.Error(t, err)
}
