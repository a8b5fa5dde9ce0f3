package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultVerifies(t *testing.T) {
	require.NoError(t, Default().Verify())
}

func TestVerifyRejectsInvalidK(t *testing.T) {
	c := Default()
	c.K = 0
	require.Error(t, c.Verify())
}

func TestVerifyRejectsNonPowerOfTwoPartition(t *testing.T) {
	c := Default()
	c.Geomprtn = 3
	require.Error(t, c.Verify())
}

func TestUnitLevel(t *testing.T) {
	c := Default()
	c.K = 16
	require.Equal(t, 4, c.UnitLevel())
}

func TestCellLevel(t *testing.T) {
	c := Default()
	c.Geomprtn = 4
	require.Equal(t, 2, c.CellLevel())
}
