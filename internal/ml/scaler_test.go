package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardScaler(t *testing.T) {
	t.Parallel()

	t.Run("fit computes column mean and std", func(t *testing.T) {
		t.Parallel()
		scaler := &StandardScaler{}
		X := [][]float64{
			{1, 10},
			{2, 20},
			{3, 30},
		}
		require.NoError(t, scaler.Fit(X))
		assert.InDelta(t, 2.0, scaler.Mean[0], 1e-9)
		assert.InDelta(t, 20.0, scaler.Mean[1], 1e-9)
		assert.InDelta(t, 1.0, scaler.Std[0], 1e-9)
		assert.InDelta(t, 10.0, scaler.Std[1], 1e-9)
	})

	t.Run("transform centers and scales without mutating input", func(t *testing.T) {
		t.Parallel()
		scaler := &StandardScaler{}
		X := [][]float64{{1}, {2}, {3}}
		require.NoError(t, scaler.Fit(X))

		out, err := scaler.Transform(X)
		require.NoError(t, err)
		assert.InDelta(t, -1.0, out[0][0], 1e-9)
		assert.InDelta(t, 0.0, out[1][0], 1e-9)
		assert.InDelta(t, 1.0, out[2][0], 1e-9)
		assert.Equal(t, 1.0, X[0][0], "input must not be modified")
	})

	t.Run("constant column keeps unit std", func(t *testing.T) {
		t.Parallel()
		scaler := &StandardScaler{}
		X := [][]float64{{5}, {5}, {5}}
		require.NoError(t, scaler.Fit(X))
		assert.Equal(t, 1.0, scaler.Std[0])

		out, err := scaler.Transform(X)
		require.NoError(t, err)
		assert.Equal(t, 0.0, out[0][0])
	})

	t.Run("dimension mismatch rejected", func(t *testing.T) {
		t.Parallel()
		scaler := &StandardScaler{}
		require.NoError(t, scaler.Fit([][]float64{{1, 2}, {3, 4}}))

		_, err := scaler.Transform([][]float64{{1}})
		assert.Error(t, err)
	})

	t.Run("empty matrix rejected", func(t *testing.T) {
		t.Parallel()
		scaler := &StandardScaler{}
		assert.Error(t, scaler.Fit(nil))
	})
}
