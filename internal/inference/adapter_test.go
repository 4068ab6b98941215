package inference

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/ml"
	"github.com/langchou/tripgazer/internal/models"
	"github.com/langchou/tripgazer/internal/pipeline"
)

// trainModel 用合成行程训练一个 baseline 模型并写到临时文件
func trainModel(t *testing.T) string {
	t.Helper()

	var trips []models.Trip
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 200; i++ {
		pu, do := 100+i%50, 120+i%50
		dist := 0.5 + float64(i%40)*0.5
		pickup := base.Add(time.Duration(i) * 17 * time.Minute)
		trips = append(trips, models.Trip{
			PickupTime:     pickup,
			DropoffTime:    pickup.Add(time.Duration(120+60*dist) * time.Second),
			TripDistance:   dist,
			PassengerCount: 1 + i%3,
			FareAmount:     5 + dist*2.5,
			PULocationID:   &pu,
			DOLocationID:   &do,
		})
	}

	engineer := pipeline.NewFeatureEngineer(zap.NewNop())
	builder := pipeline.NewDatasetBuilder(zap.NewNop())

	cleaned := engineer.Clean(trips)
	require.NotEmpty(t, cleaned)
	ds, err := builder.Prepare(engineer.EngineerFeatures(cleaned), nil)
	require.NoError(t, err)

	trainer, err := ml.NewTrainer(zap.NewNop(), ml.StrategyBaseline)
	require.NoError(t, err)
	_, err = trainer.Train(ds, nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, trainer.Save(path, ds.Names))
	return path
}

func sampleRequest() *models.PredictRequest {
	return &models.PredictRequest{
		PickupTime:     "2024-06-15 14:30:00",
		TripDistance:   5.2,
		PassengerCount: 2,
		PULocationID:   161,
		DOLocationID:   230,
		FareAmount:     18.50,
	}
}

func TestAdapterLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("predict before load fails", func(t *testing.T) {
		t.Parallel()
		adapter := NewAdapter(zap.NewNop())
		assert.False(t, adapter.Ready())

		_, err := adapter.Predict(sampleRequest())
		assert.ErrorIs(t, err, ErrModelUnavailable)
	})

	t.Run("load transitions to ready", func(t *testing.T) {
		t.Parallel()
		adapter := NewAdapter(zap.NewNop())
		require.NoError(t, adapter.Load(trainModel(t)))

		assert.True(t, adapter.Ready())
		assert.Equal(t, ml.StrategyBaseline, adapter.Strategy())
		assert.Equal(t, "baseline_v1", adapter.Version())
		assert.NotEmpty(t, adapter.FeatureNames())
	})

	t.Run("load missing file fails and stays uninitialized", func(t *testing.T) {
		t.Parallel()
		adapter := NewAdapter(zap.NewNop())
		assert.Error(t, adapter.Load(filepath.Join(t.TempDir(), "missing.json")))
		assert.False(t, adapter.Ready())
	})

	t.Run("reload over a ready adapter", func(t *testing.T) {
		t.Parallel()
		adapter := NewAdapter(zap.NewNop())
		require.NoError(t, adapter.Load(trainModel(t)))
		require.NoError(t, adapter.Load(trainModel(t)))
		assert.True(t, adapter.Ready())
	})
}

func TestAdapterPredict(t *testing.T) {
	t.Parallel()
	adapter := NewAdapter(zap.NewNop())
	require.NoError(t, adapter.Load(trainModel(t)))

	t.Run("returns positive duration with version", func(t *testing.T) {
		t.Parallel()
		resp, err := adapter.Predict(sampleRequest())
		require.NoError(t, err)
		assert.Equal(t, "baseline_v1", resp.ModelVersion)
		assert.InDelta(t, resp.PredictedDuration/60, resp.PredictedDurationMin, 1e-9)
		assert.False(t, resp.Timestamp.IsZero())
	})

	t.Run("same request gives same prediction", func(t *testing.T) {
		t.Parallel()
		first, err := adapter.Predict(sampleRequest())
		require.NoError(t, err)
		second, err := adapter.Predict(sampleRequest())
		require.NoError(t, err)
		assert.Equal(t, first.PredictedDuration, second.PredictedDuration)
	})

	t.Run("passenger count defaults to one", func(t *testing.T) {
		t.Parallel()
		explicit := sampleRequest()
		explicit.PassengerCount = 1
		implicit := sampleRequest()
		implicit.PassengerCount = 0

		a, err := adapter.Predict(explicit)
		require.NoError(t, err)
		b, err := adapter.Predict(implicit)
		require.NoError(t, err)
		assert.Equal(t, a.PredictedDuration, b.PredictedDuration)
	})

	t.Run("bad pickup time rejected", func(t *testing.T) {
		t.Parallel()
		req := sampleRequest()
		req.PickupTime = "yesterday"
		_, err := adapter.Predict(req)
		assert.Error(t, err)
	})

	t.Run("concurrent predictions are safe", func(t *testing.T) {
		t.Parallel()
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := adapter.Predict(sampleRequest())
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
	})
}

func TestParsePickupTime(t *testing.T) {
	t.Parallel()

	t.Run("space separated layout", func(t *testing.T) {
		t.Parallel()
		ts, err := ParsePickupTime("2024-06-15 14:30:00")
		require.NoError(t, err)
		assert.Equal(t, 14, ts.Hour())
	})

	t.Run("rfc3339", func(t *testing.T) {
		t.Parallel()
		ts, err := ParsePickupTime("2024-06-15T14:30:00Z")
		require.NoError(t, err)
		assert.Equal(t, 30, ts.Minute())
	})

	t.Run("garbage rejected", func(t *testing.T) {
		t.Parallel()
		_, err := ParsePickupTime("15/06/2024")
		assert.Error(t, err)
	})
}

func TestTripFromRequest(t *testing.T) {
	t.Parallel()

	trip, err := TripFromRequest(sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, 600.0, trip.TripDuration)
	assert.Equal(t, trip.PickupTime.Add(600*time.Second), trip.DropoffTime)
	require.NotNil(t, trip.PULocationID)
	assert.Equal(t, 161, *trip.PULocationID)
}

func ExampleParsePickupTime() {
	ts, _ := ParsePickupTime("2024-01-01 10:00:00")
	fmt.Println(ts.Format(time.RFC3339))
	// Output: 2024-01-01T10:00:00Z
}
