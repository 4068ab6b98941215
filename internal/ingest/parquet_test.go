package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeParquetFixture(t *testing.T, rows []parquetTrip) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yellow_tripdata_2024-01.parquet")
	require.NoError(t, parquet.WriteFile(path, rows))
	return path
}

func floatPtr(v float64) *float64 { return &v }
func int64Ptr(v int64) *int64     { return &v }

func TestReadParquetFile(t *testing.T) {
	t.Parallel()
	reader := NewReader(zap.NewNop())

	pickup := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	dropoff := pickup.Add(12 * time.Minute)

	t.Run("converts rows to trips", func(t *testing.T) {
		t.Parallel()
		path := writeParquetFixture(t, []parquetTrip{
			{
				PickupTime:     pickup,
				DropoffTime:    dropoff,
				PassengerCount: floatPtr(1),
				TripDistance:   2.5,
				PULocationID:   int64Ptr(100),
				DOLocationID:   int64Ptr(200),
				FareAmount:     15.0,
			},
		})

		trips, err := reader.ReadParquetFile(path)
		require.NoError(t, err)
		require.Len(t, trips, 1)

		trip := trips[0]
		assert.Equal(t, 2.5, trip.TripDistance)
		assert.Equal(t, 1, trip.PassengerCount)
		assert.Equal(t, 15.0, trip.FareAmount)
		assert.Equal(t, 10, trip.PickupTime.Hour())
		require.NotNil(t, trip.PULocationID)
		assert.Equal(t, 100, *trip.PULocationID)
		require.NotNil(t, trip.DOLocationID)
		assert.Equal(t, 200, *trip.DOLocationID)
	})

	t.Run("null optionals stay unset", func(t *testing.T) {
		t.Parallel()
		path := writeParquetFixture(t, []parquetTrip{
			{
				PickupTime:   pickup,
				DropoffTime:  dropoff,
				TripDistance: 0.8,
				FareAmount:   6.0,
			},
		})

		trips, err := reader.ReadParquetFile(path)
		require.NoError(t, err)
		require.Len(t, trips, 1)
		assert.Equal(t, 0, trips[0].PassengerCount)
		assert.Nil(t, trips[0].PULocationID)
		assert.Nil(t, trips[0].DOLocationID)
	})

	t.Run("rows without timestamps are skipped", func(t *testing.T) {
		t.Parallel()
		path := writeParquetFixture(t, []parquetTrip{
			{PickupTime: pickup, DropoffTime: dropoff, TripDistance: 2.5, FareAmount: 15.0},
			{TripDistance: 1.0, FareAmount: 8.0},
		})

		trips, err := reader.ReadParquetFile(path)
		require.NoError(t, err)
		assert.Len(t, trips, 1)
	})

	t.Run("missing file fails", func(t *testing.T) {
		t.Parallel()
		_, err := reader.ReadParquetFile(filepath.Join(t.TempDir(), "nope.parquet"))
		assert.Error(t, err)
	})
}

func TestReadTripFile(t *testing.T) {
	t.Parallel()
	reader := NewReader(zap.NewNop())

	t.Run("parquet extension uses parquet parser", func(t *testing.T) {
		t.Parallel()
		pickup := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
		path := writeParquetFixture(t, []parquetTrip{
			{PickupTime: pickup, DropoffTime: pickup.Add(10 * time.Minute), TripDistance: 3.0, FareAmount: 12.0},
		})

		trips, err := reader.ReadTripFile(path)
		require.NoError(t, err)
		assert.Len(t, trips, 1)
	})

	t.Run("csv extension uses csv parser", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "trips.csv")
		require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0644))

		trips, err := reader.ReadTripFile(path)
		require.NoError(t, err)
		assert.Len(t, trips, 3)
	})
}
