package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleCSV = `VendorID,tpep_pickup_datetime,tpep_dropoff_datetime,passenger_count,trip_distance,PULocationID,DOLocationID,fare_amount
1,2024-01-01 10:00:00,2024-01-01 10:12:00,1,2.5,100,200,15.0
2,2024-01-01 11:00:00,2024-01-01 11:30:00,2.0,8.1,132,230,35.5
1,not-a-date,2024-01-01 12:00:00,1,1.0,50,60,8.0
2,2024-01-02 09:00:00,2024-01-02 09:05:00,,0.8,41,42,6.0
`

func TestRead(t *testing.T) {
	t.Parallel()
	reader := NewReader(zap.NewNop())

	t.Run("parses valid rows and skips broken ones", func(t *testing.T) {
		t.Parallel()
		trips, err := reader.Read(strings.NewReader(sampleCSV))
		require.NoError(t, err)
		require.Len(t, trips, 3) // 第三行日期非法被跳过

		first := trips[0]
		assert.Equal(t, 2.5, first.TripDistance)
		assert.Equal(t, 1, first.PassengerCount)
		assert.Equal(t, 15.0, first.FareAmount)
		assert.Equal(t, 10, first.PickupTime.Hour())
		require.NotNil(t, first.PULocationID)
		assert.Equal(t, 100, *first.PULocationID)
	})

	t.Run("float passenger count accepted", func(t *testing.T) {
		t.Parallel()
		trips, err := reader.Read(strings.NewReader(sampleCSV))
		require.NoError(t, err)
		assert.Equal(t, 2, trips[1].PassengerCount)
	})

	t.Run("empty passenger count stays zero", func(t *testing.T) {
		t.Parallel()
		trips, err := reader.Read(strings.NewReader(sampleCSV))
		require.NoError(t, err)
		assert.Equal(t, 0, trips[2].PassengerCount)
	})

	t.Run("header casing is ignored", func(t *testing.T) {
		t.Parallel()
		upper := strings.Replace(sampleCSV, "tpep_pickup_datetime", "Tpep_Pickup_Datetime", 1)
		trips, err := reader.Read(strings.NewReader(upper))
		require.NoError(t, err)
		assert.Len(t, trips, 3)
	})

	t.Run("missing required column fails", func(t *testing.T) {
		t.Parallel()
		_, err := reader.Read(strings.NewReader("a,b,c\n1,2,3\n"))
		assert.Error(t, err)
	})

	t.Run("empty input fails on header", func(t *testing.T) {
		t.Parallel()
		_, err := reader.Read(strings.NewReader(""))
		assert.Error(t, err)
	})
}

func TestReadFile(t *testing.T) {
	t.Parallel()
	reader := NewReader(zap.NewNop())

	t.Run("reads from disk", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "trips.csv")
		require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0644))

		trips, err := reader.ReadFile(path)
		require.NoError(t, err)
		assert.Len(t, trips, 3)
	})

	t.Run("missing file fails", func(t *testing.T) {
		t.Parallel()
		_, err := reader.ReadFile(filepath.Join(t.TempDir(), "nope.csv"))
		assert.Error(t, err)
	})
}
