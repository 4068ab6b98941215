package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/models"
)

// parquetTrip TLC 月度 Parquet 文件的行结构 (原始列名)。
// passenger_count 和区域 ID 在数据里可为空。
type parquetTrip struct {
	PickupTime     time.Time `parquet:"tpep_pickup_datetime"`
	DropoffTime    time.Time `parquet:"tpep_dropoff_datetime"`
	PassengerCount *float64  `parquet:"passenger_count,optional"`
	TripDistance   float64   `parquet:"trip_distance"`
	PULocationID   *int64    `parquet:"PULocationID,optional"`
	DOLocationID   *int64    `parquet:"DOLocationID,optional"`
	FareAmount     float64   `parquet:"fare_amount"`
}

// ReadParquetFile 读取行程 Parquet 文件。时间戳缺失的行跳过。
func (r *Reader) ReadParquetFile(path string) ([]models.Trip, error) {
	rows, err := parquet.ReadFile[parquetTrip](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}

	trips := make([]models.Trip, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		if row.PickupTime.IsZero() || row.DropoffTime.IsZero() {
			skipped++
			continue
		}

		trip := models.Trip{
			PickupTime:   row.PickupTime,
			DropoffTime:  row.DropoffTime,
			TripDistance: row.TripDistance,
			FareAmount:   row.FareAmount,
		}
		// 空乘客数留 0 交给清洗过滤
		if row.PassengerCount != nil {
			trip.PassengerCount = int(*row.PassengerCount)
		}
		if row.PULocationID != nil {
			pu := int(*row.PULocationID)
			trip.PULocationID = &pu
		}
		if row.DOLocationID != nil {
			do := int(*row.DOLocationID)
			trip.DOLocationID = &do
		}
		trips = append(trips, trip)
	}

	r.logger.Info("Trip file parsed",
		zap.Int("trips", len(trips)),
		zap.Int("skipped", skipped),
	)
	return trips, nil
}

// ReadTripFile 按扩展名选择解析器: .parquet 走 Parquet, 其余按 CSV
func (r *Reader) ReadTripFile(path string) ([]models.Trip, error) {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return r.ReadParquetFile(path)
	}
	return r.ReadFile(path)
}
