package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/tripgazer/internal/models"
)

// TripRepository 行程数据仓库
type TripRepository struct {
	db *DB
}

// NewTripRepository 创建行程仓库
func NewTripRepository(db *DB) *TripRepository {
	return &TripRepository{db: db}
}

// BulkInsert 批量写入行程 (COPY 协议)
func (r *TripRepository) BulkInsert(ctx context.Context, trips []models.Trip) (int64, error) {
	rows := make([][]interface{}, len(trips))
	for i, t := range trips {
		rows[i] = []interface{}{
			t.PickupTime,
			t.DropoffTime,
			t.TripDistance,
			t.PassengerCount,
			t.FareAmount,
			t.PULocationID,
			t.DOLocationID,
			t.TripDuration,
		}
	}

	count, err := r.db.Pool.CopyFrom(ctx,
		pgx.Identifier{"trips"},
		[]string{"pickup_time", "dropoff_time", "trip_distance", "passenger_count", "fare_amount", "pu_location_id", "do_location_id", "trip_duration"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("copy trips: %w", err)
	}
	return count, nil
}

// GetByID 获取行程
func (r *TripRepository) GetByID(ctx context.Context, id int64) (*models.Trip, error) {
	query := `
		SELECT id, pickup_time, dropoff_time, trip_distance, passenger_count, fare_amount,
			pu_location_id, do_location_id, trip_duration
		FROM trips WHERE id = $1
	`
	trip := &models.Trip{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&trip.ID,
		&trip.PickupTime,
		&trip.DropoffTime,
		&trip.TripDistance,
		&trip.PassengerCount,
		&trip.FareAmount,
		&trip.PULocationID,
		&trip.DOLocationID,
		&trip.TripDuration,
	)
	if err != nil {
		return nil, fmt.Errorf("get trip by id: %w", err)
	}
	return trip, nil
}

// List 按上车时间倒序分页
func (r *TripRepository) List(ctx context.Context, limit, offset int) ([]*models.Trip, error) {
	query := `
		SELECT id, pickup_time, dropoff_time, trip_distance, passenger_count, fare_amount,
			pu_location_id, do_location_id, trip_duration
		FROM trips ORDER BY pickup_time DESC LIMIT $1 OFFSET $2
	`
	return r.queryTrips(ctx, query, limit, offset)
}

// ListForTraining 按上车时间顺序取训练用行程, 返回值切片方便直接喂给流水线
func (r *TripRepository) ListForTraining(ctx context.Context, limit int) ([]models.Trip, error) {
	query := `
		SELECT id, pickup_time, dropoff_time, trip_distance, passenger_count, fare_amount,
			pu_location_id, do_location_id, trip_duration
		FROM trips ORDER BY pickup_time ASC LIMIT $1
	`
	ptrs, err := r.queryTrips(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	trips := make([]models.Trip, len(ptrs))
	for i, t := range ptrs {
		trips[i] = *t
	}
	return trips, nil
}

// Count 行程总数
func (r *TripRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM trips`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count trips: %w", err)
	}
	return count, nil
}

func (r *TripRepository) queryTrips(ctx context.Context, query string, args ...interface{}) ([]*models.Trip, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	var trips []*models.Trip
	for rows.Next() {
		trip := &models.Trip{}
		err := rows.Scan(
			&trip.ID,
			&trip.PickupTime,
			&trip.DropoffTime,
			&trip.TripDistance,
			&trip.PassengerCount,
			&trip.FareAmount,
			&trip.PULocationID,
			&trip.DOLocationID,
			&trip.TripDuration,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		trips = append(trips, trip)
	}

	return trips, nil
}
