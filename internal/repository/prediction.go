package repository

import (
	"context"
	"fmt"

	"github.com/langchou/tripgazer/internal/models"
)

// PredictionRepository 预测日志仓库
type PredictionRepository struct {
	db *DB
}

// NewPredictionRepository 创建预测日志仓库
func NewPredictionRepository(db *DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// Insert 写入一条预测日志
func (r *PredictionRepository) Insert(ctx context.Context, p *models.PredictionLog) error {
	query := `
		INSERT INTO predictions (pickup_time, trip_distance, passenger_count, pu_location_id, do_location_id, fare_amount, predicted_duration, model_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	err := r.db.Pool.QueryRow(ctx, query,
		p.PickupTime,
		p.TripDistance,
		p.PassengerCount,
		p.PULocationID,
		p.DOLocationID,
		p.FareAmount,
		p.PredictedDuration,
		p.ModelVersion,
	).Scan(&p.ID, &p.CreatedAt)

	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// ListRecent 最近的预测日志, 按时间倒序
func (r *PredictionRepository) ListRecent(ctx context.Context, limit int) ([]*models.PredictionLog, error) {
	query := `
		SELECT id, pickup_time, trip_distance, passenger_count, pu_location_id, do_location_id,
			fare_amount, predicted_duration, model_version, created_at
		FROM predictions ORDER BY created_at DESC LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	var logs []*models.PredictionLog
	for rows.Next() {
		p := &models.PredictionLog{}
		err := rows.Scan(
			&p.ID,
			&p.PickupTime,
			&p.TripDistance,
			&p.PassengerCount,
			&p.PULocationID,
			&p.DOLocationID,
			&p.FareAmount,
			&p.PredictedDuration,
			&p.ModelVersion,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		logs = append(logs, p)
	}

	return logs, nil
}

// Count 预测日志总数
func (r *PredictionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM predictions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count predictions: %w", err)
	}
	return count, nil
}
