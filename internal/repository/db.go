package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB 数据库连接池封装
type DB struct {
	Pool *pgxpool.Pool
}

// New 创建数据库连接
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close 关闭连接池
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate 执行数据库迁移
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationCreateTrips,
		migrationCreatePredictions,
		migrationCreateModelArtifacts,
	}

	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// 数据库迁移 SQL
const migrationCreateTrips = `
CREATE TABLE IF NOT EXISTS trips (
    id BIGSERIAL PRIMARY KEY,
    pickup_time TIMESTAMP WITH TIME ZONE NOT NULL,
    dropoff_time TIMESTAMP WITH TIME ZONE NOT NULL,
    trip_distance DOUBLE PRECISION NOT NULL,
    passenger_count INT,
    fare_amount DOUBLE PRECISION,
    pu_location_id INT,
    do_location_id INT,
    trip_duration DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS idx_trips_pickup_time ON trips(pickup_time);
`

const migrationCreatePredictions = `
CREATE TABLE IF NOT EXISTS predictions (
    id BIGSERIAL PRIMARY KEY,
    pickup_time TIMESTAMP WITH TIME ZONE NOT NULL,
    trip_distance DOUBLE PRECISION NOT NULL,
    passenger_count INT,
    pu_location_id INT,
    do_location_id INT,
    fare_amount DOUBLE PRECISION,
    predicted_duration DOUBLE PRECISION NOT NULL,
    model_version VARCHAR(50),
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
`

const migrationCreateModelArtifacts = `
CREATE TABLE IF NOT EXISTS model_artifacts (
    id BIGSERIAL PRIMARY KEY,
    strategy VARCHAR(50) NOT NULL,
    artifact BYTEA NOT NULL,
    feature_count INT NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_model_artifacts_created_at ON model_artifacts(created_at);
`
