package models

import "time"

// PredictRequest 预测请求: 行程的已知部分 (下车时间和时长未知)
type PredictRequest struct {
	PickupTime     string  `json:"pickup_time" binding:"required"`
	TripDistance   float64 `json:"trip_distance" binding:"required,gt=0,lte=100"`
	PassengerCount int     `json:"passenger_count" binding:"omitempty,gte=1,lte=8"`
	PULocationID   int     `json:"pu_location_id" binding:"required,gte=1,lte=265"`
	DOLocationID   int     `json:"do_location_id" binding:"required,gte=1,lte=265"`
	FareAmount     float64 `json:"fare_amount" binding:"required,gt=0,lte=1000"`
}

// PredictResponse 预测结果
type PredictResponse struct {
	PredictedDuration    float64   `json:"predicted_duration"` // 秒
	PredictedDurationMin float64   `json:"predicted_duration_minutes"`
	ModelVersion         string    `json:"model_version"`
	Timestamp            time.Time `json:"timestamp"`
}

// PredictionLog 预测日志 (落库用于漂移监控)
type PredictionLog struct {
	ID                int64     `json:"id" db:"id"`
	PickupTime        time.Time `json:"pickup_time" db:"pickup_time"`
	TripDistance      float64   `json:"trip_distance" db:"trip_distance"`
	PassengerCount    int       `json:"passenger_count" db:"passenger_count"`
	PULocationID      int       `json:"pu_location_id" db:"pu_location_id"`
	DOLocationID      int       `json:"do_location_id" db:"do_location_id"`
	FareAmount        float64   `json:"fare_amount" db:"fare_amount"`
	PredictedDuration float64   `json:"predicted_duration" db:"predicted_duration"`
	ModelVersion      string    `json:"model_version" db:"model_version"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
