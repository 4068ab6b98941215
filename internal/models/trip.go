package models

import "time"

// 数据清洗阈值。超出任一范围的行程直接丢弃, 不做修正。
const (
	MinTripDuration = 30.0    // 秒
	MaxTripDuration = 10800.0 // 3 小时
	MinPassengers   = 1
	MaxPassengers   = 8
	MaxTripDistance = 100.0 // 英里
	MaxFareAmount   = 1000.0
	MaxSpeedMph     = 100.0
)

// AirportLocationIDs 机场区域 ID (JFK, LGA, EWR)
var AirportLocationIDs = map[int]bool{132: true, 138: true, 161: true}

// RushHours 早晚高峰时段
var RushHours = map[int]bool{7: true, 8: true, 9: true, 17: true, 18: true, 19: true}

// 分类特征为固定的封闭枚举。one-hot 列集合由这里派生, 而不是从批次数据
// 中推断, 训练和推理的特征布局因此不会漂移。
var (
	HourCategories     = []string{"Night", "Morning", "Afternoon", "Evening"}
	DistanceCategories = []string{"Short", "Medium", "Long", "Very_Long"}
)

// Trip 行程记录 (原始字段 + 管道填充的工程特征字段)
type Trip struct {
	ID             int64     `json:"id" db:"id"`
	PickupTime     time.Time `json:"pickup_time" db:"pickup_time"`
	DropoffTime    time.Time `json:"dropoff_time" db:"dropoff_time"`
	TripDistance   float64   `json:"trip_distance" db:"trip_distance"` // 英里
	PassengerCount int       `json:"passenger_count" db:"passenger_count"`
	FareAmount     float64   `json:"fare_amount" db:"fare_amount"`
	PULocationID   *int      `json:"pu_location_id,omitempty" db:"pu_location_id"`
	DOLocationID   *int      `json:"do_location_id,omitempty" db:"do_location_id"`

	// Clean 填充
	TripDuration float64 `json:"trip_duration" db:"trip_duration"` // 秒

	// EngineerFeatures 填充
	PickupHour       int     `json:"pickup_hour" db:"pickup_hour"`       // 0-23
	PickupWeekday    int     `json:"pickup_weekday" db:"pickup_weekday"` // 0=周一
	PickupIsWeekend  bool    `json:"pickup_is_weekend" db:"pickup_is_weekend"`
	HourCategory     string  `json:"hour_category" db:"hour_category"`
	DistanceCategory string  `json:"distance_category" db:"distance_category"`
	SpeedMph         float64 `json:"speed_mph" db:"speed_mph"`
	IsAirportPickup  bool    `json:"is_airport_pickup" db:"is_airport_pickup"`
	IsAirportDropoff bool    `json:"is_airport_dropoff" db:"is_airport_dropoff"`
	IsRushHour       bool    `json:"is_rush_hour" db:"is_rush_hour"`
}

// Dataset 模型数据集: 特征矩阵 X、目标向量 Y 和规范列名。
// len(X) == len(Y) 恒成立; Names 的顺序是训练和推理之间的契约。
type Dataset struct {
	X     [][]float64
	Y     []float64
	Names []string
}
