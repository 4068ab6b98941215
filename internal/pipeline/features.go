package pipeline

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/models"
)

// FeatureEngineer 特征工程: 清洗原始行程并计算模型特征。
// 所有方法都是纯函数, 同样的输入永远产出同样的结果。
type FeatureEngineer struct {
	logger *zap.Logger
}

// NewFeatureEngineer 创建特征工程器
func NewFeatureEngineer(logger *zap.Logger) *FeatureEngineer {
	return &FeatureEngineer{logger: logger}
}

// Clean 清洗行程: 计算行程时长, 然后应用四个独立的范围过滤
// (时长、乘客数、距离、车费), 全部通过才保留。越界的行程静默丢弃,
// 不产生错误。
func (f *FeatureEngineer) Clean(trips []models.Trip) []models.Trip {
	cleaned := make([]models.Trip, 0, len(trips))
	for _, t := range trips {
		t.TripDuration = t.DropoffTime.Sub(t.PickupTime).Seconds()

		if t.TripDuration < models.MinTripDuration || t.TripDuration > models.MaxTripDuration {
			continue
		}
		if t.PassengerCount < models.MinPassengers || t.PassengerCount > models.MaxPassengers {
			continue
		}
		if t.TripDistance <= 0 || t.TripDistance > models.MaxTripDistance {
			continue
		}
		if t.FareAmount <= 0 || t.FareAmount > models.MaxFareAmount {
			continue
		}

		cleaned = append(cleaned, t)
	}

	f.logger.Info("Data cleaning finished",
		zap.Int("input", len(trips)),
		zap.Int("kept", len(cleaned)),
		zap.Int("dropped", len(trips)-len(cleaned)),
	)

	return cleaned
}

// EngineerFeatures 计算工程特征。必须在 Clean 之后调用 (依赖 TripDuration)。
// 推理路径对单条请求同样走这里, 保证训练和推理的特征计算一致。
func (f *FeatureEngineer) EngineerFeatures(trips []models.Trip) []models.Trip {
	out := make([]models.Trip, len(trips))
	for i, t := range trips {
		out[i] = engineerOne(t)
	}
	return out
}

func engineerOne(t models.Trip) models.Trip {
	t.PickupHour = t.PickupTime.Hour()
	t.PickupWeekday = mondayWeekday(t.PickupTime)
	t.PickupIsWeekend = t.PickupWeekday >= 5

	t.HourCategory = hourCategory(t.PickupHour)
	t.DistanceCategory = distanceCategory(t.TripDistance)
	t.SpeedMph = speedMph(t.TripDistance, t.TripDuration)

	if t.PULocationID != nil {
		t.IsAirportPickup = models.AirportLocationIDs[*t.PULocationID]
	}
	if t.DOLocationID != nil {
		t.IsAirportDropoff = models.AirportLocationIDs[*t.DOLocationID]
	}
	t.IsRushHour = models.RushHours[t.PickupHour]

	return t
}

// mondayWeekday 转换为周一=0 的星期编号 (Go 的 Weekday 以周日为 0)
func mondayWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// hourCategory 小时分箱, 边界 [0,6,12,18,24], 右闭区间且最低箱含 0
func hourCategory(hour int) string {
	switch {
	case hour <= 6:
		return "Night"
	case hour <= 12:
		return "Morning"
	case hour <= 18:
		return "Afternoon"
	default:
		return "Evening"
	}
}

// distanceCategory 距离分箱, 边界 [0,2,5,10,+inf)
func distanceCategory(miles float64) string {
	switch {
	case miles <= 2:
		return "Short"
	case miles <= 5:
		return "Medium"
	case miles <= 10:
		return "Long"
	default:
		return "Very_Long"
	}
}

// speedMph 平均速度 (mph), 保留两位小数后钳制到 [0,100]。
// 清洗保证 duration >= 30, 但推理路径用占位时长, 这里对 0 也安全。
func speedMph(miles, durationSec float64) float64 {
	speed := miles / (durationSec / 3600)
	speed = math.Round(speed*100) / 100
	if speed < 0 || math.IsNaN(speed) {
		return 0
	}
	if speed > models.MaxSpeedMph {
		return models.MaxSpeedMph
	}
	return speed
}
