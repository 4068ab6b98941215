package pipeline

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/models"
)

// DefaultMissingTolerance 冻结列集合中允许缺失 (补 0) 的最大比例。
// 超过则判定为特征布局不匹配, 拒绝继续而不是静默编造一半的输入。
const DefaultMissingTolerance = 0.5

// baseFeatures 固定顺序的基础特征列
var baseFeatures = []string{
	"trip_distance",
	"passenger_count",
	"pickup_hour",
	"pickup_weekday",
	"pickup_is_weekend",
	"is_rush_hour",
	"is_airport_pickup",
	"is_airport_dropoff",
	"speed_mph",
}

// FeatureMismatchError 冻结特征列表与当前数据差异过大
type FeatureMismatchError struct {
	Expected  int
	Missing   []string
	Tolerance float64
}

func (e *FeatureMismatchError) Error() string {
	return fmt.Sprintf("feature mismatch: %d of %d frozen features missing (tolerance %.0f%%): %s",
		len(e.Missing), e.Expected, e.Tolerance*100, strings.Join(e.Missing, ", "))
}

// DatasetBuilder 数据集构建: 选取特征列、one-hot 展开分类特征、
// 丢弃含缺失值的行, 产出 X / y / 列名。
type DatasetBuilder struct {
	logger *zap.Logger

	// MissingTolerance 见 DefaultMissingTolerance
	MissingTolerance float64
}

// NewDatasetBuilder 创建数据集构建器
func NewDatasetBuilder(logger *zap.Logger) *DatasetBuilder {
	return &DatasetBuilder{
		logger:           logger,
		MissingTolerance: DefaultMissingTolerance,
	}
}

// Prepare 构建模型数据集。frozen 为空时 (训练) 按固定顺序生成列:
// 基础特征 + 位置 ID (如存在) + 分类特征的 one-hot 展开。
// frozen 非空时 (推理) 输出严格按 frozen 的列集合和顺序重排:
// 缺失列补 0, 多余列丢弃; 缺失比例超过 MissingTolerance 时返回
// FeatureMismatchError。
func (b *DatasetBuilder) Prepare(trips []models.Trip, frozen []string) (*models.Dataset, error) {
	names := b.featureNames(trips)

	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}

	// 冻结列映射: target[i] = 自然列下标, -1 表示缺失补 0
	var mapping []int
	outNames := names
	if len(frozen) > 0 {
		mapping = make([]int, len(frozen))
		var missing []string
		for i, n := range frozen {
			if j, ok := index[n]; ok {
				mapping[i] = j
			} else {
				mapping[i] = -1
				missing = append(missing, n)
			}
		}
		if float64(len(missing)) > b.MissingTolerance*float64(len(frozen)) {
			return nil, &FeatureMismatchError{
				Expected:  len(frozen),
				Missing:   missing,
				Tolerance: b.MissingTolerance,
			}
		}
		outNames = append([]string(nil), frozen...)
	}

	X := make([][]float64, 0, len(trips))
	y := make([]float64, 0, len(trips))
	dropped := 0

	for _, t := range trips {
		row := featureRow(&t, names)

		if hasNaN(row) || math.IsNaN(t.TripDuration) {
			dropped++
			continue
		}

		if mapping != nil {
			reindexed := make([]float64, len(mapping))
			for i, j := range mapping {
				if j >= 0 {
					reindexed[i] = row[j]
				}
			}
			row = reindexed
		}

		X = append(X, row)
		y = append(y, t.TripDuration)
	}

	b.logger.Info("Model data prepared",
		zap.Int("features", len(outNames)),
		zap.Int("samples", len(X)),
		zap.Int("dropped", dropped),
	)

	return &models.Dataset{X: X, Y: y, Names: outNames}, nil
}

// featureNames 自然列顺序: 基础列, 位置 ID (任一行程带有才加入),
// 然后按封闭枚举顺序追加 one-hot 列。
func (b *DatasetBuilder) featureNames(trips []models.Trip) []string {
	names := append([]string(nil), baseFeatures...)

	if anyPULocation(trips) {
		names = append(names, "pu_location_id")
	}
	if anyDOLocation(trips) {
		names = append(names, "do_location_id")
	}
	for _, cat := range models.HourCategories {
		names = append(names, "hour_category_"+cat)
	}
	for _, cat := range models.DistanceCategories {
		names = append(names, "distance_category_"+cat)
	}
	return names
}

// featureRow 单条行程的特征行, 列与 names 对齐。缺失值以 NaN 标记。
func featureRow(t *models.Trip, names []string) []float64 {
	row := make([]float64, len(names))
	for i, n := range names {
		switch n {
		case "trip_distance":
			row[i] = t.TripDistance
		case "passenger_count":
			row[i] = float64(t.PassengerCount)
		case "pickup_hour":
			row[i] = float64(t.PickupHour)
		case "pickup_weekday":
			row[i] = float64(t.PickupWeekday)
		case "pickup_is_weekend":
			row[i] = boolToFloat(t.PickupIsWeekend)
		case "is_rush_hour":
			row[i] = boolToFloat(t.IsRushHour)
		case "is_airport_pickup":
			row[i] = boolToFloat(t.IsAirportPickup)
		case "is_airport_dropoff":
			row[i] = boolToFloat(t.IsAirportDropoff)
		case "speed_mph":
			row[i] = t.SpeedMph
		case "pu_location_id":
			row[i] = intPtrToFloat(t.PULocationID)
		case "do_location_id":
			row[i] = intPtrToFloat(t.DOLocationID)
		default:
			row[i] = dummyValue(t, n)
		}
	}
	return row
}

// dummyValue one-hot 列取值。未工程化的行程 (分类为空) 视为缺失。
func dummyValue(t *models.Trip, name string) float64 {
	if cat, ok := strings.CutPrefix(name, "hour_category_"); ok {
		if t.HourCategory == "" {
			return math.NaN()
		}
		return boolToFloat(t.HourCategory == cat)
	}
	if cat, ok := strings.CutPrefix(name, "distance_category_"); ok {
		if t.DistanceCategory == "" {
			return math.NaN()
		}
		return boolToFloat(t.DistanceCategory == cat)
	}
	return math.NaN()
}

func anyPULocation(trips []models.Trip) bool {
	for i := range trips {
		if trips[i].PULocationID != nil {
			return true
		}
	}
	return false
}

func anyDOLocation(trips []models.Trip) bool {
	for i := range trips {
		if trips[i].DOLocationID != nil {
			return true
		}
	}
	return false
}

func hasNaN(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func intPtrToFloat(p *int) float64 {
	if p == nil {
		return math.NaN()
	}
	return float64(*p)
}
