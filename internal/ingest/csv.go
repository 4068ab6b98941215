package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

// 黄色出租车行程数据的列名 (TLC 原始命名)
var tripColumns = map[string]bool{
	"tpep_pickup_datetime":  true,
	"tpep_dropoff_datetime": true,
	"passenger_count":       true,
	"trip_distance":         true,
	"fare_amount":           true,
	"pulocationid":          true,
	"dolocationid":          true,
}

// Reader 行程 CSV 读取器。单行解析失败只跳过该行, 不中断整个批次。
type Reader struct {
	logger *zap.Logger
}

// NewReader 创建读取器
func NewReader(logger *zap.Logger) *Reader {
	return &Reader{logger: logger}
}

// ReadFile 读取行程 CSV 文件
func (r *Reader) ReadFile(path string) ([]models.Trip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trip file: %w", err)
	}
	defer f.Close()

	trips, err := r.Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return trips, nil
}

// Read 从流解析行程记录
func (r *Reader) Read(src io.Reader) ([]models.Trip, error) {
	cr := csv.NewReader(src)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int)
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if tripColumns[name] {
			idx[name] = i
		}
	}
	for _, required := range []string{"tpep_pickup_datetime", "tpep_dropoff_datetime", "trip_distance", "fare_amount"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var trips []models.Trip
	skipped := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		trip, ok := parseTrip(record, idx)
		if !ok {
			skipped++
			continue
		}
		trips = append(trips, trip)
	}

	r.logger.Info("Trip file parsed",
		zap.Int("trips", len(trips)),
		zap.Int("skipped", skipped),
	)
	return trips, nil
}

func parseTrip(record []string, idx map[string]int) (models.Trip, bool) {
	var t models.Trip
	var err error

	if t.PickupTime, err = time.Parse(timeLayout, field(record, idx, "tpep_pickup_datetime")); err != nil {
		return t, false
	}
	if t.DropoffTime, err = time.Parse(timeLayout, field(record, idx, "tpep_dropoff_datetime")); err != nil {
		return t, false
	}
	if t.TripDistance, err = strconv.ParseFloat(field(record, idx, "trip_distance"), 64); err != nil {
		return t, false
	}
	if t.FareAmount, err = strconv.ParseFloat(field(record, idx, "fare_amount"), 64); err != nil {
		return t, false
	}

	// 乘客数在部分数据里为空, 留 0 交给清洗过滤
	if s := field(record, idx, "passenger_count"); s != "" {
		// 历史数据里出现过 "1.0" 形式
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			t.PassengerCount = int(v)
		}
	}

	if v, err := strconv.Atoi(field(record, idx, "pulocationid")); err == nil {
		t.PULocationID = &v
	}
	if v, err := strconv.Atoi(field(record, idx, "dolocationid")); err == nil {
		t.DOLocationID = &v
	}

	return t, true
}

func field(record []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
