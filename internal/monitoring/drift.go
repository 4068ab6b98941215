package monitoring

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/langchou/tripgazer/internal/models"
)

// 默认阈值: 单特征 KS 统计量超过 StatThreshold 视为漂移,
// 漂移特征占比超过 ShareThreshold 视为数据集整体漂移。
const (
	DefaultStatThreshold  = 0.1
	DefaultShareThreshold = 0.5
)

// FeatureDrift 单特征漂移结果
type FeatureDrift struct {
	Feature   string  `json:"feature"`
	Statistic float64 `json:"statistic"`
	Drifted   bool    `json:"drifted"`
}

// Report 漂移检测报告
type Report struct {
	Timestamp    time.Time      `json:"timestamp"`
	DatasetDrift bool           `json:"dataset_drift"`
	DriftShare   float64        `json:"drift_share"`
	Features     []FeatureDrift `json:"features"`
}

// DriftedFeatures 漂移特征名列表
func (r *Report) DriftedFeatures() []string {
	var out []string
	for _, f := range r.Features {
		if f.Drifted {
			out = append(out, f.Feature)
		}
	}
	return out
}

// Monitor 特征漂移监控: 对每个特征做双样本 Kolmogorov-Smirnov 检验,
// 比较训练时冻结的参考样本和当前批次的分布。
type Monitor struct {
	logger    *zap.Logger
	reference [][]float64
	names     []string

	StatThreshold  float64
	ShareThreshold float64
}

// NewMonitor 创建监控器, reference 为训练时的特征矩阵
func NewMonitor(logger *zap.Logger, reference *models.Dataset) *Monitor {
	return &Monitor{
		logger:         logger,
		reference:      reference.X,
		names:          reference.Names,
		StatThreshold:  DefaultStatThreshold,
		ShareThreshold: DefaultShareThreshold,
	}
}

// Detect 对当前批次做漂移检测。列布局必须与参考一致。
func (m *Monitor) Detect(current [][]float64) (*Report, error) {
	if len(m.reference) == 0 || len(current) == 0 {
		return nil, fmt.Errorf("drift detect: empty reference or current batch")
	}
	if len(current[0]) != len(m.names) {
		return nil, fmt.Errorf("drift detect: current batch has %d columns, reference has %d",
			len(current[0]), len(m.names))
	}

	report := &Report{
		Timestamp: time.Now().UTC(),
		Features:  make([]FeatureDrift, len(m.names)),
	}

	drifted := 0
	for j, name := range m.names {
		ks := ksStatistic(column(m.reference, j), column(current, j))
		fd := FeatureDrift{
			Feature:   name,
			Statistic: ks,
			Drifted:   ks > m.StatThreshold,
		}
		if fd.Drifted {
			drifted++
		}
		report.Features[j] = fd
	}

	report.DriftShare = float64(drifted) / float64(len(m.names))
	report.DatasetDrift = report.DriftShare > m.ShareThreshold

	m.logger.Info("Drift detection finished",
		zap.Float64("drift_share", report.DriftShare),
		zap.Bool("dataset_drift", report.DatasetDrift),
		zap.Strings("drifted", report.DriftedFeatures()),
	)

	return report, nil
}

// ksStatistic 双样本 KS 统计量。gonum 要求输入有序, 这里排序副本。
func ksStatistic(x, y []float64) float64 {
	sort.Float64s(x)
	sort.Float64s(y)
	return stat.KolmogorovSmirnov(x, nil, y, nil)
}

func column(X [][]float64, j int) []float64 {
	out := make([]float64, len(X))
	for i := range X {
		out[i] = X[i][j]
	}
	return out
}
