package ml

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler 标准化: 零均值、单位方差, 只在训练集上拟合。
// 线性策略必需, 树策略不用。
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Fit 按列计算均值和标准差。方差为 0 的列标准差记为 1, 避免除零。
func (s *StandardScaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return fmt.Errorf("fit scaler: empty matrix")
	}

	p := len(X[0])
	s.Mean = make([]float64, p)
	s.Std = make([]float64, p)

	col := make([]float64, len(X))
	for j := 0; j < p; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		s.Mean[j] = stat.Mean(col, nil)
		s.Std[j] = stat.StdDev(col, nil)
		if s.Std[j] == 0 {
			s.Std[j] = 1
		}
	}
	return nil
}

// Transform 返回标准化后的副本, 不修改输入
func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(s.Mean) {
			return nil, fmt.Errorf("transform: row has %d features, scaler fitted on %d", len(row), len(s.Mean))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.Mean[j]) / s.Std[j]
		}
		out[i] = scaled
	}
	return out, nil
}
