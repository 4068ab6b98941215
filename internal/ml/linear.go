package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LinearModel 普通最小二乘回归。输入应已标准化 (由 Trainer 负责)。
type LinearModel struct {
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

// NewLinearModel 创建线性模型
func NewLinearModel() *LinearModel {
	return &LinearModel{}
}

// Fit 最小二乘拟合, QR 分解求解带截距的设计矩阵
func (m *LinearModel) Fit(X [][]float64, y []float64) error {
	n := len(X)
	if n == 0 {
		return fmt.Errorf("fit linear: empty training set")
	}
	if n != len(y) {
		return fmt.Errorf("fit linear: %d rows but %d targets", n, len(y))
	}
	p := len(X[0])

	// 设计矩阵, 首列为截距
	a := mat.NewDense(n, p+1, nil)
	for i, row := range X {
		a.Set(i, 0, 1)
		for j, v := range row {
			a.Set(i, j+1, v)
		}
	}
	b := mat.NewDense(n, 1, y)

	var qr mat.QR
	qr.Factorize(a)

	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, b); err != nil {
		return fmt.Errorf("solve least squares: %w", err)
	}

	m.Intercept = beta.At(0, 0)
	m.Coef = make([]float64, p)
	for j := 0; j < p; j++ {
		m.Coef[j] = beta.At(j+1, 0)
	}
	return nil
}

// Predict 逐行点积加截距
func (m *LinearModel) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		sum := m.Intercept
		for j, v := range row {
			sum += m.Coef[j] * v
		}
		out[i] = sum
	}
	return out
}

// FeatureImportance 线性模型的重要性取系数绝对值
func (m *LinearModel) FeatureImportance() []float64 {
	out := make([]float64, len(m.Coef))
	for j, c := range m.Coef {
		out[j] = math.Abs(c)
	}
	return out
}
