package ml

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Scores 一组回归指标
type Scores struct {
	RMSE    float64 `json:"rmse"`
	MAE     float64 `json:"mae"`
	R2      float64 `json:"r2"`
	Samples int     `json:"samples"`
}

// Metrics 一次训练的训练/测试指标
type Metrics struct {
	Strategy string  `json:"strategy"`
	Train    Scores  `json:"train"`
	Test     *Scores `json:"test,omitempty"`
}

// Evaluation 独立评估报告, 在基本指标之上附带 MAPE 和残差统计
type Evaluation struct {
	Scores
	MAPE         float64 `json:"mape"`
	MeanResidual float64 `json:"mean_residual"`
	StdResidual  float64 `json:"std_residual"`
	MinResidual  float64 `json:"min_residual"`
	MaxResidual  float64 `json:"max_residual"`
}

// Score 计算标准回归指标。目标方差为 0 时 R² 规定为 0 而不是 NaN。
func Score(yTrue, yPred []float64) Scores {
	n := len(yTrue)
	if n == 0 {
		return Scores{}
	}

	meanTrue := stat.Mean(yTrue, nil)

	var ssRes, ssTot, absSum float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		ssRes += d * d
		absSum += math.Abs(d)
		t := yTrue[i] - meanTrue
		ssTot += t * t
	}

	r2 := 0.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}

	return Scores{
		RMSE:    math.Sqrt(ssRes / float64(n)),
		MAE:     absSum / float64(n),
		R2:      r2,
		Samples: n,
	}
}

// Evaluate 完整评估: 标准指标 + MAPE + 残差分布
func Evaluate(yTrue, yPred []float64) Evaluation {
	ev := Evaluation{Scores: Score(yTrue, yPred)}
	if len(yTrue) == 0 {
		return ev
	}

	residuals := make([]float64, len(yTrue))
	var mapeSum float64
	mapeN := 0
	for i := range yTrue {
		residuals[i] = yTrue[i] - yPred[i]
		if yTrue[i] != 0 {
			mapeSum += math.Abs(residuals[i] / yTrue[i])
			mapeN++
		}
	}
	if mapeN > 0 {
		ev.MAPE = mapeSum / float64(mapeN) * 100
	}

	ev.MeanResidual = stat.Mean(residuals, nil)
	ev.StdResidual = stat.StdDev(residuals, nil)
	ev.MinResidual = residuals[0]
	ev.MaxResidual = residuals[0]
	for _, r := range residuals[1:] {
		ev.MinResidual = math.Min(ev.MinResidual, r)
		ev.MaxResidual = math.Max(ev.MaxResidual, r)
	}
	return ev
}
