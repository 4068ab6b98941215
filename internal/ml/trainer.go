package ml

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/models"
)

// 模型策略标签
const (
	StrategyBaseline     = "baseline"      // 标准化 + 最小二乘
	StrategyRandomForest = "random_forest" // 回归树集成, 不标准化
)

// regressor 回归策略接口。策略在构造时选定, 运行期不可切换。
type regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) []float64
	FeatureImportance() []float64
}

// Importance 特征重要性条目
type Importance struct {
	Feature string  `json:"feature"`
	Score   float64 `json:"score"`
}

// Trainer 模型训练器: 持有策略、可选的标准化器和拟合状态。
// Train 完成后拟合状态不再变化, 并发只读调用 Predict 是安全的。
type Trainer struct {
	logger   *zap.Logger
	strategy string
	scaler   *StandardScaler
	model    regressor
	trained  bool
}

// NewTrainer 创建训练器。未识别的策略标签立即失败。
func NewTrainer(logger *zap.Logger, strategy string) (*Trainer, error) {
	t := &Trainer{logger: logger, strategy: strategy}

	switch strategy {
	case StrategyBaseline:
		t.scaler = &StandardScaler{}
		t.model = NewLinearModel()
	case StrategyRandomForest:
		t.model = NewRandomForest(DefaultForestParams())
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
	return t, nil
}

// Strategy 当前策略标签
func (t *Trainer) Strategy() string {
	return t.strategy
}

// Trained 是否已完成训练
func (t *Trainer) Trained() bool {
	return t.trained
}

// Train 拟合选定的策略并计算训练集 (和可选测试集) 指标。
// 标准化只在训练集上拟合。
func (t *Trainer) Train(train, test *models.Dataset) (*Metrics, error) {
	xTrain := train.X
	xTest := [][]float64(nil)
	if test != nil {
		xTest = test.X
	}

	if t.scaler != nil {
		if err := t.scaler.Fit(train.X); err != nil {
			return nil, err
		}
		var err error
		if xTrain, err = t.scaler.Transform(train.X); err != nil {
			return nil, err
		}
		if test != nil {
			if xTest, err = t.scaler.Transform(test.X); err != nil {
				return nil, err
			}
		}
	}

	t.logger.Info("Training model",
		zap.String("strategy", t.strategy),
		zap.Int("train_samples", len(xTrain)),
		zap.Int("features", len(train.Names)),
	)

	if err := t.model.Fit(xTrain, train.Y); err != nil {
		return nil, fmt.Errorf("fit %s: %w", t.strategy, err)
	}
	t.trained = true

	metrics := &Metrics{
		Strategy: t.strategy,
		Train:    Score(train.Y, t.model.Predict(xTrain)),
	}
	if test != nil && len(test.Y) > 0 {
		s := Score(test.Y, t.model.Predict(xTest))
		metrics.Test = &s
	}

	t.logger.Info("Training finished",
		zap.String("strategy", t.strategy),
		zap.Float64("train_rmse", metrics.Train.RMSE),
		zap.Float64("train_r2", metrics.Train.R2),
	)

	return metrics, nil
}

// Predict 应用同样的标准化 (如有) 后调用拟合状态。未训练时报错。
func (t *Trainer) Predict(X [][]float64) ([]float64, error) {
	if !t.trained {
		return nil, ErrNotTrained
	}

	if t.scaler != nil {
		scaled, err := t.scaler.Transform(X)
		if err != nil {
			return nil, err
		}
		X = scaled
	}
	return t.model.Predict(X), nil
}

// FeatureImportance 按重要性降序返回 (特征名, 得分)
func (t *Trainer) FeatureImportance(names []string) ([]Importance, error) {
	if !t.trained {
		return nil, ErrNotTrained
	}

	scores := t.model.FeatureImportance()
	if len(scores) != len(names) {
		return nil, fmt.Errorf("feature importance: %d scores for %d names", len(scores), len(names))
	}

	out := make([]Importance, len(names))
	for i, n := range names {
		out[i] = Importance{Feature: n, Score: scores[i]}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}
