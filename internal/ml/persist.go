package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// Artifact 持久化的模型产物: 策略标签、标准化器 (线性策略才有)、
// 拟合状态和训练时冻结的特征列表。JSON 序列化对这三元组是无损的,
// 保存前后的预测在浮点容差内一致。
type Artifact struct {
	Strategy     string          `json:"strategy"`
	Scaler       *StandardScaler `json:"scaler,omitempty"`
	Linear       *LinearModel    `json:"linear,omitempty"`
	Forest       *RandomForest   `json:"forest,omitempty"`
	FeatureNames []string        `json:"feature_names"`
	TrainedAt    time.Time       `json:"trained_at"`
}

// Save 写出模型产物。未训练时报 ErrNotTrained。
func (t *Trainer) Save(path string, featureNames []string) error {
	if !t.trained {
		return ErrNotTrained
	}

	artifact := Artifact{
		Strategy:     t.strategy,
		Scaler:       t.scaler,
		FeatureNames: featureNames,
		TrainedAt:    time.Now().UTC(),
	}
	switch m := t.model.(type) {
	case *LinearModel:
		artifact.Linear = m
	case *RandomForest:
		artifact.Forest = m
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// Load 从模型产物恢复训练器, 返回冻结的特征列表
func Load(logger *zap.Logger, path string) (*Trainer, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read artifact: %w", err)
	}
	return LoadBytes(logger, data)
}

// LoadBytes 从序列化的产物字节恢复训练器
func LoadBytes(logger *zap.Logger, data []byte) (*Trainer, []string, error) {
	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, nil, fmt.Errorf("unmarshal artifact: %w", err)
	}

	t := &Trainer{logger: logger, strategy: artifact.Strategy, scaler: artifact.Scaler}

	switch artifact.Strategy {
	case StrategyBaseline:
		if artifact.Linear == nil {
			return nil, nil, fmt.Errorf("artifact: baseline strategy without linear state")
		}
		t.model = artifact.Linear
	case StrategyRandomForest:
		if artifact.Forest == nil {
			return nil, nil, fmt.Errorf("artifact: random_forest strategy without forest state")
		}
		t.model = artifact.Forest
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, artifact.Strategy)
	}

	t.trained = true
	return t, artifact.FeatureNames, nil
}
