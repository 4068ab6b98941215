package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/config"
	"github.com/langchou/tripgazer/internal/ml"
	"github.com/langchou/tripgazer/internal/models"
	"github.com/langchou/tripgazer/internal/pipeline"
	"github.com/langchou/tripgazer/internal/repository"
	"github.com/langchou/tripgazer/pkg/ws"
)

// TrainingService 训练服务: 按固定顺序编排
// 清洗 -> 特征工程 -> 数据集构建 -> 切分 -> 训练 -> 持久化。
type TrainingService struct {
	cfg      *config.Config
	logger   *zap.Logger
	engineer *pipeline.FeatureEngineer
	builder  *pipeline.DatasetBuilder

	// 可选依赖
	wsHub        *ws.Hub
	artifactRepo *repository.ArtifactRepository
}

// TrainingResult 一次训练的产出
type TrainingResult struct {
	Metrics      *ml.Metrics     `json:"metrics"`
	FeatureNames []string        `json:"feature_names"`
	Importance   []ml.Importance `json:"importance"`
	CleanedCount int             `json:"cleaned_count"`
	ModelPath    string          `json:"model_path"`
}

// NewTrainingService 创建训练服务
func NewTrainingService(cfg *config.Config, logger *zap.Logger) *TrainingService {
	return &TrainingService{
		cfg:      cfg,
		logger:   logger,
		engineer: pipeline.NewFeatureEngineer(logger),
		builder:  pipeline.NewDatasetBuilder(logger),
	}
}

// SetHub 附加 WebSocket Hub, 训练进度会广播给订阅者
func (s *TrainingService) SetHub(hub *ws.Hub) {
	s.wsHub = hub
}

// SetArtifactRepository 附加产物仓库, 训练完成后产物同时落库
func (s *TrainingService) SetArtifactRepository(repo *repository.ArtifactRepository) {
	s.artifactRepo = repo
}

// Train 完整训练流程。清洗后无幸存记录视为致命错误;
// 单条脏记录不会中断批次。
func (s *TrainingService) Train(ctx context.Context, trips []models.Trip, strategy string) (*TrainingResult, error) {
	trainer, err := ml.NewTrainer(s.logger, strategy)
	if err != nil {
		return nil, err
	}

	s.broadcast("cleaning", map[string]interface{}{"input": len(trips)})

	cleaned := s.engineer.Clean(trips)
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("no trips survived cleaning (input %d)", len(trips))
	}

	engineered := s.engineer.EngineerFeatures(cleaned)

	ds, err := s.builder.Prepare(engineered, nil)
	if err != nil {
		return nil, fmt.Errorf("prepare dataset: %w", err)
	}

	train, test := pipeline.Split(ds, s.cfg.TestSize, s.cfg.Seed)
	s.broadcast("training", map[string]interface{}{
		"strategy":      strategy,
		"train_samples": len(train.X),
		"test_samples":  len(test.X),
		"features":      len(ds.Names),
	})

	metrics, err := trainer.Train(train, test)
	if err != nil {
		return nil, err
	}

	importance, err := trainer.FeatureImportance(ds.Names)
	if err != nil {
		return nil, err
	}

	if err := s.saveModel(ctx, trainer, ds.Names); err != nil {
		return nil, err
	}

	s.broadcast("trained", metrics)

	return &TrainingResult{
		Metrics:      metrics,
		FeatureNames: ds.Names,
		Importance:   importance,
		CleanedCount: len(cleaned),
		ModelPath:    s.cfg.ModelPath,
	}, nil
}

func (s *TrainingService) saveModel(ctx context.Context, trainer *ml.Trainer, names []string) error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.ModelPath), 0755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	if err := trainer.Save(s.cfg.ModelPath, names); err != nil {
		return err
	}
	s.logger.Info("Model saved", zap.String("path", s.cfg.ModelPath))

	if s.artifactRepo != nil {
		data, err := os.ReadFile(s.cfg.ModelPath)
		if err != nil {
			return fmt.Errorf("read saved artifact: %w", err)
		}
		id, err := s.artifactRepo.Save(ctx, trainer.Strategy(), len(names), data)
		if err != nil {
			return err
		}
		s.logger.Info("Model artifact stored", zap.Int64("artifact_id", id))
	}
	return nil
}

// EvaluationResult 独立评估的产出
type EvaluationResult struct {
	Strategy   string         `json:"strategy"`
	Evaluation *ml.Evaluation `json:"evaluation"`
}

// Evaluate 离线评估已保存的模型: 加载产物, 用同一种子重建测试切分,
// 在模型未见过的那一份上计算 MAPE 和残差统计。
func (s *TrainingService) Evaluate(ctx context.Context, trips []models.Trip) (*EvaluationResult, error) {
	trainer, features, err := ml.Load(s.logger, s.cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	cleaned := s.engineer.Clean(trips)
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("no trips survived cleaning (input %d)", len(trips))
	}

	ds, err := s.builder.Prepare(s.engineer.EngineerFeatures(cleaned), features)
	if err != nil {
		return nil, fmt.Errorf("prepare dataset: %w", err)
	}

	_, test := pipeline.Split(ds, s.cfg.TestSize, s.cfg.Seed)
	if len(test.X) == 0 {
		return nil, fmt.Errorf("evaluate: empty test split (samples %d, test size %.2f)", len(ds.X), s.cfg.TestSize)
	}

	preds, err := trainer.Predict(test.X)
	if err != nil {
		return nil, err
	}

	ev := ml.Evaluate(test.Y, preds)
	s.logger.Info("Evaluation finished",
		zap.String("strategy", trainer.Strategy()),
		zap.Int("samples", ev.Samples),
		zap.Float64("rmse", ev.RMSE),
		zap.Float64("mape", ev.MAPE),
	)

	return &EvaluationResult{Strategy: trainer.Strategy(), Evaluation: &ev}, nil
}

// BuildReference 用已有行程重建训练时的特征矩阵, 作为漂移监控的参考样本
func (s *TrainingService) BuildReference(trips []models.Trip, frozen []string) (*models.Dataset, error) {
	cleaned := s.engineer.Clean(trips)
	engineered := s.engineer.EngineerFeatures(cleaned)
	return s.builder.Prepare(engineered, frozen)
}

func (s *TrainingService) broadcast(stage string, data interface{}) {
	if s.wsHub == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{"stage": stage, "data": data})
	if err != nil {
		return
	}
	s.wsHub.BroadcastMessage(ws.MsgTypeTraining, json.RawMessage(payload))
}
