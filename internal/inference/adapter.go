package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/ml"
	"github.com/langchou/tripgazer/internal/models"
	"github.com/langchou/tripgazer/internal/pipeline"
)

// 适配器状态
const (
	StateUninitialized = "uninitialized"
	StateReady         = "ready"
)

// 事件
const (
	EventLoad = "load"
)

// placeholderDuration 推理时的占位时长 (秒)。请求里没有下车时间,
// 特征推导需要一个确定的时长值; 它不进入目标, 只影响 speed_mph,
// 和离线实现保持同一常数。
const placeholderDuration = 600.0

// ErrModelUnavailable 模型尚未加载时调用 Predict
var ErrModelUnavailable = errors.New("model unavailable")

// Adapter 推理适配器: 用训练时同一套特征工程和数据集构建逻辑,
// 把单条请求还原成一行特征并调用模型。生命周期显式:
// uninitialized -> (加载模型和特征列表) -> ready。
// 加载持有写锁, 加载完成后拟合状态只读, 并发 Predict 无需互斥。
type Adapter struct {
	mu     sync.RWMutex
	logger *zap.Logger
	fsm    *fsm.FSM

	engineer *pipeline.FeatureEngineer
	builder  *pipeline.DatasetBuilder

	trainer  *ml.Trainer
	features []string
	version  string
}

// NewAdapter 创建未初始化的适配器
func NewAdapter(logger *zap.Logger) *Adapter {
	a := &Adapter{
		logger:   logger,
		engineer: pipeline.NewFeatureEngineer(logger),
		builder:  pipeline.NewDatasetBuilder(logger),
	}

	a.fsm = fsm.NewFSM(
		StateUninitialized,
		fsm.Events{
			{Name: EventLoad, Src: []string{StateUninitialized, StateReady}, Dst: StateReady},
		},
		fsm.Callbacks{},
	)
	return a
}

// Load 从模型产物文件加载模型和冻结特征列表, 转入 ready
func (a *Adapter) Load(path string) error {
	trainer, features, err := ml.Load(a.logger, path)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	return a.install(trainer, features)
}

// LoadBytes 从序列化的产物字节加载 (仓库存储的产物走这里)
func (a *Adapter) LoadBytes(data []byte) error {
	trainer, features, err := ml.LoadBytes(a.logger, data)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	return a.install(trainer, features)
}

func (a *Adapter) install(trainer *ml.Trainer, features []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.fsm.Event(context.Background(), EventLoad); err != nil {
		return fmt.Errorf("transition to ready: %w", err)
	}

	a.trainer = trainer
	a.features = features
	a.version = trainer.Strategy() + "_v1"

	a.logger.Info("Model loaded",
		zap.String("strategy", trainer.Strategy()),
		zap.Int("features", len(features)),
	)
	return nil
}

// Ready 是否已加载模型
func (a *Adapter) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.fsm.Current() == StateReady
}

// FeatureNames 训练时冻结的特征列表
func (a *Adapter) FeatureNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.features
}

// Version 已加载模型的版本号, 未加载时为空
func (a *Adapter) Version() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.version
}

// Strategy 已加载模型的策略标签, 未加载时为空
func (a *Adapter) Strategy() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.trainer == nil {
		return ""
	}
	return a.trainer.Strategy()
}

// Predict 对单条请求预测行程时长 (秒)。同样的输入永远得到同样的
// 预测; 未初始化时报 ErrModelUnavailable。
func (a *Adapter) Predict(req *models.PredictRequest) (*models.PredictResponse, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.fsm.Current() != StateReady {
		return nil, ErrModelUnavailable
	}

	trip, err := a.tripFromRequest(req)
	if err != nil {
		return nil, err
	}

	engineered := a.engineer.EngineerFeatures([]models.Trip{trip})
	ds, err := a.builder.Prepare(engineered, a.features)
	if err != nil {
		return nil, fmt.Errorf("prepare features: %w", err)
	}
	if len(ds.X) != 1 {
		return nil, fmt.Errorf("prepare features: expected 1 row, got %d", len(ds.X))
	}

	preds, err := a.trainer.Predict(ds.X)
	if err != nil {
		return nil, err
	}

	return &models.PredictResponse{
		PredictedDuration:    preds[0],
		PredictedDurationMin: preds[0] / 60,
		ModelVersion:         a.version,
		Timestamp:            time.Now().UTC(),
	}, nil
}

// tripFromRequest 把请求补全成一条可工程化的行程
func (a *Adapter) tripFromRequest(req *models.PredictRequest) (models.Trip, error) {
	return TripFromRequest(req)
}

// TripFromRequest 把预测请求补全成一条可工程化的行程。乘客数缺省为 1,
// 下车时间用占位时长推出。漂移检测重建特征行时也走这里, 保证和推理
// 同一套补全逻辑。
func TripFromRequest(req *models.PredictRequest) (models.Trip, error) {
	pickup, err := ParsePickupTime(req.PickupTime)
	if err != nil {
		return models.Trip{}, err
	}

	passengers := req.PassengerCount
	if passengers == 0 {
		passengers = 1
	}

	pu, do := req.PULocationID, req.DOLocationID
	return models.Trip{
		PickupTime:     pickup,
		DropoffTime:    pickup.Add(time.Duration(placeholderDuration) * time.Second),
		TripDistance:   req.TripDistance,
		PassengerCount: passengers,
		FareAmount:     req.FareAmount,
		PULocationID:   &pu,
		DOLocationID:   &do,
		TripDuration:   placeholderDuration,
	}, nil
}

// ParsePickupTime 解析上车时间, 接受 "2006-01-02 15:04:05" 和 RFC 3339
func ParsePickupTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse pickup time %q: %w", s, err)
	}
	return t, nil
}
