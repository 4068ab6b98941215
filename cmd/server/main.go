package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/tripgazer/internal/api/handlers"
	"github.com/langchou/tripgazer/internal/config"
	"github.com/langchou/tripgazer/internal/inference"
	"github.com/langchou/tripgazer/internal/monitoring"
	"github.com/langchou/tripgazer/internal/repository"
	"github.com/langchou/tripgazer/internal/service"
	"github.com/langchou/tripgazer/pkg/ws"
)

// referenceLimit 构建漂移参考分布时最多读取的行程数
const referenceLimit = 50000

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting Tripgazer", zap.String("port", cfg.ServerPort))

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接数据库
	db, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	defer db.Close()

	// 执行数据库迁移
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database migrated successfully")

	// 创建 Repository
	tripRepo := repository.NewTripRepository(db)
	predictionRepo := repository.NewPredictionRepository(db)
	artifactRepo := repository.NewArtifactRepository(db)

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run()

	// 加载推理模型: 优先模型文件, 其次数据库里的最新产物
	adapter := inference.NewAdapter(logger)
	if err := adapter.Load(cfg.ModelPath); err != nil {
		logger.Warn("Failed to load model file, trying database artifact", zap.Error(err))
		if _, artifact, _, dbErr := artifactRepo.Latest(ctx); dbErr == nil {
			if err := adapter.LoadBytes(artifact); err != nil {
				logger.Warn("Failed to load database artifact", zap.Error(err))
			}
		} else {
			logger.Warn("No model available, predictions disabled until training", zap.Error(dbErr))
		}
	}

	// 构建漂移参考分布 (需要已加载模型的冻结特征列表)
	trainingService := service.NewTrainingService(cfg, logger)
	trainingService.SetHub(wsHub)
	trainingService.SetArtifactRepository(artifactRepo)

	var monitor *monitoring.Monitor
	if adapter.Ready() {
		trips, err := tripRepo.ListForTraining(ctx, referenceLimit)
		if err != nil {
			logger.Warn("Failed to load trips for drift reference", zap.Error(err))
		} else if len(trips) > 0 {
			reference, err := trainingService.BuildReference(trips, adapter.FeatureNames())
			if err != nil {
				logger.Warn("Failed to build drift reference", zap.Error(err))
			} else {
				monitor = monitoring.NewMonitor(logger, reference)
				logger.Info("Drift reference built", zap.Int("samples", len(reference.X)))
			}
		}
	}

	// WebSocket 初始数据: 模型信息 + 最近预测
	wsHub.SetInitDataProvider(func() *ws.InitData {
		var model interface{}
		if adapter.Ready() {
			model = gin.H{
				"strategy":      adapter.Strategy(),
				"version":       adapter.Version(),
				"feature_names": adapter.FeatureNames(),
			}
		}

		predictions, err := predictionRepo.ListRecent(context.Background(), 20)
		if err != nil {
			logger.Warn("Failed to load recent predictions", zap.Error(err))
		}

		return &ws.InitData{
			Model:       model,
			Predictions: predictions,
		}
	})

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(
		logger,
		tripRepo,
		predictionRepo,
		adapter,
		monitor,
		wsHub,
		cfg.DriftWindow,
	)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// 注册路由
	handler.RegisterRoutes(router)

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}

// corsMiddleware CORS 中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
