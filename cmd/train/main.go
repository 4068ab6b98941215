package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/tripgazer/internal/config"
	"github.com/langchou/tripgazer/internal/ingest"
	"github.com/langchou/tripgazer/internal/models"
	"github.com/langchou/tripgazer/internal/repository"
	"github.com/langchou/tripgazer/internal/service"
)

func main() {
	var (
		dataPath = flag.String("data", "", "本地行程文件路径 (.parquet 或 .csv)")
		download = flag.String("download", "", "下载月份数据 (格式 YYYY-MM)")
		fromDB   = flag.Bool("from-db", false, "从数据库读取训练数据")
		importDB = flag.Bool("import", false, "把 CSV 行程写入数据库")
		strategy = flag.String("model", "", "训练策略 (baseline | random_forest)")
		testSize = flag.Float64("test-size", 0, "测试集比例, 覆盖 TEST_SIZE")
		seed     = flag.Int64("seed", 0, "随机种子, 覆盖 RANDOM_SEED")
		limit    = flag.Int("limit", 100000, "从数据库读取的最大行程数")
		evaluate = flag.Bool("evaluate", false, "评估已保存的模型而不是训练")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *strategy == "" {
		*strategy = cfg.ModelStrategy
	}
	if *testSize > 0 {
		cfg.TestSize = *testSize
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}

	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	ctx := context.Background()

	// 数据库可选: 仅 -from-db 或 -import 时连接
	var db *repository.DB
	if *fromDB || *importDB {
		db, err = repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect database", zap.Error(err))
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	trips, err := loadTrips(ctx, cfg, logger, db, *dataPath, *download, *fromDB, *limit)
	if err != nil {
		logger.Fatal("Failed to load training data", zap.Error(err))
	}
	logger.Info("Training data loaded", zap.Int("trips", len(trips)))

	if *importDB && db != nil {
		tripRepo := repository.NewTripRepository(db)
		count, err := tripRepo.BulkInsert(ctx, trips)
		if err != nil {
			logger.Fatal("Failed to import trips", zap.Error(err))
		}
		logger.Info("Trips imported", zap.Int64("count", count))
	}

	trainingService := service.NewTrainingService(cfg, logger)
	if db != nil {
		trainingService.SetArtifactRepository(repository.NewArtifactRepository(db))
	}

	if *evaluate {
		runEvaluation(ctx, logger, trainingService, trips)
		return
	}

	result, err := trainingService.Train(ctx, trips, *strategy)
	if err != nil {
		logger.Fatal("Training failed", zap.Error(err))
	}

	logger.Info("Training finished",
		zap.String("strategy", *strategy),
		zap.Int("cleaned", result.CleanedCount),
		zap.Int("features", len(result.FeatureNames)),
		zap.String("model_path", result.ModelPath),
	)
	logger.Info("Train scores",
		zap.Float64("rmse", result.Metrics.Train.RMSE),
		zap.Float64("mae", result.Metrics.Train.MAE),
		zap.Float64("r2", result.Metrics.Train.R2),
	)
	if result.Metrics.Test != nil {
		logger.Info("Test scores",
			zap.Float64("rmse", result.Metrics.Test.RMSE),
			zap.Float64("mae", result.Metrics.Test.MAE),
			zap.Float64("r2", result.Metrics.Test.R2),
		)
	}

	top := result.Importance
	if len(top) > 10 {
		top = top[:10]
	}
	for _, imp := range top {
		logger.Info("Feature importance",
			zap.String("feature", imp.Feature),
			zap.Float64("score", imp.Score),
		)
	}
}

// runEvaluation 评估已保存的模型并打印报告
func runEvaluation(ctx context.Context, logger *zap.Logger, svc *service.TrainingService, trips []models.Trip) {
	result, err := svc.Evaluate(ctx, trips)
	if err != nil {
		logger.Fatal("Evaluation failed", zap.Error(err))
	}

	ev := result.Evaluation
	logger.Info("Evaluation report",
		zap.String("strategy", result.Strategy),
		zap.Int("samples", ev.Samples),
		zap.Float64("rmse", ev.RMSE),
		zap.Float64("mae", ev.MAE),
		zap.Float64("r2", ev.R2),
		zap.Float64("mape", ev.MAPE),
	)
	logger.Info("Residuals",
		zap.Float64("mean", ev.MeanResidual),
		zap.Float64("std", ev.StdResidual),
		zap.Float64("min", ev.MinResidual),
		zap.Float64("max", ev.MaxResidual),
	)
}

// loadTrips 按优先级获取训练数据: 下载 > 本地文件 > 数据库
func loadTrips(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	db *repository.DB,
	dataPath, download string,
	fromDB bool,
	limit int,
) ([]models.Trip, error) {
	if download != "" {
		var year, month int
		if _, err := fmt.Sscanf(download, "%d-%d", &year, &month); err != nil {
			return nil, fmt.Errorf("parse download month %q: %w", download, err)
		}

		client := ingest.NewClient(logger, cfg.DataHost)
		path, err := client.Download(ctx, year, month, cfg.DataDir)
		if err != nil {
			return nil, err
		}
		dataPath = path
	}

	if dataPath != "" {
		reader := ingest.NewReader(logger)
		return reader.ReadTripFile(dataPath)
	}

	if fromDB && db != nil {
		tripRepo := repository.NewTripRepository(db)
		return tripRepo.ListForTraining(ctx, limit)
	}

	return nil, fmt.Errorf("no data source: use -data, -download or -from-db")
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
