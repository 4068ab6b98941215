package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/inference"
	"github.com/langchou/tripgazer/internal/models"
	"github.com/langchou/tripgazer/internal/pipeline"
	"github.com/langchou/tripgazer/pkg/ws"
)

// GetDrift 对最近的预测请求做特征漂移检测, 窗口缺省取配置的 DriftWindow
// GET /api/drift?window=500
func (h *Handler) GetDrift(c *gin.Context) {
	if h.monitor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Drift reference not available"})
		return
	}
	if !h.adapter.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Model not loaded"})
		return
	}

	window := h.windowParam(c)

	logs, err := h.predictionRepo.ListRecent(c.Request.Context(), window)
	if err != nil {
		h.logger.Error("Failed to list predictions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list predictions"})
		return
	}
	if len(logs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No predictions to analyze"})
		return
	}

	current, err := h.currentBatch(logs)
	if err != nil {
		h.logger.Error("Failed to build drift batch", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build drift batch"})
		return
	}

	report, err := h.monitor.Detect(current)
	if err != nil {
		driftChecksTotal.WithLabelValues("error").Inc()
		h.logger.Error("Failed to detect drift", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to detect drift"})
		return
	}

	if report.DatasetDrift {
		driftChecksTotal.WithLabelValues("drifted").Inc()
	} else {
		driftChecksTotal.WithLabelValues("stable").Inc()
	}

	h.wsHub.BroadcastMessage(ws.MsgTypeDrift, report)
	c.JSON(http.StatusOK, gin.H{"data": report})
}

// windowParam 解析 window 查询参数, 非法或越界时退回配置的缺省窗口
func (h *Handler) windowParam(c *gin.Context) int {
	window, err := strconv.Atoi(c.DefaultQuery("window", strconv.Itoa(h.driftWindow)))
	if err != nil || window < 1 || window > 10000 {
		return h.driftWindow
	}
	return window
}

// currentBatch 把预测日志还原成和训练时同一布局的特征矩阵
func (h *Handler) currentBatch(logs []*models.PredictionLog) ([][]float64, error) {
	trips := make([]models.Trip, 0, len(logs))
	for _, l := range logs {
		req := &models.PredictRequest{
			PickupTime:     l.PickupTime.Format("2006-01-02 15:04:05"),
			TripDistance:   l.TripDistance,
			PassengerCount: l.PassengerCount,
			PULocationID:   l.PULocationID,
			DOLocationID:   l.DOLocationID,
			FareAmount:     l.FareAmount,
		}
		trip, err := inference.TripFromRequest(req)
		if err != nil {
			continue
		}
		trips = append(trips, trip)
	}
	if len(trips) == 0 {
		return nil, nil
	}

	engineer := pipeline.NewFeatureEngineer(h.logger)
	builder := pipeline.NewDatasetBuilder(h.logger)

	engineered := engineer.EngineerFeatures(trips)
	ds, err := builder.Prepare(engineered, h.adapter.FeatureNames())
	if err != nil {
		return nil, err
	}
	return ds.X, nil
}
