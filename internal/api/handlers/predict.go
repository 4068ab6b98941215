package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/inference"
	"github.com/langchou/tripgazer/internal/models"
)

// Predict 单条预测
// POST /api/predict
func (h *Handler) Predict(c *gin.Context) {
	var req models.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		predictionsTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	resp, err := h.adapter.Predict(&req)
	if err != nil {
		if errors.Is(err, inference.ErrModelUnavailable) {
			predictionsTotal.WithLabelValues("unavailable").Inc()
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Model not loaded"})
			return
		}
		predictionsTotal.WithLabelValues("error").Inc()
		if isClientError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to predict", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Prediction failed"})
		return
	}
	predictionSeconds.Observe(time.Since(start).Seconds())
	predictionsTotal.WithLabelValues("ok").Inc()

	h.logPrediction(c, &req, resp)
	h.wsHub.BroadcastPrediction(resp)

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// PredictBatch 批量预测, 请求体为 PredictRequest 数组。
// 单条失败不影响其他条目, 失败条目返回错误信息。
// POST /api/predict/batch
func (h *Handler) PredictBatch(c *gin.Context) {
	var reqs []models.PredictRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(reqs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty batch"})
		return
	}

	if !h.adapter.Ready() {
		predictionsTotal.WithLabelValues("unavailable").Inc()
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Model not loaded"})
		return
	}

	type batchItem struct {
		Index      int                     `json:"index"`
		Prediction *models.PredictResponse `json:"prediction,omitempty"`
		Error      string                  `json:"error,omitempty"`
	}

	results := make([]batchItem, len(reqs))
	for i := range reqs {
		item := batchItem{Index: i}
		resp, err := h.adapter.Predict(&reqs[i])
		if err != nil {
			predictionsTotal.WithLabelValues("error").Inc()
			item.Error = err.Error()
		} else {
			predictionsTotal.WithLabelValues("ok").Inc()
			item.Prediction = resp
			h.logPrediction(c, &reqs[i], resp)
		}
		results[i] = item
	}

	c.JSON(http.StatusOK, gin.H{"data": results})
}

// isClientError 请求内容本身导致的预测失败。绑定校验之后剩下的只有
// 上车时间格式; 其余失败 (冻结列不匹配, 标准化维度错误) 属于服务端状态。
func isClientError(err error) bool {
	var parseErr *time.ParseError
	return errors.As(err, &parseErr)
}

// ListPredictions 最近的预测日志
// GET /api/predictions?limit=50
func (h *Handler) ListPredictions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}

	logs, err := h.predictionRepo.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list predictions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list predictions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs})
}

// logPrediction 把预测落库, 失败只记日志不影响响应
func (h *Handler) logPrediction(c *gin.Context, req *models.PredictRequest, resp *models.PredictResponse) {
	if h.predictionRepo == nil {
		return
	}

	pickup, err := inference.ParsePickupTime(req.PickupTime)
	if err != nil {
		return
	}

	passengers := req.PassengerCount
	if passengers == 0 {
		passengers = 1
	}

	log := &models.PredictionLog{
		PickupTime:        pickup,
		TripDistance:      req.TripDistance,
		PassengerCount:    passengers,
		PULocationID:      req.PULocationID,
		DOLocationID:      req.DOLocationID,
		FareAmount:        req.FareAmount,
		PredictedDuration: resp.PredictedDuration,
		ModelVersion:      resp.ModelVersion,
	}
	if err := h.predictionRepo.Insert(c.Request.Context(), log); err != nil {
		h.logger.Warn("Failed to log prediction", zap.Error(err))
	}
}
