package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/inference"
	"github.com/langchou/tripgazer/internal/monitoring"
	"github.com/langchou/tripgazer/internal/repository"
	"github.com/langchou/tripgazer/pkg/ws"
)

// Handler HTTP 处理器
type Handler struct {
	logger         *zap.Logger
	tripRepo       *repository.TripRepository
	predictionRepo *repository.PredictionRepository
	adapter        *inference.Adapter
	monitor        *monitoring.Monitor
	wsHub          *ws.Hub
	driftWindow    int
	upgrader       websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	tripRepo *repository.TripRepository,
	predictionRepo *repository.PredictionRepository,
	adapter *inference.Adapter,
	monitor *monitoring.Monitor,
	wsHub *ws.Hub,
	driftWindow int,
) *Handler {
	if driftWindow < 1 {
		driftWindow = 500
	}
	return &Handler{
		logger:         logger,
		tripRepo:       tripRepo,
		predictionRepo: predictionRepo,
		adapter:        adapter,
		monitor:        monitor,
		wsHub:          wsHub,
		driftWindow:    driftWindow,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// API 路由
	api := r.Group("/api")
	{
		// 预测
		api.POST("/predict", h.Predict)
		api.POST("/predict/batch", h.PredictBatch)
		api.GET("/predictions", h.ListPredictions)

		// 模型
		api.GET("/model", h.GetModel)

		// 行程
		api.GET("/trips", h.ListTrips)
		api.GET("/trips/:id", h.GetTrip)

		// 漂移监控
		api.GET("/drift", h.GetDrift)
	}

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// Prometheus 指标
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 健康检查
	r.GET("/health", h.HealthCheck)
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"model_ready": h.adapter.Ready(),
		"ws_clients":  h.wsHub.ClientCount(),
	})
}
