package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetModel 获取当前模型信息
// GET /api/model
func (h *Handler) GetModel(c *gin.Context) {
	if !h.adapter.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Model not loaded"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"strategy":      h.adapter.Strategy(),
			"version":       h.adapter.Version(),
			"feature_names": h.adapter.FeatureNames(),
		},
	})
}
