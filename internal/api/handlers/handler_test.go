package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/inference"
	"github.com/langchou/tripgazer/internal/ml"
	"github.com/langchou/tripgazer/internal/models"
	"github.com/langchou/tripgazer/internal/pipeline"
	"github.com/langchou/tripgazer/pkg/ws"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestRouter 组装只依赖内存组件的路由, 数据库仓库留空
func newTestRouter(t *testing.T, adapter *inference.Adapter) *gin.Engine {
	t.Helper()
	logger := zap.NewNop()

	handler := NewHandler(logger, nil, nil, adapter, nil, ws.NewHub(logger), 500)

	router := gin.New()
	handler.RegisterRoutes(router)
	return router
}

// trainedAdapter 训练并加载一个 baseline 模型
func trainedAdapter(t *testing.T) *inference.Adapter {
	t.Helper()

	var trips []models.Trip
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 120; i++ {
		pu, do := 50+i%60, 70+i%60
		dist := 1.0 + float64(i%30)*0.6
		pickup := base.Add(time.Duration(i) * 23 * time.Minute)
		trips = append(trips, models.Trip{
			PickupTime:     pickup,
			DropoffTime:    pickup.Add(time.Duration(180+55*dist) * time.Second),
			TripDistance:   dist,
			PassengerCount: 1 + i%2,
			FareAmount:     4 + dist*3,
			PULocationID:   &pu,
			DOLocationID:   &do,
		})
	}

	engineer := pipeline.NewFeatureEngineer(zap.NewNop())
	builder := pipeline.NewDatasetBuilder(zap.NewNop())
	cleaned := engineer.Clean(trips)
	ds, err := builder.Prepare(engineer.EngineerFeatures(cleaned), nil)
	require.NoError(t, err)

	trainer, err := ml.NewTrainer(zap.NewNop(), ml.StrategyBaseline)
	require.NoError(t, err)
	_, err = trainer.Train(ds, nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, trainer.Save(path, ds.Names))

	adapter := inference.NewAdapter(zap.NewNop())
	require.NoError(t, adapter.Load(path))
	return adapter
}

// mismatchedAdapter 加载一个特征列表和管道输出完全不重合的产物,
// 用来触发预测阶段的服务端失败
func mismatchedAdapter(t *testing.T) *inference.Adapter {
	t.Helper()

	path := filepath.Join(t.TempDir(), "model.json")

	var trips []models.Trip
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 120; i++ {
		dist := 1.0 + float64(i%30)*0.6
		pickup := start.Add(time.Duration(i) * 23 * time.Minute)
		trips = append(trips, models.Trip{
			PickupTime:     pickup,
			DropoffTime:    pickup.Add(time.Duration(180+55*dist) * time.Second),
			TripDistance:   dist,
			PassengerCount: 1,
			FareAmount:     4 + dist*3,
		})
	}

	engineer := pipeline.NewFeatureEngineer(zap.NewNop())
	builder := pipeline.NewDatasetBuilder(zap.NewNop())
	ds, err := builder.Prepare(engineer.EngineerFeatures(engineer.Clean(trips)), nil)
	require.NoError(t, err)

	trainer, err := ml.NewTrainer(zap.NewNop(), ml.StrategyBaseline)
	require.NoError(t, err)
	_, err = trainer.Train(ds, nil)
	require.NoError(t, err)

	// 冻结的特征名全部换掉, 任何请求都无法对齐
	bogus := make([]string, len(ds.Names))
	for i := range bogus {
		bogus[i] = "legacy_feature_" + ds.Names[i]
	}
	require.NoError(t, trainer.Save(path, bogus))

	adapter := inference.NewAdapter(zap.NewNop())
	require.NoError(t, adapter.Load(path))
	return adapter
}

func predictBody() []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"pickup_time":     "2024-06-15 14:30:00",
		"trip_distance":   5.2,
		"passenger_count": 2,
		"pu_location_id":  161,
		"do_location_id":  230,
		"fare_amount":     18.5,
	})
	return body
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t, inference.NewAdapter(zap.NewNop()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, false, resp["model_ready"])
}

func TestPredictEndpoint(t *testing.T) {
	t.Run("503 when model not loaded", func(t *testing.T) {
		router := newTestRouter(t, inference.NewAdapter(zap.NewNop()))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/predict", bytes.NewReader(predictBody()))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("400 on invalid payload", func(t *testing.T) {
		router := newTestRouter(t, trainedAdapter(t))

		body, _ := json.Marshal(map[string]interface{}{
			"pickup_time":   "2024-06-15 14:30:00",
			"trip_distance": -3, // 违反 gt=0
		})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/predict", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("400 on unparseable pickup time", func(t *testing.T) {
		router := newTestRouter(t, trainedAdapter(t))

		body, _ := json.Marshal(map[string]interface{}{
			"pickup_time":     "garbage",
			"trip_distance":   5.2,
			"passenger_count": 2,
			"pu_location_id":  161,
			"do_location_id":  230,
			"fare_amount":     18.5,
		})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/predict", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("500 when frozen features cannot be aligned", func(t *testing.T) {
		router := newTestRouter(t, mismatchedAdapter(t))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/predict", bytes.NewReader(predictBody()))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		// 内部细节不回给客户端
		assert.NotContains(t, w.Body.String(), "legacy_feature_")
	})

	t.Run("200 with prediction payload", func(t *testing.T) {
		router := newTestRouter(t, trainedAdapter(t))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/predict", bytes.NewReader(predictBody()))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data models.PredictResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "baseline_v1", resp.Data.ModelVersion)
		assert.InDelta(t, resp.Data.PredictedDuration/60, resp.Data.PredictedDurationMin, 1e-9)
	})
}

func TestPredictBatchEndpoint(t *testing.T) {
	t.Run("503 when model not loaded", func(t *testing.T) {
		router := newTestRouter(t, inference.NewAdapter(zap.NewNop()))

		body := []byte("[" + string(predictBody()) + "]")
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/predict/batch", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("empty batch rejected", func(t *testing.T) {
		router := newTestRouter(t, trainedAdapter(t))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/predict/batch", bytes.NewReader([]byte("[]")))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("mixed batch keeps per item results", func(t *testing.T) {
		router := newTestRouter(t, trainedAdapter(t))

		good := json.RawMessage(predictBody())
		bad, _ := json.Marshal(map[string]interface{}{
			"pickup_time":    "garbage",
			"trip_distance":  1.0,
			"pu_location_id": 1,
			"do_location_id": 2,
			"fare_amount":    5.0,
		})
		body, _ := json.Marshal([]json.RawMessage{good, bad})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/predict/batch", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data []struct {
				Index      int                     `json:"index"`
				Prediction *models.PredictResponse `json:"prediction"`
				Error      string                  `json:"error"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 2)
		assert.NotNil(t, resp.Data[0].Prediction)
		assert.Empty(t, resp.Data[0].Error)
		assert.Nil(t, resp.Data[1].Prediction)
		assert.NotEmpty(t, resp.Data[1].Error)
	})
}

func TestGetModelEndpoint(t *testing.T) {
	t.Run("503 when model not loaded", func(t *testing.T) {
		router := newTestRouter(t, inference.NewAdapter(zap.NewNop()))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/model", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("200 with model info", func(t *testing.T) {
		router := newTestRouter(t, trainedAdapter(t))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/model", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data struct {
				Strategy     string   `json:"strategy"`
				Version      string   `json:"version"`
				FeatureNames []string `json:"feature_names"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "baseline", resp.Data.Strategy)
		assert.Equal(t, "baseline_v1", resp.Data.Version)
		assert.NotEmpty(t, resp.Data.FeatureNames)
	})
}

func TestGetDriftEndpoint(t *testing.T) {
	t.Run("503 without reference", func(t *testing.T) {
		router := newTestRouter(t, trainedAdapter(t))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/drift", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestWindowParam(t *testing.T) {
	logger := zap.NewNop()
	handler := NewHandler(logger, nil, nil, inference.NewAdapter(logger), nil, ws.NewHub(logger), 250)

	cases := []struct {
		name  string
		query string
		want  int
	}{
		{"missing falls back to configured window", "", 250},
		{"valid value accepted", "?window=100", 100},
		{"non numeric falls back", "?window=abc", 250},
		{"zero falls back", "?window=0", 250},
		{"above cap falls back", "?window=20000", 250},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/api/drift"+tc.query, nil)
			assert.Equal(t, tc.want, handler.windowParam(c))
		})
	}
}

func TestNewHandlerDefaultWindow(t *testing.T) {
	logger := zap.NewNop()
	handler := NewHandler(logger, nil, nil, inference.NewAdapter(logger), nil, ws.NewHub(logger), 0)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/drift", nil)
	assert.Equal(t, 500, handler.windowParam(c))
}

func TestGetTripEndpoint(t *testing.T) {
	t.Run("400 on non numeric id", func(t *testing.T) {
		router := newTestRouter(t, inference.NewAdapter(zap.NewNop()))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/trips/abc", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, inference.NewAdapter(zap.NewNop()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_")
}
