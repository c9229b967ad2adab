package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wisefido-hub/internal/bus"
	"wisefido-hub/internal/gate"
	"wisefido-hub/internal/privacy"
	"wisefido-hub/internal/queue"
	"wisefido-hub/internal/repository"
	"wisefido-hub/internal/security"
	"wisefido-hub/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	logger := zap.NewNop()

	b := bus.NewBus(logger)
	quarantine := security.NewQuarantine(b, logger)
	guard := privacy.NewGuard(
		privacy.NewConsentCache(privacy.DefaultPolicy("v1"), nil),
		privacy.MinimizeConfig{StripIdentifiers: true, NumericBucket: 5, TruncateBytes: 4096},
		logger,
	)
	devices := repository.NewMemoryDevicesRepo()

	ingest := service.NewIngestService(
		gate.NewGate(10000, 200),
		guard,
		quarantine,
		security.NewDetector(nil, logger),
		devices,
		repository.NewMemoryTelemetryRepo(),
		b,
		60000,
		logger,
	)
	commands := service.NewCommandService(
		queue.NewPriorityQueue(2),
		repository.NewMemoryIdempotencyLedger(time.Hour),
		quarantine,
		b,
		logger,
	)
	shadows := service.NewShadowService(repository.NewMemoryShadowStore(), quarantine, b, logger)

	r := NewRouter(logger)
	r.RegisterHubRoutes(
		NewTelemetryHandler(ingest, logger),
		NewCommandHandler(commands, logger),
		NewShadowHandler(shadows, logger),
		NewDevicesHandler(devices, logger),
		nil,
	)
	return r
}

func doJSON(t *testing.T, r *Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Code   int            `json:"code"`
		Result map[string]any `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Result
}

func TestTelemetryPost_MinimizesValue(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/hub/api/v1/telemetry", map[string]any{
		"device_id":  "d1",
		"capability": "battery",
		"value":      map[string]any{"id": "x", "level": 57.3},
		"timestamp":  1700000123456,
	})
	require.Equal(t, http.StatusOK, w.Code)

	result := decodeResult(t, w)
	assert.Equal(t, true, result["allowed"])
	value := result["event"].(map[string]any)["value"].(map[string]any)
	assert.NotContains(t, value, "id")
	assert.Equal(t, 55.0, value["level"])
}

func TestTelemetryPost_ConsentDenied(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/hub/api/v1/telemetry", map[string]any{
		"device_id":  "d1",
		"capability": "energy",
		"value":      map[string]any{"kwh": 1.0},
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	result := decodeResult(t, w)
	assert.Equal(t, "consent_denied", result["reason"])
}

func TestTelemetryPost_RateLimited429(t *testing.T) {
	r := newTestRouter(t)

	var last *httptest.ResponseRecorder
	for i := 0; i < 201; i++ {
		last = doJSON(t, r, http.MethodPost, "/hub/api/v1/telemetry", map[string]any{
			"device_id":  "d1",
			"capability": "battery",
			"value":      map[string]any{"level": 80.0},
		})
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
}

func TestTelemetryPost_BatchEnvelope(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/hub/api/v1/telemetry", map[string]any{
		"device_id": "d1",
		"type":      "battery",
		"timestamp": 1700000000000,
		"readings": []map[string]any{
			{"timestamp": 1700000000000, "payload": map[string]any{"level": 57.3}},
			{"timestamp": 1700000001000, "payload": map[string]any{"level": 58.0}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Result []map[string]any `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Result, 2)
	assert.Equal(t, true, envelope.Result[0]["allowed"])
}

func TestTelemetryPost_BadRequest(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/hub/api/v1/telemetry", map[string]any{
		"capability": "battery",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCommandPost_LifecycleStatusCodes(t *testing.T) {
	r := newTestRouter(t)

	body := map[string]any{
		"device_id":       "d1",
		"capability":      "lock",
		"params":          map[string]any{"action": "lock"},
		"idempotency_key": "k1",
	}

	w := doJSON(t, r, http.MethodPost, "/hub/api/v1/commands", body)
	require.Equal(t, http.StatusCreated, w.Code)
	result := decodeResult(t, w)
	assert.NotEmpty(t, result["command_id"])

	// 同幂等键重复提交
	w = doJSON(t, r, http.MethodPost, "/hub/api/v1/commands", body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCommandPost_QueueFull503(t *testing.T) {
	r := newTestRouter(t)

	// routine 级容量 2
	for i, key := range []string{"a", "b"} {
		w := doJSON(t, r, http.MethodPost, "/hub/api/v1/commands", map[string]any{
			"device_id": "d1", "capability": "lock", "idempotency_key": key,
		})
		require.Equal(t, http.StatusCreated, w.Code, "enqueue %d", i)
	}

	w := doJSON(t, r, http.MethodPost, "/hub/api/v1/commands", map[string]any{
		"device_id": "d1", "capability": "lock", "idempotency_key": "c",
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestShadowRoundTrip(t *testing.T) {
	r := newTestRouter(t)

	// 从未写入：version=0 空文档
	w := doJSON(t, r, http.MethodGet, "/hub/api/v1/devices/d1/shadow", nil)
	require.Equal(t, http.StatusOK, w.Code)
	result := decodeResult(t, w)
	assert.Equal(t, float64(0), result["version"])

	// 版本门控写入
	w = doJSON(t, r, http.MethodPost, "/hub/api/v1/devices/d1/shadow", map[string]any{
		"version": 2,
		"patch":   map[string]any{"a": 1},
	})
	require.Equal(t, http.StatusOK, w.Code)
	result = decodeResult(t, w)
	assert.Equal(t, true, result["applied"])

	// 陈旧版本：200 但 applied=false，文档保持当前值
	w = doJSON(t, r, http.MethodPost, "/hub/api/v1/devices/d1/shadow", map[string]any{
		"version": 1,
		"patch":   map[string]any{"a": 2},
	})
	require.Equal(t, http.StatusOK, w.Code)
	result = decodeResult(t, w)
	assert.Equal(t, false, result["applied"])
	shadow := result["shadow"].(map[string]any)
	assert.Equal(t, float64(2), shadow["version"])
	assert.Equal(t, float64(1), shadow["reported"].(map[string]any)["a"])
}

func TestShadowPost_InvalidVersion(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/hub/api/v1/devices/d1/shadow", map[string]any{
		"version": 0,
		"patch":   map[string]any{"a": 1},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDevicesList_AfterIngest(t *testing.T) {
	r := newTestRouter(t)

	doJSON(t, r, http.MethodPost, "/hub/api/v1/telemetry", map[string]any{
		"device_id":  "d1",
		"capability": "battery",
		"value":      map[string]any{"level": 80.0},
	})

	w := doJSON(t, r, http.MethodGet, "/hub/api/v1/devices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	result := decodeResult(t, w)
	assert.Equal(t, float64(1), result["total"])

	w = doJSON(t, r, http.MethodGet, "/hub/api/v1/devices/d1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	device := decodeResult(t, w)
	assert.Equal(t, "online", device["status"])
}

func TestDevicesGet_NotFound(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/hub/api/v1/devices/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/hub/api/v1/telemetry", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/hub/api/v1/devices/d1/shadow", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
