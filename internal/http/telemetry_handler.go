package httpapi

import (
	"net/http"

	"wisefido-hub/internal/domain"
	"wisefido-hub/internal/service"

	"go.uber.org/zap"
)

// TelemetryHandler 设备上报入口
type TelemetryHandler struct {
	ingest *service.IngestService
	logger *zap.Logger
}

func NewTelemetryHandler(ingest *service.IngestService, logger *zap.Logger) *TelemetryHandler {
	return &TelemetryHandler{ingest: ingest, logger: logger}
}

// telemetryRequest 单条或批量（二选一；readings 非空按批量处理）
type telemetryRequest struct {
	DeviceID   string                `json:"device_id"`
	Capability string                `json:"capability,omitempty"`
	Value      any                   `json:"value,omitempty"`
	Timestamp  int64                 `json:"timestamp,omitempty"`
	Seq        *int64                `json:"seq,omitempty"`
	Room       string                `json:"room,omitempty"`
	Type       string                `json:"type,omitempty"`
	Readings   []domain.BatchReading `json:"readings,omitempty"`
}

// POST /hub/api/v1/telemetry
func (h *TelemetryHandler) Post(w http.ResponseWriter, r *http.Request) {
	var req telemetryRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if req.DeviceID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("device_id is required"))
		return
	}

	// 批量包
	if len(req.Readings) > 0 {
		results := h.ingest.IngestBatch(r.Context(), domain.BatchEnvelope{
			DeviceID:  req.DeviceID,
			Timestamp: req.Timestamp,
			Type:      req.Type,
			Readings:  req.Readings,
		})
		writeJSON(w, http.StatusOK, Ok(results))
		return
	}

	if req.Capability == "" {
		writeJSON(w, http.StatusBadRequest, Fail("capability is required"))
		return
	}

	result, err := h.ingest.Ingest(r.Context(), domain.TelemetryReading{
		DeviceID:   req.DeviceID,
		Capability: req.Capability,
		Value:      req.Value,
		Timestamp:  req.Timestamp,
		Seq:        req.Seq,
		Room:       req.Room,
	})
	if err != nil {
		h.logger.Error("Ingest failed", zap.String("device_id", req.DeviceID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
		return
	}
	if !result.Allowed {
		// 限流用 429，其余策略拦截用 403；都带结构化原因
		status := http.StatusForbidden
		if result.Reason == "rate_limited" {
			status = http.StatusTooManyRequests
		}
		writeJSON(w, status, Ok(result))
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}
