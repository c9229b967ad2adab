package httpapi

import (
	"errors"
	"net/http"

	"wisefido-hub/internal/service"

	"go.uber.org/zap"
)

// ShadowHandler 设备影子读写
type ShadowHandler struct {
	shadows *service.ShadowService
	logger  *zap.Logger
}

func NewShadowHandler(shadows *service.ShadowService, logger *zap.Logger) *ShadowHandler {
	return &ShadowHandler{shadows: shadows, logger: logger}
}

// GET /hub/api/v1/devices/{id}/shadow
func (h *ShadowHandler) Get(w http.ResponseWriter, r *http.Request, deviceID string) {
	entry, err := h.shadows.Get(r.Context(), deviceID)
	if err != nil {
		h.logger.Error("Shadow read failed", zap.String("device_id", deviceID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(entry))
}

type shadowUpdateRequest struct {
	Version int64          `json:"version"`
	Patch   map[string]any `json:"patch"`
}

// POST /hub/api/v1/devices/{id}/shadow
// 响应总是携带当前文档；applied 标明本次写入是否生效
func (h *ShadowHandler) Post(w http.ResponseWriter, r *http.Request, deviceID string) {
	var req shadowUpdateRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if req.Version <= 0 {
		writeJSON(w, http.StatusBadRequest, Fail("version must be positive"))
		return
	}

	entry, applied, err := h.shadows.ApplyUpdate(r.Context(), deviceID, req.Version, req.Patch)
	if err != nil {
		if errors.Is(err, service.ErrDeviceQuarantined) {
			writeJSON(w, http.StatusConflict, Fail("device quarantined"))
			return
		}
		h.logger.Error("Shadow update failed", zap.String("device_id", deviceID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"applied": applied,
		"shadow":  entry,
	}))
}
