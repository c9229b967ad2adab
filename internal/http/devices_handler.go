package httpapi

import (
	"errors"
	"net/http"

	"wisefido-hub/internal/repository"

	"go.uber.org/zap"
)

// DevicesHandler 设备查询
type DevicesHandler struct {
	devices repository.DevicesRepository
	logger  *zap.Logger
}

func NewDevicesHandler(devices repository.DevicesRepository, logger *zap.Logger) *DevicesHandler {
	return &DevicesHandler{devices: devices, logger: logger}
}

// GET /hub/api/v1/devices?page=&size=
func (h *DevicesHandler) List(w http.ResponseWriter, r *http.Request) {
	page := parseInt(r.URL.Query().Get("page"), 1)
	size := parseInt(r.URL.Query().Get("size"), 20)

	devices, total, err := h.devices.ListDevices(r.Context(), page, size)
	if err != nil {
		h.logger.Error("List devices failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
		return
	}

	items := make([]map[string]any, 0, len(devices))
	for _, d := range devices {
		items = append(items, d.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": items,
		"total": total,
		"page":  page,
		"size":  size,
	}))
}

// GET /hub/api/v1/devices/{id}
func (h *DevicesHandler) Get(w http.ResponseWriter, r *http.Request, deviceID string) {
	device, err := h.devices.GetDevice(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, Fail("device not found"))
			return
		}
		h.logger.Error("Get device failed", zap.String("device_id", deviceID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(device.ToJSON()))
}
