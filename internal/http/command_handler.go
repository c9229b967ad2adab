package httpapi

import (
	"errors"
	"net/http"

	"wisefido-hub/internal/queue"
	"wisefido-hub/internal/service"

	"go.uber.org/zap"
)

// CommandHandler 指令提交入口
type CommandHandler struct {
	commands *service.CommandService
	logger   *zap.Logger
}

func NewCommandHandler(commands *service.CommandService, logger *zap.Logger) *CommandHandler {
	return &CommandHandler{commands: commands, logger: logger}
}

// POST /hub/api/v1/commands
// 201 已入队 / 409 幂等键重复或设备隔离 / 503 队列已满
func (h *CommandHandler) Post(w http.ResponseWriter, r *http.Request) {
	var req service.CommandRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if req.DeviceID == "" || req.Capability == "" {
		writeJSON(w, http.StatusBadRequest, Fail("device_id and capability are required"))
		return
	}

	cmd, err := h.commands.Submit(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, Ok(map[string]any{
			"command_id": cmd.CommandID,
			"priority":   cmd.Priority,
		}))
	case errors.Is(err, service.ErrDuplicateCommand):
		writeJSON(w, http.StatusConflict, Fail("duplicate command"))
	case errors.Is(err, service.ErrDeviceQuarantined):
		writeJSON(w, http.StatusConflict, Fail("device quarantined"))
	case errors.Is(err, queue.ErrQueueFull):
		writeJSON(w, http.StatusServiceUnavailable, Fail("command queue full"))
	default:
		h.logger.Error("Command submit failed", zap.String("device_id", req.DeviceID), zap.Error(err))
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
	}
}
