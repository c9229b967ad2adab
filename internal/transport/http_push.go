package transport

import (
	"context"
	"fmt"
	"time"

	"wisefido-hub/internal/domain"
	"wisefido-hub/internal/repository"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// HTTPPushTransport 经 HTTP 推送指令到设备
// 地址优先用设备记录的 push_url，缺省回退到 baseURL/{deviceID}/commands
type HTTPPushTransport struct {
	httpClient *resty.Client
	devices    repository.DevicesRepository
	baseURL    string
	logger     *zap.Logger
}

func NewHTTPPushTransport(baseURL string, devices repository.DevicesRepository, logger *zap.Logger) *HTTPPushTransport {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &HTTPPushTransport{
		httpClient: client,
		devices:    devices,
		baseURL:    baseURL,
		logger:     logger,
	}
}

// Deliver 投递单条指令；非 2xx 视为投递失败
func (t *HTTPPushTransport) Deliver(ctx context.Context, cmd *domain.EnqueuedCommand) error {
	url := t.baseURL + "/" + cmd.DeviceID + "/commands"
	if t.devices != nil {
		if device, err := t.devices.GetDevice(ctx, cmd.DeviceID); err == nil && device.PushURL != "" {
			url = device.PushURL
		}
	}

	resp, err := t.httpClient.R().
		SetContext(ctx).
		SetBody(cmd).
		Post(url)
	if err != nil {
		return fmt.Errorf("failed to push command %s: %w", cmd.CommandID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("device rejected command %s: status %d", cmd.CommandID, resp.StatusCode())
	}

	t.logger.Debug("Command pushed",
		zap.String("command_id", cmd.CommandID),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode()),
	)
	return nil
}
