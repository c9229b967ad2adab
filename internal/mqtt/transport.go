package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"wisefido-hub/internal/domain"

	"go.uber.org/zap"
)

// publisher 下发所需的最小客户端接口（便于测试替身）
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Transport 经 MQTT 下发指令
// 主题：{prefix}/{deviceID}/commands，载荷为指令 JSON
type Transport struct {
	client      publisher
	topicPrefix string
	qos         byte
	logger      *zap.Logger
}

func NewTransport(client publisher, topicPrefix string, qos byte, logger *zap.Logger) *Transport {
	return &Transport{
		client:      client,
		topicPrefix: topicPrefix,
		qos:         qos,
		logger:      logger,
	}
}

// Deliver 投递单条指令（发布即视为送达，不等待设备回执）
func (t *Transport) Deliver(_ context.Context, cmd *domain.EnqueuedCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command %s: %w", cmd.CommandID, err)
	}

	topic := fmt.Sprintf("%s/%s/commands", t.topicPrefix, cmd.DeviceID)
	if err := t.client.Publish(topic, t.qos, false, payload); err != nil {
		return err
	}

	t.logger.Debug("Command published",
		zap.String("command_id", cmd.CommandID),
		zap.String("topic", topic),
	)
	return nil
}
