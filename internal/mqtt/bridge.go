package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"wisefido-hub/internal/domain"
	"wisefido-hub/internal/service"

	"go.uber.org/zap"
)

// subscriber 接入桥所需的最小客户端接口
type subscriber interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Unsubscribe(topics ...string) error
}

// TelemetryBridge MQTT 上报接入桥
// 订阅 {prefix}/+/telemetry，单条与批量包走同一套管线（与 HTTP 入口一致）
type TelemetryBridge struct {
	client      subscriber
	ingest      *service.IngestService
	topicPrefix string
	qos         byte
	logger      *zap.Logger
}

func NewTelemetryBridge(client subscriber, ingest *service.IngestService, topicPrefix string, qos byte, logger *zap.Logger) *TelemetryBridge {
	return &TelemetryBridge{
		client:      client,
		ingest:      ingest,
		topicPrefix: topicPrefix,
		qos:         qos,
		logger:      logger,
	}
}

func (b *TelemetryBridge) topic() string {
	return b.topicPrefix + "/+/telemetry"
}

// Start 订阅上报主题
func (b *TelemetryBridge) Start() error {
	if err := b.client.Subscribe(b.topic(), b.qos, b.HandleMessage); err != nil {
		return err
	}
	b.logger.Info("Telemetry bridge started", zap.String("topic", b.topic()))
	return nil
}

// Stop 取消订阅
func (b *TelemetryBridge) Stop() error {
	return b.client.Unsubscribe(b.topic())
}

// mqttReading 单条上报载荷（device_id 缺省时从主题推导）
type mqttReading struct {
	DeviceID   string                `json:"device_id"`
	Capability string                `json:"capability,omitempty"`
	Value      any                   `json:"value,omitempty"`
	Timestamp  int64                 `json:"timestamp,omitempty"`
	Seq        *int64                `json:"seq,omitempty"`
	Room       string                `json:"room,omitempty"`
	Type       string                `json:"type,omitempty"`
	Readings   []domain.BatchReading `json:"readings,omitempty"`
}

// HandleMessage 处理单条 MQTT 上报消息
func (b *TelemetryBridge) HandleMessage(topic string, payload []byte) error {
	var msg mqttReading
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal telemetry from %s: %w", topic, err)
	}

	if msg.DeviceID == "" {
		msg.DeviceID = deviceIDFromTopic(topic, b.topicPrefix)
	}
	if msg.DeviceID == "" {
		return fmt.Errorf("telemetry without device id on topic %s", topic)
	}

	ctx := context.Background()

	// 批量包：逐条独立处理，单条失败不中断
	if len(msg.Readings) > 0 {
		b.ingest.IngestBatch(ctx, domain.BatchEnvelope{
			DeviceID:  msg.DeviceID,
			Timestamp: msg.Timestamp,
			Type:      msg.Type,
			Readings:  msg.Readings,
		})
		return nil
	}

	if msg.Capability == "" {
		return fmt.Errorf("telemetry without capability on topic %s", topic)
	}

	result, err := b.ingest.Ingest(ctx, domain.TelemetryReading{
		DeviceID:   msg.DeviceID,
		Capability: msg.Capability,
		Value:      msg.Value,
		Timestamp:  msg.Timestamp,
		Seq:        msg.Seq,
		Room:       msg.Room,
	})
	if err != nil {
		return err
	}
	if !result.Allowed {
		// 策略拦截只记 debug：设备端无回执通道
		b.logger.Debug("Telemetry rejected",
			zap.String("device_id", msg.DeviceID),
			zap.String("reason", result.Reason),
		)
	}
	return nil
}

// deviceIDFromTopic 从 {prefix}/{deviceID}/telemetry 提取设备 ID
func deviceIDFromTopic(topic, prefix string) string {
	rest := strings.TrimPrefix(topic, prefix+"/")
	if rest == topic {
		return ""
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[1] != "telemetry" {
		return ""
	}
	return parts[0]
}
