package service

import (
	"context"
	"time"

	"wisefido-hub/internal/domain"
	"wisefido-hub/internal/gate"
	"wisefido-hub/internal/privacy"
	"wisefido-hub/internal/repository"
	"wisefido-hub/internal/security"

	"go.uber.org/zap"
)

// EventPublisher 事件发布端（由 bus.Bus 实现）
type EventPublisher interface {
	Emit(event domain.Event)
}

// IngestResult 单条上报的处理结果
// 策略拦截/限流不是错误：结构化返回给调用方
type IngestResult struct {
	Allowed       bool                    `json:"allowed"`
	PolicyVersion string                  `json:"policy_version,omitempty"`
	Reason        string                  `json:"reason,omitempty"`
	Event         *domain.ClassifiedEvent `json:"event,omitempty"`
}

// 上报路径的拒绝原因（网关/隐私之外）
const ReasonQuarantined = "quarantined"

// IngestService 上报管线编排
// 准入网关 -> 隔离检查 -> 隐私管线 -> 设备建档 -> 落库（可选）-> 事件发布
type IngestService struct {
	gate       *gate.Gate
	guard      *privacy.Guard
	quarantine *security.Quarantine
	detector   *security.Detector
	devices    repository.DevicesRepository
	telemetry  repository.TelemetryRepository // 可为 nil：不落库
	bus        EventPublisher

	tsGranularityMs int64
	logger          *zap.Logger
	now             func() time.Time
}

func NewIngestService(
	g *gate.Gate,
	guard *privacy.Guard,
	quarantine *security.Quarantine,
	detector *security.Detector,
	devices repository.DevicesRepository,
	telemetry repository.TelemetryRepository,
	bus EventPublisher,
	tsGranularityMs int64,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		gate:            g,
		guard:           guard,
		quarantine:      quarantine,
		detector:        detector,
		devices:         devices,
		telemetry:       telemetry,
		bus:             bus,
		tsGranularityMs: tsGranularityMs,
		logger:          logger,
		now:             time.Now,
	}
}

// Ingest 处理单条上报
func (s *IngestService) Ingest(ctx context.Context, reading domain.TelemetryReading) (IngestResult, error) {
	// block 模式隔离：上报路径直接拒绝（read_only 不拦上报）
	if s.quarantine.IsBlocked(reading.DeviceID) {
		return IngestResult{Allowed: false, Reason: ReasonQuarantined}, nil
	}

	decision := s.gate.Admit(reading.DeviceID, reading.Seq)
	if !decision.Allowed {
		// 序列回退转交入侵检测（是否升级隔离由编排方决定）
		if decision.Reason == gate.ReasonSequenceRegression {
			s.detector.OnSequence(reading.DeviceID, decision.Seq)
		}
		return IngestResult{Allowed: false, Reason: decision.Reason}, nil
	}
	s.detector.OnSequence(reading.DeviceID, decision.Seq)

	privacyDecision := s.guard.Evaluate(ctx, reading.DeviceID, reading.Capability, reading.Value)
	meta := domain.EventMeta{
		DeviceID:   reading.DeviceID,
		Capability: reading.Capability,
		Room:       reading.Room,
		At:         s.now(),
	}

	if !privacyDecision.Allowed {
		s.bus.Emit(domain.PrivacyEvent{
			EventMeta:     meta,
			Allowed:       false,
			PolicyVersion: privacyDecision.PolicyVersion,
			Reason:        privacyDecision.Reason,
		})
		return IngestResult{
			Allowed:       false,
			PolicyVersion: privacyDecision.PolicyVersion,
			Reason:        privacyDecision.Reason,
		}, nil
	}

	// 设备首次上报自动建档；重新上线发连通性事件
	device, cameOnline, err := s.devices.TouchOnSeen(ctx, reading.DeviceID, reading.Capability, s.now())
	if err != nil {
		// 存储不可用属于硬错误，向上传播
		return IngestResult{}, err
	}
	if cameOnline {
		s.bus.Emit(domain.ConnectivityEvent{
			EventMeta: domain.EventMeta{DeviceID: device.DeviceID, At: s.now()},
			Online:    true,
		})
	}

	roundedTs := privacy.RoundTimestamp(reading.Timestamp, s.tsGranularityMs)
	if s.telemetry != nil {
		rec := &domain.TelemetryRecord{
			DeviceID:      reading.DeviceID,
			Capability:    reading.Capability,
			DataClass:     privacyDecision.Event.DataClass,
			Value:         privacyDecision.Event.Value,
			PolicyVersion: privacyDecision.PolicyVersion,
			Timestamp:     roundedTs,
		}
		if err := s.telemetry.Insert(ctx, rec); err != nil {
			// 落库失败不拦事件流，记日志继续
			s.logger.Error("Failed to persist telemetry",
				zap.String("device_id", reading.DeviceID),
				zap.Error(err),
			)
		}
	}

	s.bus.Emit(domain.PrivacyEvent{
		EventMeta:     meta,
		Allowed:       true,
		PolicyVersion: privacyDecision.PolicyVersion,
	})

	return IngestResult{
		Allowed:       true,
		PolicyVersion: privacyDecision.PolicyVersion,
		Event:         privacyDecision.Event,
	}, nil
}

// IngestBatch 处理批量上报包：每条读数独立走完整管线，互不影响
func (s *IngestService) IngestBatch(ctx context.Context, envelope domain.BatchEnvelope) []IngestResult {
	results := make([]IngestResult, 0, len(envelope.Readings))
	for _, r := range envelope.Readings {
		reading := domain.TelemetryReading{
			DeviceID:   envelope.DeviceID,
			Capability: envelope.Type,
			Value:      r.Payload,
			Timestamp:  r.Timestamp,
		}
		result, err := s.Ingest(ctx, reading)
		if err != nil {
			s.logger.Error("Failed to ingest batch reading",
				zap.String("device_id", envelope.DeviceID),
				zap.Error(err),
			)
			result = IngestResult{Allowed: false, Reason: "internal_error"}
		}
		results = append(results, result)
	}
	return results
}
