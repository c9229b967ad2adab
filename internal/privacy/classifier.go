package privacy

import (
	"strings"

	"wisefido-hub/internal/domain"
)

// capabilityClass capability -> (dataClass, purpose) 静态映射
type capabilityClass struct {
	dataClass domain.DataClass
	purpose   domain.Purpose
}

// 常见 capability 的确定性分类表；未命中时走启发式
var capabilityTable = map[string]capabilityClass{
	"battery":     {domain.DataClassDiagnostic, domain.PurposeTroubleshooting},
	"firmware":    {domain.DataClassDiagnostic, domain.PurposeTroubleshooting},
	"signal":      {domain.DataClassDiagnostic, domain.PurposeTroubleshooting},
	"location":    {domain.DataClassLocation, domain.PurposeAutomation},
	"gps":         {domain.DataClassLocation, domain.PurposeAutomation},
	"presence":    {domain.DataClassLocation, domain.PurposeAutomation},
	"lock":        {domain.DataClassState, domain.PurposeAutomation},
	"switch":      {domain.DataClassState, domain.PurposeAutomation},
	"thermostat":  {domain.DataClassState, domain.PurposeAutomation},
	"temperature": {domain.DataClassTelemetry, domain.PurposeAutomation},
	"humidity":    {domain.DataClassTelemetry, domain.PurposeAutomation},
	"power":       {domain.DataClassTelemetry, domain.PurposeAnalytics},
	"energy":      {domain.DataClassTelemetry, domain.PurposeAnalytics},
	"serial":      {domain.DataClassIdentifier, domain.PurposeTroubleshooting},
	"mac":         {domain.DataClassIdentifier, domain.PurposeTroubleshooting},
}

// Classify 将 (capability, value) 映射为 ClassifiedEvent
// 纯函数：同样输入必得同样分类，无副作用
func Classify(capability string, value any) domain.ClassifiedEvent {
	key := strings.ToLower(strings.TrimSpace(capability))
	if c, ok := capabilityTable[key]; ok {
		return domain.ClassifiedEvent{
			Capability: capability,
			DataClass:  c.dataClass,
			Purpose:    c.purpose,
			Value:      value,
		}
	}

	// 启发式：根据 capability 名称猜测分类
	dataClass := domain.DataClassTelemetry
	purpose := domain.PurposeAutomation
	switch {
	case strings.Contains(key, "location") || strings.Contains(key, "position") || strings.Contains(key, "zone"):
		dataClass = domain.DataClassLocation
	case strings.Contains(key, "id") || strings.Contains(key, "serial") || strings.Contains(key, "address"):
		dataClass = domain.DataClassIdentifier
		purpose = domain.PurposeTroubleshooting
	case strings.Contains(key, "diag") || strings.Contains(key, "health") || strings.Contains(key, "error"):
		dataClass = domain.DataClassDiagnostic
		purpose = domain.PurposeTroubleshooting
	case strings.Contains(key, "state") || strings.Contains(key, "mode"):
		dataClass = domain.DataClassState
	}

	return domain.ClassifiedEvent{
		Capability: capability,
		DataClass:  dataClass,
		Purpose:    purpose,
		Value:      value,
	}
}
