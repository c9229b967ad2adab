package domain

// DataClass 数据分类
type DataClass string

const (
	DataClassTelemetry  DataClass = "telemetry"
	DataClassState      DataClass = "state"
	DataClassDiagnostic DataClass = "diagnostic"
	DataClassIdentifier DataClass = "identifier"
	DataClassLocation   DataClass = "location"
)

// Purpose 数据用途
type Purpose string

const (
	PurposeAutomation      Purpose = "automation"
	PurposeTroubleshooting Purpose = "troubleshooting"
	PurposeAnalytics       Purpose = "analytics"
)

// ClassifiedEvent 分类后的上报事件
// 由 Classifier 对 (capability, value) 确定性推断产生，随隐私决策即用即弃，不独立存储
type ClassifiedEvent struct {
	Capability string    `json:"capability"`
	DataClass  DataClass `json:"data_class"`
	Purpose    Purpose   `json:"purpose"`
	Value      any       `json:"value"`
}
