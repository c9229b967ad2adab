package privacy

import (
	"context"

	"wisefido-hub/internal/domain"

	"go.uber.org/zap"
)

// Decision 隐私管线的综合判定
// allowed=false 时仍然返回 policyVersion 和 reason，且不携带最小化后的事件
type Decision struct {
	Allowed       bool
	PolicyVersion string
	Reason        string
	Event         *domain.ClassifiedEvent // 仅 allowed=true 时存在，value 已最小化
}

// Guard 出口守卫：Classifier -> ConsentCache -> Minimization 的编排
type Guard struct {
	consent  *ConsentCache
	minimize MinimizeConfig
	logger   *zap.Logger
}

func NewGuard(consent *ConsentCache, minimize MinimizeConfig, logger *zap.Logger) *Guard {
	return &Guard{consent: consent, minimize: minimize, logger: logger}
}

// Evaluate 评估单条上报
// 内部错误不允许逃出管线：统一退化为 blocked + internal_error
func (g *Guard) Evaluate(ctx context.Context, deviceID, capability string, value any) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("Privacy pipeline panic, degrading to blocked",
				zap.String("device_id", deviceID),
				zap.String("capability", capability),
				zap.Any("panic", r),
			)
			d = Decision{Allowed: false, PolicyVersion: g.consent.PolicyVersion(), Reason: ReasonInternalError}
		}
	}()

	classified := Classify(capability, value)

	if !g.consent.Granted(ctx, deviceID, classified.Purpose) {
		return Decision{
			Allowed:       false,
			PolicyVersion: g.consent.PolicyVersion(),
			Reason:        ReasonConsentDenied,
		}
	}

	classified.Value = Minimize(classified.Value, g.minimize)

	return Decision{
		Allowed:       true,
		PolicyVersion: g.consent.PolicyVersion(),
		Event:         &classified,
	}
}
