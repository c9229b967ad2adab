package privacy

import (
	"context"
	"time"

	"wisefido-hub/internal/domain"
	"wisefido-hub/internal/store"
)

// 拦截原因
const (
	ReasonConsentDenied = "consent_denied"
	ReasonInternalError = "internal_error"
)

// ConsentPolicy 当前策略版本下各用途的默认授权
type ConsentPolicy struct {
	Version string
	Grants  map[domain.Purpose]bool
}

// DefaultPolicy 默认策略：自动化和故障排查放行，分析类默认拒绝
func DefaultPolicy(version string) ConsentPolicy {
	return ConsentPolicy{
		Version: version,
		Grants: map[domain.Purpose]bool{
			domain.PurposeAutomation:      true,
			domain.PurposeTroubleshooting: true,
			domain.PurposeAnalytics:       false,
		},
	}
}

// ConsentCache 同意缓存
// 设备级覆盖写在 KV（consent:{device}:{purpose} = "granted"/"denied"），
// 未命中时回退到策略表默认值
type ConsentCache struct {
	policy ConsentPolicy
	kv     store.KV
	ttl    time.Duration
}

func NewConsentCache(policy ConsentPolicy, kv store.KV) *ConsentCache {
	return &ConsentCache{policy: policy, kv: kv, ttl: time.Hour}
}

// PolicyVersion 当前策略版本
func (c *ConsentCache) PolicyVersion() string { return c.policy.Version }

// Granted 判断当前策略是否授权该设备/用途
func (c *ConsentCache) Granted(ctx context.Context, deviceID string, purpose domain.Purpose) bool {
	if c.kv != nil {
		if v, err := c.kv.Get(ctx, consentKey(deviceID, purpose)); err == nil {
			return v == "granted"
		}
	}
	return c.policy.Grants[purpose]
}

// Override 写入设备级同意覆盖（granted=false 表示明确拒绝）
func (c *ConsentCache) Override(ctx context.Context, deviceID string, purpose domain.Purpose, granted bool) error {
	if c.kv == nil {
		return nil
	}
	v := "denied"
	if granted {
		v = "granted"
	}
	return c.kv.Set(ctx, consentKey(deviceID, purpose), v, c.ttl)
}

func consentKey(deviceID string, purpose domain.Purpose) string {
	return "consent:" + deviceID + ":" + string(purpose)
}
