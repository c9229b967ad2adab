package privacy

import (
	"context"
	"testing"
	"time"

	"wisefido-hub/internal/domain"
	"wisefido-hub/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestGuard(cfg MinimizeConfig) *Guard {
	consent := NewConsentCache(DefaultPolicy("v1"), store.NewMemoryKV())
	return NewGuard(consent, cfg, zap.NewNop())
}

func TestGuard_AllowedWithMinimization(t *testing.T) {
	g := newTestGuard(MinimizeConfig{StripIdentifiers: true, NumericBucket: 10})

	// battery -> diagnostic/troubleshooting，默认策略放行
	d := g.Evaluate(context.Background(), "d1", "battery", map[string]any{
		"id":    "x",
		"level": 57.3,
	})

	require.True(t, d.Allowed)
	assert.Equal(t, "v1", d.PolicyVersion)
	assert.Empty(t, d.Reason)
	require.NotNil(t, d.Event)
	assert.Equal(t, domain.DataClassDiagnostic, d.Event.DataClass)

	value := d.Event.Value.(map[string]any)
	assert.NotContains(t, value, "id")
	assert.Equal(t, 60.0, value["level"])
}

func TestGuard_ConsentDenied(t *testing.T) {
	g := newTestGuard(MinimizeConfig{})

	// energy -> analytics，默认策略拒绝
	d := g.Evaluate(context.Background(), "d1", "energy", map[string]any{"kwh": 1.5})

	require.False(t, d.Allowed)
	assert.Equal(t, "v1", d.PolicyVersion)
	assert.Equal(t, ReasonConsentDenied, d.Reason)
	assert.Nil(t, d.Event)
}

func TestGuard_DeviceOverride(t *testing.T) {
	kv := store.NewMemoryKV()
	consent := NewConsentCache(DefaultPolicy("v2"), kv)
	g := NewGuard(consent, MinimizeConfig{}, zap.NewNop())
	ctx := context.Background()

	// 设备级覆盖：d1 授权 analytics
	require.NoError(t, consent.Override(ctx, "d1", domain.PurposeAnalytics, true))

	assert.True(t, g.Evaluate(ctx, "d1", "energy", 1.0).Allowed)
	assert.False(t, g.Evaluate(ctx, "d2", "energy", 1.0).Allowed)
}

// panicKV 用于触发管线内部 panic
type panicKV struct{}

func (panicKV) Get(context.Context, string) (string, error) { panic("kv down") }
func (panicKV) Set(context.Context, string, string, time.Duration) error {
	panic("kv down")
}

func TestGuard_DegradesToBlockedOnPanic(t *testing.T) {
	consent := NewConsentCache(DefaultPolicy("v1"), panicKV{})
	g := NewGuard(consent, MinimizeConfig{}, zap.NewNop())

	d := g.Evaluate(context.Background(), "d1", "temperature", map[string]any{"c": 21.0})

	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonInternalError, d.Reason)
	assert.Equal(t, "v1", d.PolicyVersion)
}
