package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripIdentifiers(t *testing.T) {
	value := map[string]any{
		"ID":    "x",
		"level": 57.3,
		"nested": map[string]any{
			"Mac":  "aa:bb",
			"temp": 21.0,
			"list": []any{
				map[string]any{"uuid": "u1", "v": 1.0},
			},
		},
	}

	got := StripIdentifiers(value).(map[string]any)

	assert.NotContains(t, got, "ID")
	assert.Contains(t, got, "level")
	nested := got["nested"].(map[string]any)
	assert.NotContains(t, nested, "Mac")
	assert.Contains(t, nested, "temp")
	item := nested["list"].([]any)[0].(map[string]any)
	assert.NotContains(t, item, "uuid")
	assert.Contains(t, item, "v")
}

func TestStripIdentifiers_Idempotent(t *testing.T) {
	value := map[string]any{
		"deviceId": "d1",
		"serial":   "s1",
		"level":    42.0,
	}

	once := StripIdentifiers(value)
	twice := StripIdentifiers(once)

	assert.Equal(t, once, twice)
}

func TestNumericBucket(t *testing.T) {
	value := map[string]any{
		"level": 57.3,
		"count": 7,
		"deep":  []any{12.0, 18.0},
		"name":  "sensor",
	}

	got := NumericBucket(value, 10).(map[string]any)

	assert.Equal(t, 60.0, got["level"])
	assert.Equal(t, 10.0, got["count"])
	assert.Equal(t, []any{10.0, 20.0}, got["deep"])
	assert.Equal(t, "sensor", got["name"])
}

func TestTruncatePayloadBytes(t *testing.T) {
	// 预算内：原样返回
	small := map[string]any{"a": 1.0}
	assert.Equal(t, small, TruncatePayloadBytes(small, 100))

	// 超出预算：序列化截断
	big := map[string]any{"text": "0123456789012345678901234567890123456789"}
	got := TruncatePayloadBytes(big, 16)
	s, ok := got.(string)
	assert.True(t, ok)
	assert.Len(t, s, 16)
}

func TestTruncatePayloadBytes_UnserializableFallback(t *testing.T) {
	// chan 无法 JSON 序列化，退化为字符串截断
	got := TruncatePayloadBytes(make(chan int), 8)
	s, ok := got.(string)
	assert.True(t, ok)
	assert.NotEmpty(t, s)
	assert.LessOrEqual(t, len(s), 8)
}

func TestRoundTimestamp(t *testing.T) {
	assert.Equal(t, int64(60000), RoundTimestamp(59000, 60000))
	assert.Equal(t, int64(0), RoundTimestamp(29999, 60000))
	assert.Equal(t, int64(120000), RoundTimestamp(90000, 60000))
	// 粒度为 0：不取整
	assert.Equal(t, int64(12345), RoundTimestamp(12345, 0))
}

func TestMinimize_Order(t *testing.T) {
	cfg := MinimizeConfig{StripIdentifiers: true, NumericBucket: 10}
	value := map[string]any{"id": "x", "level": 57.3}

	got := Minimize(value, cfg).(map[string]any)

	assert.NotContains(t, got, "id")
	assert.Equal(t, 60.0, got["level"])
}
