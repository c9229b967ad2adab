package privacy

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// MinimizeConfig 最小化配置（全部可选）
type MinimizeConfig struct {
	StripIdentifiers bool
	NumericBucket    float64 // 0 表示关闭
	TruncateBytes    int     // 0 表示关闭
}

// 标识符键名黑名单（大小写不敏感）
var identifierKeys = map[string]bool{
	"id":       true,
	"deviceid": true,
	"serial":   true,
	"mac":      true,
	"uuid":     true,
	"imei":     true,
}

// Minimize 按固定顺序应用最小化变换：strip -> bucket -> truncate
// 时间戳取整由调用方对原始时间戳单独调用 RoundTimestamp
func Minimize(value any, cfg MinimizeConfig) any {
	out := value
	if cfg.StripIdentifiers {
		out = StripIdentifiers(out)
	}
	if cfg.NumericBucket > 0 {
		out = NumericBucket(out, cfg.NumericBucket)
	}
	if cfg.TruncateBytes > 0 {
		out = TruncatePayloadBytes(out, cfg.TruncateBytes)
	}
	return out
}

// StripIdentifiers 递归删除命中黑名单的键（幂等）
func StripIdentifiers(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, inner := range v {
			if identifierKeys[strings.ToLower(k)] {
				continue
			}
			out[k] = StripIdentifiers(inner)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = StripIdentifiers(inner)
		}
		return out
	default:
		return value
	}
}

// NumericBucket 递归把数值叶子取整到桶大小的最近倍数
func NumericBucket(value any, size float64) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, inner := range v {
			out[k] = NumericBucket(inner, size)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = NumericBucket(inner, size)
		}
		return out
	case float64:
		return math.Round(v/size) * size
	case float32:
		return math.Round(float64(v)/size) * size
	case int:
		return math.Round(float64(v)/size) * size
	case int64:
		return math.Round(float64(v)/size) * size
	default:
		return value
	}
}

// TruncatePayloadBytes 序列化为 JSON 并截断到字节预算
// 序列化失败时退化为字符串表示截断，再失败则返回 "[truncated]" 标记
func TruncatePayloadBytes(value any, budget int) any {
	raw, err := json.Marshal(value)
	if err != nil {
		s := fmt.Sprint(value)
		if len(s) > budget {
			s = s[:budget]
		}
		if s == "" {
			return "[truncated]"
		}
		return s
	}
	if len(raw) <= budget {
		return value
	}
	return string(raw[:budget])
}

// RoundTimestamp 时间戳取整到粒度（毫秒）的最近倍数
func RoundTimestamp(ts int64, granularityMs int64) int64 {
	if granularityMs <= 0 {
		return ts
	}
	return int64(math.Round(float64(ts)/float64(granularityMs))) * granularityMs
}
