package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT 配置（指令下发 + 上报接入）
type MQTTConfig struct {
	Enabled     bool   // 是否启用 MQTT（默认 false，纯 HTTP 也可运行）
	Broker      string // Broker 地址（如 "tcp://localhost:1883"）
	ClientID    string
	Username    string
	Password    string
	QoS         byte
	TopicPrefix string // 设备主题前缀（默认 "devices"）
}

// GateConfig 准入网关配置
type GateConfig struct {
	WindowMs int64 // 滑动窗口（毫秒）
	Limit    int   // 窗口内最大请求数
}

// PrivacyConfig 隐私管线配置
type PrivacyConfig struct {
	StripIdentifiers       bool
	NumericBucket          float64 // 数值取整桶大小，0 表示关闭
	TruncateBytes          int     // 序列化字节预算，0 表示关闭
	TimestampGranularityMs int64   // 时间戳取整粒度（毫秒）
	PolicyVersion          string
}

// QueueConfig 指令队列配置
type QueueConfig struct {
	Capacity         int           // 单级队列容量（有界队列，满则拒绝新入队）
	PollInterval     time.Duration // worker 空轮询间隔
	DeliveryTimeout  time.Duration // 单次投递超时
	SimulatedLatency time.Duration // 无真实 transport 时的模拟投递延迟
}

// Config wisefido-hub 配置
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  DatabaseConfig
	Redis     RedisConfig
	MQTT      MQTTConfig
	Gate      GateConfig
	Privacy   PrivacyConfig
	Queue     QueueConfig
	Log       struct {
		Level  string
		Format string
	}
	// 在线状态巡检：超过 OfflineAfter 未上报的设备置为 offline
	Connectivity struct {
		OfflineAfter  time.Duration
		SweepInterval time.Duration
	}
	// 流式订阅鉴权密钥（verifyToken）
	AuthSecret string
	// 幂等记录 / 准入窗口的过期时间
	IdempotencyTTL time.Duration
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// Default to true for local dev: if DB is unavailable, wisefido-hub falls back to in-memory repos.
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "owlhub")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wisefido-hub")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))
	cfg.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", "devices")

	cfg.Gate.WindowMs = int64(parseInt(getEnv("GATE_WINDOW_MS", "10000"), 10000))
	cfg.Gate.Limit = parseInt(getEnv("GATE_LIMIT", "200"), 200)

	cfg.Privacy.StripIdentifiers = getEnv("PRIVACY_STRIP_IDENTIFIERS", "true") == "true"
	cfg.Privacy.NumericBucket = parseFloat(getEnv("PRIVACY_NUMERIC_BUCKET", "0"), 0)
	cfg.Privacy.TruncateBytes = parseInt(getEnv("PRIVACY_TRUNCATE_BYTES", "0"), 0)
	cfg.Privacy.TimestampGranularityMs = int64(parseInt(getEnv("PRIVACY_TS_GRANULARITY_MS", "60000"), 60000))
	cfg.Privacy.PolicyVersion = getEnv("PRIVACY_POLICY_VERSION", "v1")

	cfg.Queue.Capacity = parseInt(getEnv("QUEUE_CAPACITY", "1000"), 1000)
	cfg.Queue.PollInterval = time.Duration(parseInt(getEnv("WORKER_POLL_MS", "100"), 100)) * time.Millisecond
	cfg.Queue.DeliveryTimeout = time.Duration(parseInt(getEnv("DELIVERY_TIMEOUT_MS", "5000"), 5000)) * time.Millisecond
	cfg.Queue.SimulatedLatency = time.Duration(parseInt(getEnv("SIMULATED_DELIVERY_MS", "20"), 20)) * time.Millisecond

	cfg.Connectivity.OfflineAfter = time.Duration(parseInt(getEnv("DEVICE_OFFLINE_AFTER_MS", "120000"), 120000)) * time.Millisecond
	cfg.Connectivity.SweepInterval = time.Duration(parseInt(getEnv("CONNECTIVITY_SWEEP_MS", "30000"), 30000)) * time.Millisecond

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.AuthSecret = getEnv("AUTH_SECRET", "dev-secret")
	cfg.IdempotencyTTL = time.Duration(parseInt(getEnv("IDEMPOTENCY_TTL_HOURS", "24"), 24)) * time.Hour

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseFloat(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}
