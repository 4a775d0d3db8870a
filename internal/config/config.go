package config

import (
	"fmt"
	"os"
	"strconv"
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

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Config 容量监控服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	HTTP struct {
		Addr string
	}

	// 对象存储（S3 兼容 REST 接口）
	Storage struct {
		BaseURL string
		Bucket  string
	}

	// 人数识别服务
	Vision struct {
		BaseURL   string
		MaxLabels int
	}

	// 短信通知服务
	Notify struct {
		BaseURL       string
		FallbackPhone string // 升级/降级通知的固定兜底号码
	}

	// 管道特定配置
	Pipeline struct {
		// 存储事件订阅主题，如 "storage/+/created"
		IngestTopic string

		// Redis Streams 队列
		Streams struct {
			Images     string
			Counts     string
			DeadLetter string
		}

		// 消费者组
		DetectorGroup string
		WriterGroup   string

		BatchSize int // 单次读取消息数量，默认 10

		// 评估轮询间隔（秒），0 表示只按需评估
		EvalInterval int
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（环境变量 + 默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "CCDatabase")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "capacity-checker")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Storage.BaseURL = getEnv("STORAGE_BASE_URL", "http://localhost:9000")
	cfg.Storage.Bucket = getEnv("STORAGE_BUCKET", "room-images")

	cfg.Vision.BaseURL = getEnv("VISION_BASE_URL", "http://localhost:9100")
	cfg.Vision.MaxLabels = getEnvInt("VISION_MAX_LABELS", 5)

	cfg.Notify.BaseURL = getEnv("NOTIFY_BASE_URL", "http://localhost:9200")
	cfg.Notify.FallbackPhone = getEnv("NOTIFY_FALLBACK_PHONE", "")

	cfg.Pipeline.IngestTopic = getEnv("INGEST_TOPIC", "storage/+/created")
	cfg.Pipeline.Streams.Images = getEnv("STREAM_IMAGES", "occupancy:images")
	cfg.Pipeline.Streams.Counts = getEnv("STREAM_COUNTS", "occupancy:counts")
	cfg.Pipeline.Streams.DeadLetter = getEnv("STREAM_DEADLETTER", "occupancy:deadletter")
	cfg.Pipeline.DetectorGroup = getEnv("DETECTOR_GROUP", "detector")
	cfg.Pipeline.WriterGroup = getEnv("WRITER_GROUP", "writer")
	cfg.Pipeline.BatchSize = getEnvInt("PIPELINE_BATCH_SIZE", 10)
	cfg.Pipeline.EvalInterval = getEnvInt("EVAL_INTERVAL", 0)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
