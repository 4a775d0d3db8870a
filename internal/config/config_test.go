package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证默认值
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "postgres", cfg.Database.Password)
	assert.Equal(t, "CCDatabase", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "", cfg.Redis.Password)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "capacity-checker", cfg.MQTT.ClientID)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "room-images", cfg.Storage.Bucket)
	assert.Equal(t, 5, cfg.Vision.MaxLabels)
	assert.Equal(t, "", cfg.Notify.FallbackPhone)

	assert.Equal(t, "storage/+/created", cfg.Pipeline.IngestTopic)
	assert.Equal(t, "occupancy:images", cfg.Pipeline.Streams.Images)
	assert.Equal(t, "occupancy:counts", cfg.Pipeline.Streams.Counts)
	assert.Equal(t, "occupancy:deadletter", cfg.Pipeline.Streams.DeadLetter)
	assert.Equal(t, "detector", cfg.Pipeline.DetectorGroup)
	assert.Equal(t, "writer", cfg.Pipeline.WriterGroup)
	assert.Equal(t, 10, cfg.Pipeline.BatchSize)
	assert.Equal(t, 0, cfg.Pipeline.EvalInterval)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	// 设置环境变量
	os.Setenv("DB_HOST", "test-host")
	os.Setenv("DB_NAME", "test-db")
	os.Setenv("REDIS_ADDR", "test-redis:6380")
	os.Setenv("MQTT_BROKER", "tcp://test-broker:1883")
	os.Setenv("NOTIFY_FALLBACK_PHONE", "+14089214831")
	os.Setenv("STREAM_IMAGES", "test:images")
	os.Setenv("EVAL_INTERVAL", "30")
	os.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证环境变量覆盖
	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, "test-db", cfg.Database.Database)
	assert.Equal(t, "test-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "tcp://test-broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "+14089214831", cfg.Notify.FallbackPhone)
	assert.Equal(t, "test:images", cfg.Pipeline.Streams.Images)
	assert.Equal(t, 30, cfg.Pipeline.EvalInterval)
	assert.Equal(t, "text", cfg.Log.Format)

	// 清理环境变量
	os.Clearenv()
}

func TestGetDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db-host",
		Port:     5433,
		User:     "u",
		Password: "p",
		Database: "CCDatabase",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=db-host port=5433 user=u password=p dbname=CCDatabase sslmode=disable",
		cfg.GetDSN())
}

func TestGetEnvInt(t *testing.T) {
	os.Clearenv()
	assert.Equal(t, 7, getEnvInt("TEST_INT", 7))

	os.Setenv("TEST_INT", "42")
	assert.Equal(t, 42, getEnvInt("TEST_INT", 7))

	// 非数字回退到默认值
	os.Setenv("TEST_INT", "not-a-number")
	assert.Equal(t, 7, getEnvInt("TEST_INT", 7))

	os.Unsetenv("TEST_INT")
}
