package config

import (
	"testing"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Astemirdum/librakeeper/pkg/auth"
)

func TestConfig_FromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_HOST", "db")
	t.Setenv("ADMIN_EMAILS", "a@example.com,b@example.com")
	t.Setenv("KAFKA_ADDRS", "kafka:9092")
	t.Setenv("NOTIFY_MODE", "kafka")

	var c Config
	WithWriteTimeout(time.Minute)(&c)
	WithLogLevel(zapcore.DebugLevel)(&c)
	require.NoError(t, envconfig.Process("", &c))

	require.Equal(t, "db", c.Database.Host)
	require.Equal(t, "5432", c.Database.Port)
	require.Equal(t, StoragePostgres, c.Storage)
	require.Equal(t, []string{"a@example.com", "b@example.com"}, c.Notify.AdminEmails)
	require.Equal(t, []string{"kafka:9092"}, c.Kafka.Addrs)
	require.Equal(t, time.Minute, c.Server.WriteTimeout)
	require.Equal(t, zapcore.DebugLevel, c.Log.LogLevel)
	require.Equal(t, 30*time.Second, c.Notify.Timeout)
	require.NoError(t, c.Validate())
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		Auth:    auth.Config{JWTSecret: "secret"},
		Storage: StorageMemory,
		Notify:  Notify{Mode: NotifyEmail},
	}
	require.NoError(t, valid.Validate())

	noSecret := valid
	noSecret.Auth.JWTSecret = ""
	require.Error(t, noSecret.Validate())

	badStorage := valid
	badStorage.Storage = "sqlite"
	require.Error(t, badStorage.Validate())

	kafkaWithoutBrokers := valid
	kafkaWithoutBrokers.Notify.Mode = NotifyKafka
	require.Error(t, kafkaWithoutBrokers.Validate())
}
