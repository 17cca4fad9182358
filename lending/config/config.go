package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/Astemirdum/librakeeper/pkg/auth"
	"github.com/Astemirdum/librakeeper/pkg/circuit_breaker"
	"github.com/Astemirdum/librakeeper/pkg/email"
	"github.com/Astemirdum/librakeeper/pkg/kafka"
	"github.com/Astemirdum/librakeeper/pkg/logger"
	"github.com/Astemirdum/librakeeper/pkg/postgres"
	"github.com/Astemirdum/librakeeper/pkg/redis"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"LENDING_HTTP_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" envconfig:"LENDING_HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"15s"`
	WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"HTTP_WRITE"`
}

type Storage string

const (
	StoragePostgres Storage = "postgres"
	StorageMemory   Storage = "memory"
)

type NotifyMode string

const (
	// NotifyEmail sends mail from the API process.
	NotifyEmail NotifyMode = "email"
	// NotifyKafka publishes events for the notifier process.
	NotifyKafka NotifyMode = "kafka"
)

type Notify struct {
	Mode        NotifyMode    `yaml:"mode" envconfig:"NOTIFY_MODE" default:"email"`
	Timeout     time.Duration `yaml:"timeout" envconfig:"NOTIFY_TIMEOUT" default:"30s"`
	DedupeTTL   time.Duration `yaml:"dedupeTTL" envconfig:"NOTIFY_DEDUPE_TTL" default:"168h"`
	AdminEmails []string      `yaml:"adminEmails" envconfig:"ADMIN_EMAILS"`
	AppURL      string        `yaml:"appURL" envconfig:"APP_URL" default:"http://localhost:3000"`
}

type Config struct {
	Server   HTTPServer             `yaml:"server"`
	Storage  Storage                `yaml:"storage" envconfig:"STORAGE" default:"postgres"`
	Database postgres.DB            `yaml:"db"`
	Kafka    kafka.Config           `yaml:"kafka"`
	Redis    redis.Config           `yaml:"redis"`
	Email    email.Config           `yaml:"email"`
	Auth     auth.Config            `yaml:"auth"`
	CB       circuit_breaker.Config `yaml:"cb"`
	Notify   Notify                 `yaml:"notify"`
	Log      logger.Log             `yaml:"log"`
}

func (c Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Storage)
	}
	switch c.Notify.Mode {
	case NotifyEmail:
	case NotifyKafka:
		if !c.Kafka.Enabled() {
			return fmt.Errorf("NOTIFY_MODE=kafka needs KAFKA_ADDRS")
		}
	default:
		return fmt.Errorf("unknown NOTIFY_MODE %q", c.Notify.Mode)
	}
	return nil
}

var (
	once sync.Once
	cfg  Config
)

// NewConfig reads config from environment.
func NewConfig(ops ...Option) Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		err := envconfig.Process("", &config)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = config
		printConfig(cfg)
	})

	return cfg
}

func printConfig(cfg Config) {
	cfg.Database.Password = "***"
	cfg.Auth.JWTSecret = "***"
	cfg.Email.PostmarkServerToken = ""
	cfg.Email.PostmarkAccountToken = ""
	cfg.Redis.URL = ""
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}
