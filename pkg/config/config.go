package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Service  string        `mapstructure:"service"`
	Timezone string        `mapstructure:"timezone"`
	Log      LogConfig     `mapstructure:"log"`
	Server   ServerConfig  `mapstructure:"server"`
	Closing  ClosingConfig `mapstructure:"closing"`
	Storage  StorageConfig `mapstructure:"storage"`
	Outputs  OutputsConfig `mapstructure:"outputs"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type ClosingConfig struct {
	// Spec is the cron expression for the scheduled daily closing,
	// evaluated in the configured timezone.
	Spec string `mapstructure:"spec"`
}

type StorageConfig struct {
	// Dir holds the JSON documents when no external backend is configured.
	Dir string `mapstructure:"dir"`

	// Prefix for the storage layer (PG table prefix or Redis key prefix).
	Prefix string `mapstructure:"prefix"`

	PostgresURL   string `mapstructure:"postgres_url"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

type OutputsConfig struct {
	Discord  DiscordOutputConfig  `mapstructure:"discord"`
	Console  ConsoleOutputConfig  `mapstructure:"console"`
	File     FileOutputConfig     `mapstructure:"file"`
	Redis    RedisOutputConfig    `mapstructure:"redis"`
	Kafka    KafkaOutputConfig    `mapstructure:"kafka"`
	RabbitMQ RabbitMQOutputConfig `mapstructure:"rabbitmq"`
}

type DiscordOutputConfig struct {
	// URL empty means Discord delivery is disabled; that is a valid state.
	URL           string      `mapstructure:"url"`
	RatePerMinute int         `mapstructure:"rate_per_minute"`
	Retry         RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

type ConsoleOutputConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type FileOutputConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type RedisOutputConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
	Mode     string `mapstructure:"mode"` // list, pubsub
}

type KafkaOutputConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	User     string   `mapstructure:"user"`
	Password string   `mapstructure:"password"`
}

type RabbitMQOutputConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
	QueueName  string `mapstructure:"queue_name"`
	Durable    bool   `mapstructure:"durable"`
}

// Load builds the configuration from an optional YAML file, the environment
// and built-in defaults. A .env file in the working directory is applied
// first; its absence is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyEnvShortcuts(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

// applyEnvShortcuts honors the handful of unprefixed variables the service
// has always recognized.
func applyEnvShortcuts(cfg *Config) {
	if url := os.Getenv("DISCORD_WEBHOOK_URL"); url != "" {
		cfg.Outputs.Discord.URL = url
	}
	if port := os.Getenv("PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = n
		}
	}
	if tz := os.Getenv("TZ"); tz != "" {
		cfg.Timezone = tz
	}
	if url := os.Getenv("PG_URL"); url != "" {
		cfg.Storage.PostgresURL = url
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Storage.RedisAddr = addr
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Service == "" {
		cfg.Service = "asaas-discord-webhook"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "America/Sao_Paulo"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Closing.Spec == "" {
		cfg.Closing.Spec = "59 23 * * *"
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "."
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "relay_"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Outputs.Discord.RatePerMinute == 0 {
		cfg.Outputs.Discord.RatePerMinute = 30
	}
	if cfg.Outputs.Discord.Retry.MaxAttempts == 0 {
		cfg.Outputs.Discord.Retry.MaxAttempts = 3
	}
	if cfg.Outputs.Discord.Retry.InitialBackoff == 0 {
		cfg.Outputs.Discord.Retry.InitialBackoff = 1 * time.Second
	}
	if cfg.Outputs.Discord.Retry.MaxBackoff == 0 {
		cfg.Outputs.Discord.Retry.MaxBackoff = 10 * time.Second
	}
}
