package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Retention RetentionConfig `mapstructure:"retention"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// MongoConfig holds the session store connection settings.
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// RedisConfig holds the live-metrics cache settings.
type RedisConfig struct {
	Addr string `mapstructure:"addr"`
}

// DetectorConfig points at the external face-detection service.
type DetectorConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

// PipelineConfig tunes the sampling and publish cadences.
type PipelineConfig struct {
	SampleInterval  time.Duration `mapstructure:"sample_interval"`
	PublishInterval time.Duration `mapstructure:"publish_interval"`
}

// RetentionConfig carries the default retention policy day counts.
type RetentionConfig struct {
	MaxAge       int `mapstructure:"max_age"`
	MaxSessions  int `mapstructure:"max_sessions"`
	ArchiveAfter int `mapstructure:"archive_after"`
	DeleteAfter  int `mapstructure:"delete_after"`
}

// LoggingConfig holds settings for the rotating file logger.
type LoggingConfig struct {
	Directory  string `mapstructure:"directory"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "interviewlab")

	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("detector.endpoint", "http://localhost:9090/detect")

	v.SetDefault("pipeline.sample_interval", time.Second)
	v.SetDefault("pipeline.publish_interval", 2*time.Second)

	v.SetDefault("retention.max_age", 1095)
	v.SetDefault("retention.max_sessions", 500)
	v.SetDefault("retention.archive_after", 90)
	v.SetDefault("retention.delete_after", 730)

	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 7)
	v.SetDefault("logging.compress", true)
}

// Load reads configuration from defaults, an optional config.yaml next to
// the binary, and INTERVIEW_-prefixed environment variables. Changes to the
// file are hot-reloaded into the returned struct.
func Load(path string, log *zap.Logger) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("INTERVIEW") // e.g. INTERVIEW_MONGO_URI
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Missing file is fine; defaults and env vars carry the config.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("configuration file changed, reloading", zap.String("file", e.Name))
		if err := v.Unmarshal(cfg); err != nil {
			log.Error("failed to reload configuration", zap.Error(err))
		}
	})

	return cfg, nil
}
