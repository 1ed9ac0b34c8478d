// Package conf loads and validates dispatcher settings from defaults, an
// optional YAML file and environment variables.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/push-dispatcher/internal/logger"
)

// Settings is the root configuration.
type Settings struct {
	Debug        bool                 `yaml:"debug" mapstructure:"debug"`
	Logging      logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Push         PushSettings         `yaml:"push" mapstructure:"push"`
	FCM          FCMSettings          `yaml:"fcm" mapstructure:"fcm"`
	Invalidation InvalidationSettings `yaml:"invalidation" mapstructure:"invalidation"`
	API          APISettings          `yaml:"api" mapstructure:"api"`
	Sentry       SentrySettings       `yaml:"sentry" mapstructure:"sentry"`
}

// PushSettings controls the queue, worker pool and retry schedule.
type PushSettings struct {
	Workers   int               `yaml:"workers" mapstructure:"workers"`
	Queue     QueueSettings     `yaml:"queue" mapstructure:"queue"`
	Retry     RetrySettings     `yaml:"retry" mapstructure:"retry"`
	RateLimit RateLimitSettings `yaml:"ratelimit" mapstructure:"ratelimit"`
}

// QueueSettings selects the queue implementation; 0 capacity means unbounded.
type QueueSettings struct {
	Capacity int `yaml:"capacity" mapstructure:"capacity"`
}

// RetrySettings for delivery attempts. Delay before attempt k is k*BackoffStep.
type RetrySettings struct {
	MaxAttempts int           `yaml:"maxattempts" mapstructure:"maxattempts"`
	BackoffStep time.Duration `yaml:"backoffstep" mapstructure:"backoffstep"`
}

// RateLimitSettings throttles outgoing sends.
type RateLimitSettings struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond float64 `yaml:"requestspersecond" mapstructure:"requestspersecond"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// FCMSettings for the Firebase Cloud Messaging HTTP v1 client.
type FCMSettings struct {
	CredentialsFile string        `yaml:"credentialsfile" mapstructure:"credentialsfile"` // service account JSON
	ProjectID       string        `yaml:"projectid" mapstructure:"projectid"`             // empty: taken from the credentials
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`                 // per-send timeout
	Endpoint        string        `yaml:"endpoint" mapstructure:"endpoint"`               // optional base URL override
}

// InvalidationSettings configures where stale recipients are reported.
type InvalidationSettings struct {
	CacheTTL time.Duration `yaml:"cachettl" mapstructure:"cachettl"`
	Store    StoreSettings `yaml:"store" mapstructure:"store"`
	MQTT     MQTTSettings  `yaml:"mqtt" mapstructure:"mqtt"`
}

// StoreSettings for the invalid recipient ledger.
type StoreSettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Type    string `yaml:"type" mapstructure:"type"` // sqlite or mysql
	Path    string `yaml:"path" mapstructure:"path"` // sqlite file
	DSN     string `yaml:"dsn" mapstructure:"dsn"`   // mysql DSN
}

// MQTTSettings for publishing invalidation events.
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Broker   string `yaml:"broker" mapstructure:"broker"`
	ClientID string `yaml:"clientid" mapstructure:"clientid"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Topic    string `yaml:"topic" mapstructure:"topic"`
	QoS      byte   `yaml:"qos" mapstructure:"qos"`
}

// APISettings for the producer HTTP API.
type APISettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Listen  string `yaml:"listen" mapstructure:"listen"`
}

// SentrySettings for error telemetry.
type SentrySettings struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	DSN         string `yaml:"dsn" mapstructure:"dsn"`
	Environment string `yaml:"environment" mapstructure:"environment"`
}

// Load reads settings into v. configFile may be empty, in which case
// config.yaml is searched in the default config paths and a missing file is
// not an error.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if err := initViper(v, configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

func initViper(v *viper.Viper, configFile string) error {
	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		return err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range DefaultConfigPaths() {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// DefaultConfigPaths lists the directories searched for config.yaml.
func DefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "push-dispatcher"))
	}
	return append(paths, "/etc/push-dispatcher")
}
