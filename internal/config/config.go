// Package config loads the assistant configuration from config.yaml and
// SYNAPSE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the config file read by Load.
const DefaultPath = "config.yaml"

const envPrefix = "SYNAPSE_"

type Config struct {
	Client    ClientConfig    `koanf:"client"`
	Judge     JudgeConfig     `koanf:"judge"`
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Log       LogConfig       `koanf:"log"`
}

// ClientConfig points the client at the assistant service.
type ClientConfig struct {
	BaseURL   string        `koanf:"base_url" validate:"required,url"`
	AuthToken string        `koanf:"auth_token"` // supports ${VAR}
	Timeout   time.Duration `koanf:"timeout" validate:"gte=0"`
}

// JudgeConfig controls background evaluation of finished turns.
type JudgeConfig struct {
	Enabled          bool          `koanf:"enabled"`
	Timeout          time.Duration `koanf:"timeout" validate:"gte=0"`
	MaxHistoryTokens int           `koanf:"max_history_tokens" validate:"gte=0"`
}

// ServerConfig configures assistantd. An empty AuthToken disables bearer
// authentication.
type ServerConfig struct {
	Port      int    `koanf:"port" validate:"gte=1,lte=65535"`
	AuthToken string `koanf:"auth_token"` // supports ${VAR}
}

type StorageConfig struct {
	Type   string       `koanf:"type" validate:"oneof=memory sqlite"`
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

var defaults = map[string]any{
	"client.base_url":          "http://localhost:8000",
	"client.timeout":           "60s",
	"judge.enabled":            true,
	"judge.timeout":            "120s",
	"judge.max_history_tokens": 6000,
	"server.port":              8080,
	"storage.type":             "sqlite",
	"storage.sqlite.path":      "synapse.db",
	"telemetry.service_name":   "synapseos",
	"log.level":                "info",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads DefaultPath and the environment.
func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

// LoadFile reads path, which may be missing, then overlays SYNAPSE_* variables
// ("SYNAPSE_CLIENT__BASE_URL" sets client.base_url), applies defaults for
// absent keys and validates the result.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, value); err != nil {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Client.AuthToken = substituteEnvVars(cfg.Client.AuthToken)
	cfg.Server.AuthToken = substituteEnvVars(cfg.Server.AuthToken)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks cfg against its field rules.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Storage.Type == "sqlite" && cfg.Storage.SQLite.Path == "" {
		return errors.New("invalid config: storage.sqlite.path is required for sqlite storage")
	}
	return nil
}

// SlogLevel maps log.level to a slog level.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
