// Package config loads decker's configuration with the usual layering:
// built-in defaults, then a YAML file, then DECKER_* environment variables,
// then command-line flags.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/decker/internal/sm2"
)

// envPrefix namespaces decker's environment variables. A double underscore
// separates nesting levels so single underscores survive inside key names:
// DECKER_SCHEDULER__GRADUATING_INTERVAL -> scheduler.graduating_interval.
const envPrefix = "DECKER_"

// flagKeys maps command-line flag names onto config keys. Flags not listed
// here (the action flags) never reach the config.
var flagKeys = map[string]string{
	"db":    "db_path",
	"repos": "repos_dir",
	"user":  "user_id",
}

// Config is the full runtime configuration.
type Config struct {
	DBPath    string          `koanf:"db_path" validate:"required"`
	ReposDir  string          `koanf:"repos_dir" validate:"required"`
	UserID    string          `koanf:"user_id" validate:"required"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
}

// SchedulerConfig holds the engine tunables. The quality enum and the
// transition shape are fixed; only these values can be overridden.
type SchedulerConfig struct {
	LearningSteps      []float64 `koanf:"learning_steps" validate:"min=1,dive,gt=0"`
	GraduatingInterval float64   `koanf:"graduating_interval" validate:"gt=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	p := sm2.DefaultParams()
	return Config{
		DBPath:   "decker.db",
		ReposDir: "repos",
		UserID:   "local",
		Scheduler: SchedulerConfig{
			LearningSteps:      p.LearningSteps,
			GraduatingInterval: p.GraduatingInterval,
		},
	}
}

// Params builds the engine parameters from the configured tunables.
func (c Config) Params() *sm2.Params {
	p := sm2.DefaultParams()
	p.LearningSteps = c.Scheduler.LearningSteps
	p.GraduatingInterval = c.Scheduler.GraduatingInterval
	return p
}

// Load assembles the configuration. The file is optional (an empty path
// skips it); flags may be nil. Later layers win.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		return strings.ReplaceAll(key, "__", "."), value
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	if flags != nil {
		err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load flag config: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
