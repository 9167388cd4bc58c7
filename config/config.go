// Package config provides the bridge configuration and its YAML loader.
package config

import (
	"fmt"
	"os"

	"github.com/callbridge/callbridge/domain/errors"
	"github.com/callbridge/callbridge/validation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Default and to fields left empty in a loaded file.
const (
	DefaultModuleName      = "callbridge"
	DefaultMaxArgumentSize = 1 * 1024 * 1024
	DefaultMaxArguments    = 16
	DefaultLogLevel        = "info"
)

// BridgeConfig configures how host calls are admitted and logged.
type BridgeConfig struct {
	// ModuleName is the host module the functions are exported under.
	ModuleName string `yaml:"module_name" validate:"required"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// MaxArgumentSize limits a single argument buffer read from the guest.
	MaxArgumentSize uint32 `yaml:"max_argument_size" validate:"gt=0"`

	// MaxArguments limits the number of positional arguments per call.
	MaxArguments uint32 `yaml:"max_arguments" validate:"gt=0,lte=256"`
}

// Default returns the default configuration.
func Default() BridgeConfig {
	return BridgeConfig{
		ModuleName:      DefaultModuleName,
		LogLevel:        DefaultLogLevel,
		MaxArgumentSize: DefaultMaxArgumentSize,
		MaxArguments:    DefaultMaxArguments,
	}
}

// Parse unmarshals YAML over the defaults and validates the result.
func Parse(data []byte) (BridgeConfig, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return BridgeConfig{}, errors.Wrap(err, "failed to parse bridge config")
	}
	if err := cfg.Validate(); err != nil {
		return BridgeConfig{}, err
	}
	return cfg, nil
}

// Load reads and parses the YAML file at path.
func Load(path string) (BridgeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BridgeConfig{}, errors.Wrapf(err, "failed to read bridge config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return BridgeConfig{}, errors.Wrapf(err, "loading %s", path)
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c BridgeConfig) Validate() error {
	if err := validation.Struct(c); err != nil {
		return errors.Wrap(err, "invalid bridge config")
	}
	return nil
}

// Level returns the zap level for LogLevel.
func (c BridgeConfig) Level() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

// NewLogger builds a production zap logger at the configured level.
func (c BridgeConfig) NewLogger() (*zap.Logger, error) {
	lvl, err := c.Level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zc.Build(zap.Fields(zap.String("module", c.ModuleName)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build logger")
	}
	return logger, nil
}
