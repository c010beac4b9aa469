package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration
type Config struct {
	Level       string   `mapstructure:"level" yaml:"level"`
	Development bool     `mapstructure:"development" yaml:"development"`
	Encoding    string   `mapstructure:"encoding" yaml:"encoding"` // json or console
	OutputPaths []string `mapstructure:"output_paths" yaml:"output_paths"`
	ErrorPaths  []string `mapstructure:"error_paths" yaml:"error_paths"`

	InitialFields map[string]interface{} `mapstructure:"initial_fields" yaml:"initial_fields"`
}

// DefaultConfig returns the production logger configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:       "info",
		Encoding:    "json",
		OutputPaths: []string{"stdout"},
		ErrorPaths:  []string{"stderr"},
	}
}

// DevelopmentConfig returns a colored console configuration at debug level.
func DevelopmentConfig() *Config {
	return &Config{
		Level:       "debug",
		Development: true,
		Encoding:    "console",
		OutputPaths: []string{"stdout"},
		ErrorPaths:  []string{"stderr"},
	}
}

// Build creates a logger from the configuration
func (c *Config) Build() (*ZapLogger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapConfig zap.Config
	if c.Development {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapConfig.EncoderConfig.MessageKey = "message"
		zapConfig.EncoderConfig.LevelKey = "level"
	}

	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.Development = c.Development
	if c.Encoding != "" {
		zapConfig.Encoding = c.Encoding
	}
	if len(c.OutputPaths) > 0 {
		zapConfig.OutputPaths = c.OutputPaths
	}
	if len(c.ErrorPaths) > 0 {
		zapConfig.ErrorOutputPaths = c.ErrorPaths
	}

	l, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	if len(c.InitialFields) > 0 {
		fields := make([]zap.Field, 0, len(c.InitialFields))
		for k, v := range c.InitialFields {
			fields = append(fields, zap.Any(k, v))
		}
		l = l.With(fields...)
	}

	return NewZapLogger(l), nil
}
