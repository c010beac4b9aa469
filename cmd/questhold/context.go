package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/questhold/questhold/internal/config"
	"github.com/questhold/questhold/internal/infrastructure/persistence/gorm"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *zap.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := os.MkdirAll(cfg.Server.DataDir, 0o755); err != nil {
			c.configErr = fmt.Errorf("create data dir: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*zap.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		l, err := cfg.Logger.Build()
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = l.Zap()
	})
	return c.logger, c.loggerErr
}

// withApp builds the application graph, migrates the schema and starts the
// event bus for the duration of fn.
func (c *commandContext) withApp(ctx context.Context, fn func(*App) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	zl, err := c.ensureLogger()
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	app, cleanup, err := InitializeApp(ctx, cfg, zl)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer cleanup()

	if err := gorm.AutoMigrate(app.DB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := app.startCore(ctx); err != nil {
		return err
	}
	defer app.stop()

	return fn(app)
}
