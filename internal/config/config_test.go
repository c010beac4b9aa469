package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questhold/questhold/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("QUESTHOLD_SERVER_DATA_DIR", dir)

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, filepath.Join(dir, "questhold.db"), cfg.Database.Path)
	assert.Equal(t, filepath.Join(dir, "images"), cfg.Storage.LocalPath)
	assert.Equal(t, "none", cfg.Events.Sink)
	assert.Equal(t, "@daily", cfg.Metadata.UpdateSchedule)
	assert.True(t, cfg.Metadata.UpdateEnabled)
	assert.Equal(t, `^[^\[]+`, cfg.Library.TitleExtractionRegex)
	assert.Contains(t, cfg.Library.GameFileExtensions, "iso")
	assert.Equal(t, time.Second, cfg.Library.ProgressInterval)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "questhold.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
server:
  data_dir: /srv/questhold
database:
  driver: postgres
  host: db.internal
  name: catalog
metadata:
  update_schedule: "0 3 * * *"
`), 0644))
	t.Setenv("QUESTHOLD_DATABASE_PORT", "6543")
	t.Setenv("QUESTHOLD_METADATA_UPDATE_ENABLED", "false")

	cfg, err := config.Load(file)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "0 3 * * *", cfg.Metadata.UpdateSchedule)
	assert.False(t, cfg.Metadata.UpdateEnabled)
	assert.Equal(t, "host=db.internal port=6543 user=questhold password=questhold dbname=catalog sslmode=disable", cfg.Database.DSN())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *config.Config {
		return &config.Config{
			Database: config.DatabaseConfig{Driver: "sqlite", Path: "/tmp/q.db"},
			Storage:  config.StorageConfig{Type: "local", LocalPath: "/tmp/img"},
			Events:   config.EventsConfig{Sink: "none"},
			Library:  config.LibraryConfig{ScanConcurrency: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*config.Config) {}},
		{name: "unknown driver", mutate: func(c *config.Config) { c.Database.Driver = "mysql" }, wantErr: true},
		{name: "s3 without bucket", mutate: func(c *config.Config) { c.Storage.Type = "s3" }, wantErr: true},
		{name: "unknown sink", mutate: func(c *config.Config) { c.Events.Sink = "amqp" }, wantErr: true},
		{name: "kafka without topic", mutate: func(c *config.Config) {
			c.Events.Sink = "kafka"
			c.Events.Kafka.Brokers = []string{"k:9092"}
		}, wantErr: true},
		{name: "zero concurrency", mutate: func(c *config.Config) { c.Library.ScanConcurrency = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
