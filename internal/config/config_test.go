package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plantid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: /tmp/p.db\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/p.db", cfg.Database.Path)
	assert.Equal(t, RemoteOffline, cfg.Remote.Driver)
	assert.Equal(t, 0.7, cfg.Model.Threshold)
	assert.Equal(t, 5, cfg.Model.MaxPredictions)
	assert.Equal(t, 224, cfg.Model.InputSize)
	assert.Equal(t, 1000, cfg.Sync.Ceiling)
	assert.Equal(t, 50, cfg.Sync.DefaultLimit)
	assert.Equal(t, 2*time.Second, cfg.Outbox.BaseBackoff)
	assert.Equal(t, 5*time.Minute, cfg.Outbox.MaxBackoff)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PLANTID_REMOTE_DRIVER", "postgres")
	t.Setenv("PLANTID_POSTGRES_DSN", "postgres://plantid@localhost/plantid")
	t.Setenv("PLANTID_MODEL_THRESHOLD", "0.8")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, RemotePostgres, cfg.Remote.Driver)
	assert.Equal(t, 0.8, cfg.Model.Threshold)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"firestore without project", func(c *Config) { c.Remote.Driver = RemoteFirestore }, true},
		{"firestore with project", func(c *Config) {
			c.Remote.Driver = RemoteFirestore
			c.Remote.ProjectID = "plantid"
		}, false},
		{"unknown driver", func(c *Config) { c.Remote.Driver = "mongo" }, true},
		{"threshold out of range", func(c *Config) { c.Model.Threshold = 1.5 }, true},
		{"images without bucket", func(c *Config) { c.Images.Enabled = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
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
