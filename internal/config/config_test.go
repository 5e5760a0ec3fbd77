package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.MigrateOnStart)
	assert.Equal(t, int32(25), cfg.Database.MaxConns)
	assert.Equal(t, 30*time.Second, cfg.Database.StatementTimeout)
	assert.False(t, cfg.Numbering.VerifyUnique)
	assert.Equal(t, 10, cfg.Numbering.MaxAttempts)
	assert.Zero(t, cfg.Numbering.MaxCodeLength)
	assert.Equal(t, "documents", cfg.Numbering.DocumentsTable)
	assert.Equal(t, "document_number", cfg.Numbering.DocumentNumberColumn)
	assert.Equal(t, 5*time.Second, cfg.GenerateTimeout)
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/docnum")
	t.Setenv("DB_MAX_CONNS", "40")
	t.Setenv("DB_MAX_CONN_IDLE_TIME", "5m")
	t.Setenv("NUMBERING_VERIFY_UNIQUE", "true")
	t.Setenv("NUMBERING_MAX_ATTEMPTS", "3")
	t.Setenv("NUMBERING_MAX_CODE_LENGTH", "1")
	t.Setenv("GENERATE_TIMEOUT", "750ms")

	cfg, err := Parse()
	require.NoError(t, err)

	pc := cfg.PoolConfig()
	assert.Equal(t, "postgres://localhost/docnum", pc.DSN)
	assert.Equal(t, int32(40), pc.MaxConns)
	assert.Equal(t, 5*time.Minute, pc.MaxConnIdleTime)

	sc := cfg.ServiceConfig()
	assert.True(t, sc.VerifyUnique)
	assert.Equal(t, 3, sc.MaxAttempts)
	assert.Equal(t, 1, sc.MaxCodeLength)
	assert.Equal(t, 750*time.Millisecond, cfg.GenerateTimeout)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			StorageDriver:   DriverPostgres,
			Database:        Database{URL: "postgres://x", MaxConns: 10, MinConns: 2, StatementTimeout: time.Second},
			Numbering:       Numbering{MaxAttempts: 10},
			GenerateTimeout: time.Second,
			ShutdownTimeout: time.Second,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"memory without dsn", func(c *Config) { c.StorageDriver = DriverMemory; c.Database.URL = "" }, nil},
		{"postgres without dsn", func(c *Config) { c.Database.URL = "" }, ErrMissingDSN},
		{"unknown driver", func(c *Config) { c.StorageDriver = "mysql" }, ErrUnknownDriver},
		{"zero attempts", func(c *Config) { c.Numbering.MaxAttempts = 0 }, ErrInvalidAttempts},
		{"zero generate timeout", func(c *Config) { c.GenerateTimeout = 0 }, ErrInvalidTimeout},
		{"min above max", func(c *Config) { c.Database.MinConns = 20 }, ErrInvalidPoolSizes},
		{"negative code limit", func(c *Config) { c.Numbering.MaxCodeLength = -1 }, ErrInvalidCodeLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STORAGE_DRIVER=memory\nAPP_PORT=9191\n"), 0o600))

	// godotenv never overrides variables that are already set; t.Setenv restores them afterwards.
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("APP_PORT", "")
	require.NoError(t, os.Unsetenv("STORAGE_DRIVER"))
	require.NoError(t, os.Unsetenv("APP_PORT"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StorageDriver)
	assert.Equal(t, "9191", cfg.AppPort)
}
