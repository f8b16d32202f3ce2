package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Scheduler.Hour)
	assert.Equal(t, 0, cfg.Scheduler.Minute)
	assert.Equal(t, time.Hour, cfg.Scheduler.RetryDelay)
	assert.Equal(t, LedgerCSV, cfg.Ledger.Backend)
	assert.Equal(t, int64(500), cfg.Ledger.PackSize)
	assert.Equal(t, "sw-stock", cfg.Documents.StockJobPrefix)
	assert.Equal(t, 101, cfg.Documents.SequenceStart)
	assert.Equal(t, 10*time.Second, cfg.Inventory.QueryTimeout)
	assert.Empty(t, cfg.Queries.FGInventory)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmi.yaml")
	content := `
folders:
  orders: /srv/hot
scheduler:
  hour: 6
  minute: 30
ledger:
  backend: mongodb
queries:
  fg_inventory: "SELECT item_code, job_number, quantity FROM fg WHERE part = @part_number"
inventory:
  query_timeout: 3s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("VMI_SCHEDULER_MINUTE", "45")
	t.Setenv("VMI_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/hot", cfg.Folders.Orders)
	assert.Equal(t, 6, cfg.Scheduler.Hour)
	assert.Equal(t, 45, cfg.Scheduler.Minute, "environment overrides the file")
	assert.Equal(t, LedgerMongoDB, cfg.Ledger.Backend)
	assert.Contains(t, cfg.Queries.FGInventory, "@part_number")
	assert.Equal(t, 3*time.Second, cfg.Inventory.QueryTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Folders:   FoldersConfig{Orders: "in", Output: "out"},
			Scheduler: SchedulerConfig{Hour: 7, RetryDelay: time.Hour},
			Ledger:    LedgerConfig{Backend: LedgerCSV, PackSize: 500},
		}
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(c *Config){
		"hour":      func(c *Config) { c.Scheduler.Hour = 24 },
		"minute":    func(c *Config) { c.Scheduler.Minute = -1 },
		"retry":     func(c *Config) { c.Scheduler.RetryDelay = 0 },
		"pack size": func(c *Config) { c.Ledger.PackSize = 0 },
		"backend":   func(c *Config) { c.Ledger.Backend = "sqlite" },
		"orders":    func(c *Config) { c.Folders.Orders = "" },
		"output":    func(c *Config) { c.Folders.Output = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
