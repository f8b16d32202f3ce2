package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vsinha/vmi/pkg/infrastructure/repositories/sql"
)

// Ledger store backends
const (
	LedgerCSV     = "csv"
	LedgerMongoDB = "mongodb"
	LedgerMemory  = "memory"
)

type Config struct {
	Folders   FoldersConfig   `mapstructure:"folders"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	MongoDB   MongoDBConfig   `mapstructure:"mongodb"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Queries   sql.Queries     `mapstructure:"queries"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Documents DocumentsConfig `mapstructure:"documents"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

type FoldersConfig struct {
	Orders   string `mapstructure:"orders"`
	Forecast string `mapstructure:"forecast"`
	Output   string `mapstructure:"output"`
	Ledger   string `mapstructure:"ledger"`
	Logs     string `mapstructure:"logs"`
}

type SchedulerConfig struct {
	Hour       int           `mapstructure:"hour"`
	Minute     int           `mapstructure:"minute"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	Timezone   string        `mapstructure:"timezone"`
}

type LedgerConfig struct {
	Backend  string `mapstructure:"backend"`
	PackSize int64  `mapstructure:"pack_size"`
}

type MongoDBConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	Collection     string        `mapstructure:"collection"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// DatabaseConfig points at the ERP database the inventory queries run against.
// An empty DSN leaves every inventory source not configured.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type InventoryConfig struct {
	QueryTimeout       time.Duration `mapstructure:"query_timeout"`
	Concurrent         bool          `mapstructure:"concurrent"`
	BreakerFailures    uint32        `mapstructure:"breaker_failures"`
	BreakerOpenTimeout time.Duration `mapstructure:"breaker_open_timeout"`
	DeriveItemCodes    bool          `mapstructure:"derive_item_codes"`
}

type DocumentsConfig struct {
	StockJobPrefix  string `mapstructure:"stock_job_prefix"`
	MovementPrefix  string `mapstructure:"movement_prefix"`
	StockJobAddress string `mapstructure:"stock_job_address"`
	MovementAddress string `mapstructure:"movement_address"`
	SequenceStart   int    `mapstructure:"sequence_start"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
	Textfile  string `mapstructure:"textfile"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from path, or from config.yaml in ./configs or the
// working directory when path is empty. VMI_* environment variables override
// file values, with "." in keys replaced by "_".
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("VMI")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("folders.orders", "inputs")
	v.SetDefault("folders.forecast", "")
	v.SetDefault("folders.output", "outputs")
	v.SetDefault("folders.ledger", "data/orders")
	v.SetDefault("folders.logs", "logs")

	v.SetDefault("scheduler.hour", 7)
	v.SetDefault("scheduler.minute", 0)
	v.SetDefault("scheduler.retry_delay", time.Hour)
	v.SetDefault("scheduler.timezone", "America/New_York")

	v.SetDefault("ledger.backend", LedgerCSV)
	v.SetDefault("ledger.pack_size", 500)

	v.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("mongodb.database", "vmi")
	v.SetDefault("mongodb.collection", "demand_ledger")
	v.SetDefault("mongodb.connect_timeout", 10*time.Second)

	v.SetDefault("database.dsn", "")

	v.SetDefault("queries.fg_inventory", "")
	v.SetDefault("queries.wip_inventory", "")
	v.SetDefault("queries.secondary_fg", "")
	v.SetDefault("queries.open_jobs", "")
	v.SetDefault("queries.movements", "")
	v.SetDefault("queries.item_mapping", "")

	v.SetDefault("inventory.query_timeout", 10*time.Second)
	v.SetDefault("inventory.concurrent", false)
	v.SetDefault("inventory.breaker_failures", 5)
	v.SetDefault("inventory.breaker_open_timeout", 30*time.Second)
	v.SetDefault("inventory.derive_item_codes", true)

	v.SetDefault("documents.stock_job_prefix", "sw-stock")
	v.SetDefault("documents.movement_prefix", "GT-Movement")
	v.SetDefault("documents.stock_job_address", "13316")
	v.SetDefault("documents.movement_address", "16291")
	v.SetDefault("documents.sequence_start", 101)

	v.SetDefault("metrics.namespace", "vmi")
	v.SetDefault("metrics.textfile", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate checks ranges and required settings
func (c *Config) Validate() error {
	if c.Scheduler.Hour < 0 || c.Scheduler.Hour > 23 {
		return fmt.Errorf("scheduler.hour must be between 0 and 23, got %d", c.Scheduler.Hour)
	}
	if c.Scheduler.Minute < 0 || c.Scheduler.Minute > 59 {
		return fmt.Errorf("scheduler.minute must be between 0 and 59, got %d", c.Scheduler.Minute)
	}
	if c.Scheduler.RetryDelay <= 0 {
		return fmt.Errorf("scheduler.retry_delay must be positive")
	}
	if c.Ledger.PackSize <= 0 {
		return fmt.Errorf("ledger.pack_size must be positive, got %d", c.Ledger.PackSize)
	}
	switch c.Ledger.Backend {
	case LedgerCSV, LedgerMongoDB, LedgerMemory:
	default:
		return fmt.Errorf("unknown ledger.backend %q", c.Ledger.Backend)
	}
	if c.Folders.Orders == "" {
		return fmt.Errorf("folders.orders is required")
	}
	if c.Folders.Output == "" {
		return fmt.Errorf("folders.output is required")
	}
	return nil
}

// Location returns the scheduler time zone, falling back to local time
func (c *Config) Location() *time.Location {
	if c.Scheduler.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
