package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"smc-engine/internal/analysis"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when SMC_CONFIG_FILE is not set
const DefaultConfigFile = "config.json"

type Config struct {
	ServerConfig    ServerConfig    `json:"server" yaml:"server" toml:"server"`
	LoggingConfig   LoggingConfig   `json:"logging" yaml:"logging" toml:"logging"`
	EngineConfig    EngineConfig    `json:"engine" yaml:"engine" toml:"engine"`
	RedisConfig     RedisConfig     `json:"redis" yaml:"redis" toml:"redis"`
	DatabaseConfig  DatabaseConfig  `json:"database" yaml:"database" toml:"database"`
	ArchiveConfig   ArchiveConfig   `json:"archive" yaml:"archive" toml:"archive"`
	VaultConfig     VaultConfig     `json:"vault" yaml:"vault" toml:"vault"`
	SchedulerConfig SchedulerConfig `json:"scheduler" yaml:"scheduler" toml:"scheduler"`
	ScannerConfig   ScannerConfig   `json:"scanner" yaml:"scanner" toml:"scanner"`
}

type LoggingConfig struct {
	Level       string `json:"level" yaml:"level" toml:"level"`                      // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output" yaml:"output" toml:"output"`                   // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format" yaml:"json_format" toml:"json_format"`    // Output as JSON
	IncludeFile bool   `json:"include_file" yaml:"include_file" toml:"include_file"` // Include file and line number
}

type ServerConfig struct {
	Port            int    `json:"port" yaml:"port" toml:"port"`
	Host            string `json:"host" yaml:"host" toml:"host"`
	AllowedOrigins  string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"` // CORS allowed origins
	ReadTimeout     int    `json:"read_timeout" yaml:"read_timeout" toml:"read_timeout"`          // Seconds
	WriteTimeout    int    `json:"write_timeout" yaml:"write_timeout" toml:"write_timeout"`       // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout" yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// EngineConfig carries the detector parameters and the opportunity log size
type EngineConfig struct {
	Params             analysis.Params `json:"params" yaml:"params" toml:"params"`
	OpportunityLogSize int             `json:"opportunity_log_size" yaml:"opportunity_log_size" toml:"opportunity_log_size"`
}

// RedisConfig holds Redis configuration for the analysis snapshot cache
type RedisConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Address    string `json:"address" yaml:"address" toml:"address"`
	Password   string `json:"password" yaml:"password" toml:"password"`
	DB         int    `json:"db" yaml:"db" toml:"db"`
	PoolSize   int    `json:"pool_size" yaml:"pool_size" toml:"pool_size"`
	TTLSeconds int    `json:"ttl_seconds" yaml:"ttl_seconds" toml:"ttl_seconds"`
}

// TTL returns the snapshot expiry
func (c RedisConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Host     string `json:"host" yaml:"host" toml:"host"`
	Port     int    `json:"port" yaml:"port" toml:"port"`
	User     string `json:"user" yaml:"user" toml:"user"`
	Password string `json:"password" yaml:"password" toml:"password"`
	Database string `json:"database" yaml:"database" toml:"database"`
	SSLMode  string `json:"ssl_mode" yaml:"ssl_mode" toml:"ssl_mode"`
	MaxConns int    `json:"max_conns" yaml:"max_conns" toml:"max_conns"`
}

// ArchiveConfig selects where analyses are archived.
// Driver is "postgres", "sqlite" or "none".
type ArchiveConfig struct {
	Driver         string `json:"driver" yaml:"driver" toml:"driver"`
	SQLitePath     string `json:"sqlite_path" yaml:"sqlite_path" toml:"sqlite_path"`
	RetentionHours int    `json:"retention_hours" yaml:"retention_hours" toml:"retention_hours"`
}

// Retention returns how long archived rows are kept
func (c ArchiveConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

type VaultConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Address    string `json:"address" yaml:"address" toml:"address"`
	Token      string `json:"token" yaml:"token" toml:"token"`
	MountPath  string `json:"mount_path" yaml:"mount_path" toml:"mount_path"`    // KV secrets engine mount path
	SecretPath string `json:"secret_path" yaml:"secret_path" toml:"secret_path"` // Path of the infrastructure credentials
	TLSEnabled bool   `json:"tls_enabled" yaml:"tls_enabled" toml:"tls_enabled"`
	CACert     string `json:"ca_cert" yaml:"ca_cert" toml:"ca_cert"`
}

// SchedulerConfig holds the cron specs of the retention jobs
type SchedulerConfig struct {
	Enabled           bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	PruneSpec         string `json:"prune_spec" yaml:"prune_spec" toml:"prune_spec"`
	EvictSpec         string `json:"evict_spec" yaml:"evict_spec" toml:"evict_spec"`
	StaleAfterMinutes int    `json:"stale_after_minutes" yaml:"stale_after_minutes" toml:"stale_after_minutes"`
}

// StaleAfter returns the age at which a symbol's state is evicted
func (c SchedulerConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMinutes) * time.Minute
}

type ScannerConfig struct {
	WorkerCount  int `json:"worker_count" yaml:"worker_count" toml:"worker_count"`
	MaxBatchSize int `json:"max_batch_size" yaml:"max_batch_size" toml:"max_batch_size"`
}

// Default returns a config with every section populated
func Default() *Config {
	return &Config{
		ServerConfig: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			AllowedOrigins:  "*",
			ReadTimeout:     30,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
		},
		LoggingConfig: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
		EngineConfig: EngineConfig{
			Params:             analysis.DefaultParams(),
			OpportunityLogSize: 50,
		},
		RedisConfig: RedisConfig{
			Address:    "localhost:6379",
			PoolSize:   10,
			TTLSeconds: 3600,
		},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "smc",
			Database: "smc",
			SSLMode:  "disable",
			MaxConns: 10,
		},
		ArchiveConfig: ArchiveConfig{
			Driver:         "sqlite",
			SQLitePath:     "smc-archive.db",
			RetentionHours: 24 * 30,
		},
		VaultConfig: VaultConfig{
			Address:    "http://localhost:8200",
			MountPath:  "secret",
			SecretPath: "smc-engine/infrastructure",
		},
		SchedulerConfig: SchedulerConfig{
			Enabled:           true,
			PruneSpec:         "@every 1h",
			EvictSpec:         "@every 5m",
			StaleAfterMinutes: 240,
		},
		ScannerConfig: ScannerConfig{
			WorkerCount:  8,
			MaxBatchSize: 100,
		},
	}
}

// Load reads the config file named by SMC_CONFIG_FILE (default config.json),
// then applies .env and environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	filename := getEnvOrDefault("SMC_CONFIG_FILE", DefaultConfigFile)
	cfg, err := loadFromFile(filename)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg = Default()
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)
	cfg.EngineConfig.Params = cfg.EngineConfig.Params.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail at startup
func (c *Config) Validate() error {
	switch c.ArchiveConfig.Driver {
	case "postgres", "sqlite", "none":
	default:
		return fmt.Errorf("invalid archive driver %q", c.ArchiveConfig.Driver)
	}
	if c.ServerConfig.Port <= 0 || c.ServerConfig.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.ServerConfig.Port)
	}
	if c.ScannerConfig.WorkerCount <= 0 {
		return fmt.Errorf("scanner worker_count must be positive")
	}
	if c.ArchiveConfig.Driver == "postgres" && !c.DatabaseConfig.Enabled {
		return fmt.Errorf("archive driver postgres requires database.enabled")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", cfg.ServerConfig.ReadTimeout)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", cfg.ServerConfig.WriteTimeout)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", cfg.ServerConfig.ShutdownTimeout)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.LoggingConfig.JSONFormat)
	cfg.LoggingConfig.IncludeFile = getEnvBoolOrDefault("LOG_INCLUDE_FILE", cfg.LoggingConfig.IncludeFile)

	// Engine config
	p := &cfg.EngineConfig.Params
	p.StructureWindow = getEnvIntOrDefault("SMC_STRUCTURE_WINDOW", p.StructureWindow)
	p.SwingLookback = getEnvIntOrDefault("SMC_SWING_LOOKBACK", p.SwingLookback)
	p.FVGMinStrength = getEnvFloatOrDefault("SMC_FVG_MIN_STRENGTH", p.FVGMinStrength)
	p.LiquidityTolerance = getEnvFloatOrDefault("SMC_LIQUIDITY_TOLERANCE", p.LiquidityTolerance)
	p.MaxOpportunities = getEnvIntOrDefault("SMC_MAX_OPPORTUNITIES", p.MaxOpportunities)
	p.ExtendedOpportunities = getEnvBoolOrDefault("SMC_EXTENDED_OPPORTUNITIES", p.ExtendedOpportunities)
	cfg.EngineConfig.OpportunityLogSize = getEnvIntOrDefault("SMC_OPPORTUNITY_LOG_SIZE", cfg.EngineConfig.OpportunityLogSize)

	// Redis config
	cfg.RedisConfig.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", cfg.RedisConfig.PoolSize)
	cfg.RedisConfig.TTLSeconds = getEnvIntOrDefault("REDIS_TTL_SECONDS", cfg.RedisConfig.TTLSeconds)

	// Database config
	cfg.DatabaseConfig.Enabled = getEnvBoolOrDefault("DB_ENABLED", cfg.DatabaseConfig.Enabled)
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	// Archive config
	cfg.ArchiveConfig.Driver = strings.ToLower(getEnvOrDefault("ARCHIVE_DRIVER", cfg.ArchiveConfig.Driver))
	cfg.ArchiveConfig.SQLitePath = getEnvOrDefault("ARCHIVE_SQLITE_PATH", cfg.ArchiveConfig.SQLitePath)
	cfg.ArchiveConfig.RetentionHours = getEnvIntOrDefault("ARCHIVE_RETENTION_HOURS", cfg.ArchiveConfig.RetentionHours)

	// Vault config
	cfg.VaultConfig.Enabled = getEnvBoolOrDefault("VAULT_ENABLED", cfg.VaultConfig.Enabled)
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.VaultConfig.MountPath)
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.VaultConfig.SecretPath)
	cfg.VaultConfig.TLSEnabled = getEnvBoolOrDefault("VAULT_TLS_ENABLED", cfg.VaultConfig.TLSEnabled)

	// Scheduler config
	cfg.SchedulerConfig.Enabled = getEnvBoolOrDefault("SCHEDULER_ENABLED", cfg.SchedulerConfig.Enabled)
	cfg.SchedulerConfig.PruneSpec = getEnvOrDefault("SCHEDULER_PRUNE_SPEC", cfg.SchedulerConfig.PruneSpec)
	cfg.SchedulerConfig.EvictSpec = getEnvOrDefault("SCHEDULER_EVICT_SPEC", cfg.SchedulerConfig.EvictSpec)
	cfg.SchedulerConfig.StaleAfterMinutes = getEnvIntOrDefault("SCHEDULER_STALE_AFTER_MINUTES", cfg.SchedulerConfig.StaleAfterMinutes)

	// Scanner config
	cfg.ScannerConfig.WorkerCount = getEnvIntOrDefault("SCANNER_WORKER_COUNT", cfg.ScannerConfig.WorkerCount)
	cfg.ScannerConfig.MaxBatchSize = getEnvIntOrDefault("SCANNER_MAX_BATCH_SIZE", cfg.ScannerConfig.MaxBatchSize)
}

// loadFromFile decodes filename over Default(), picking the format from the
// extension: .yaml/.yml, .toml, anything else is JSON.
func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := Default()
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(file, config)
	case ".toml":
		_, err = toml.Decode(string(file), config)
	default:
		err = json.Unmarshal(file, config)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// GenerateSampleConfig writes the default configuration to filename in the
// format implied by its extension
func GenerateSampleConfig(filename string) error {
	config := Default()

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	case ".toml":
		var sb strings.Builder
		err = toml.NewEncoder(&sb).Encode(config)
		data = []byte(sb.String())
	default:
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("error encoding sample config: %w", err)
	}

	return os.WriteFile(filename, data, 0644)
}
