package config

import (
	"fmt"
	"os"

	"trading-simulator/src/models"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. TRADING_SIM_PORT.
const EnvPrefix = "TRADING_SIM_"

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from a YAML file, then applies
// .env / environment overrides and defaults.
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	// 3. Environment overrides (.env is optional)
	_ = godotenv.Load()
	if err := env.ParseWithOptions(&modelConfig, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.ApplyDefaults()

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// ApplyDefaults fills zero values with the simulator's standard cadences.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.GrpcPort == 0 {
		c.GrpcPort = 50051
	}
	if c.Storage.DBType == "" {
		c.Storage.DBType = "none"
	}
	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = 10
	}

	ds := &c.DataSource
	if ds.Name == "" {
		ds.Name = "coingecko"
	}
	if ds.BaseURL == "" {
		ds.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if ds.VsCurrency == "" {
		ds.VsCurrency = "usd"
	}
	if ds.ConcurrentRequests == 0 {
		ds.ConcurrentRequests = 2
	}
	if len(ds.Ranges) == 0 {
		ds.Ranges = []models.MRangeConfig{
			{Label: "1h", Days: 1, WindowMinutes: 60},
			{Label: "24h", Days: 1},
			{Label: "7d", Days: 7},
			{Label: "30d", Days: 30},
		}
	}

	t := &c.Trading
	if len(t.Symbols) == 0 {
		t.Symbols = models.DefaultSymbols()
	}
	if t.PrimaryRange == "" {
		t.PrimaryRange = ds.Ranges[0].Label
	}
	if t.FakePointIntervalMs == 0 {
		t.FakePointIntervalMs = 113598
	}
	if t.ApplyIntervalMs == 0 {
		t.ApplyIntervalMs = 4000
	}
	if t.OrderIntervalMs == 0 {
		t.OrderIntervalMs = 900
	}
	if t.BroadcastIntervalMs == 0 {
		t.BroadcastIntervalMs = 4000
	}
	if t.DiscoveryMinDelayMs == 0 {
		t.DiscoveryMinDelayMs = 200
	}
	if t.DiscoveryJitterMs == 0 {
		t.DiscoveryJitterMs = 2000
	}
	if t.HistoryRefreshMinutes == 0 {
		t.HistoryRefreshMinutes = 10
	}
	if t.MaxOrders == 0 {
		t.MaxOrders = 100
	}
	if t.LobbyTTLSeconds == 0 {
		t.LobbyTTLSeconds = 300
	}

	if c.Redis.ChannelPrefix == "" {
		c.Redis.ChannelPrefix = "trading"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = c.Name
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort == c.Port {
		return fmt.Errorf("grpc port must differ from http port %d", c.Port)
	}

	// Storage
	switch c.Storage.DBType {
	case "none":
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("connection string cannot be empty for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}

	// Network
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	// DataSource
	if c.DataSource.ConcurrentRequests <= 0 {
		return fmt.Errorf("concurrent requests must be greater than 0")
	}
	labels := make(map[string]struct{}, len(c.DataSource.Ranges))
	for i, r := range c.DataSource.Ranges {
		if r.Label == "" {
			return fmt.Errorf("range %d must have a label", i)
		}
		if r.Days <= 0 {
			return fmt.Errorf("range '%s' must request at least one day", r.Label)
		}
		if _, dup := labels[r.Label]; dup {
			return fmt.Errorf("range '%s' is declared twice", r.Label)
		}
		labels[r.Label] = struct{}{}
	}

	// Trading
	if _, ok := labels[c.Trading.PrimaryRange]; !ok {
		return fmt.Errorf("primary range '%s' is not a configured range", c.Trading.PrimaryRange)
	}
	seen := make(map[string]struct{}, len(c.Trading.Symbols))
	for i, s := range c.Trading.Symbols {
		if s.Symbol == "" || s.CoinID == "" {
			return fmt.Errorf("symbol %d must have both symbol and coin_id", i)
		}
		if _, dup := seen[s.Symbol]; dup {
			return fmt.Errorf("symbol '%s' is declared twice", s.Symbol)
		}
		seen[s.Symbol] = struct{}{}
	}
	if c.Trading.FakePointIntervalMs <= 0 {
		return fmt.Errorf("fake point interval must be greater than 0")
	}
	if c.Trading.ApplyIntervalMs <= 0 || c.Trading.OrderIntervalMs <= 0 || c.Trading.BroadcastIntervalMs <= 0 {
		return fmt.Errorf("trading intervals must be greater than 0")
	}
	if c.Trading.DiscoveryMinDelayMs <= 0 || c.Trading.DiscoveryJitterMs < 0 {
		return fmt.Errorf("invalid discovery delay %d+%d ms", c.Trading.DiscoveryMinDelayMs, c.Trading.DiscoveryJitterMs)
	}
	if c.Trading.MaxOrders <= 0 {
		return fmt.Errorf("max orders must be greater than 0")
	}

	// Optional integrations
	if c.Redis.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("redis address cannot be empty when redis is enabled")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka brokers and topic are required when kafka is enabled")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
