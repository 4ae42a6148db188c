package models

// MConfig Structure
type MConfig struct {
	Name       string            `yaml:"name" env:"NAME"`
	Host       string            `yaml:"host" env:"HOST"`
	Port       int               `yaml:"port" env:"PORT"`
	LogLevel   string            `yaml:"log_level" env:"LOG_LEVEL"`
	GrpcPort   int               `yaml:"grpc_port" env:"GRPC_PORT"`
	Storage    MStorageConfig    `yaml:"storage" envPrefix:"STORAGE_"`
	Network    MNetworkConfig    `yaml:"network" envPrefix:"NETWORK_"`
	DataSource MDataSourceConfig `yaml:"data_source" envPrefix:"DATA_SOURCE_"`
	Trading    MTradingConfig    `yaml:"trading" envPrefix:"TRADING_"`
	Redis      MRedisConfig      `yaml:"redis" envPrefix:"REDIS_"`
	Kafka      MKafkaConfig      `yaml:"kafka" envPrefix:"KAFKA_"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type" env:"DB_TYPE"` // sqlite, postgres or none
	DBPath             string `yaml:"db_path" env:"DB_PATH"`
	DBConnectionString string `yaml:"db_connection_string" env:"DB_CONNECTION_STRING"`
}

type MNetworkConfig struct {
	Enabled        bool     `yaml:"enabled" env:"ENABLED"`
	Proxies        []string `yaml:"proxies" env:"PROXIES" envSeparator:","`
	RequestTimeout int      `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries     int      `yaml:"retries" env:"RETRIES"`
	UserAgent      string   `yaml:"user_agent" env:"USER_AGENT"`
}

type MDataSourceConfig struct {
	Name               string         `yaml:"name" env:"NAME"`
	BaseURL            string         `yaml:"base_url" env:"BASE_URL"`
	APIKey             string         `yaml:"api_key" env:"API_KEY"` // Optional
	VsCurrency         string         `yaml:"vs_currency" env:"VS_CURRENCY"`
	ConcurrentRequests int            `yaml:"concurrent_requests" env:"CONCURRENT_REQUESTS"`
	Ranges             []MRangeConfig `yaml:"ranges"`
}

// MRangeConfig maps a chart range label ("1h", "7d") to the provider query.
type MRangeConfig struct {
	Label         string `yaml:"label"`
	Days          int    `yaml:"days"`
	WindowMinutes int    `yaml:"window_minutes"` // 0 keeps everything returned for Days
}

type MTradingConfig struct {
	Symbols               []MSymbol `yaml:"symbols"`
	PrimaryRange          string    `yaml:"primary_range" env:"PRIMARY_RANGE"`
	FakePointIntervalMs   int64     `yaml:"fake_point_interval_ms" env:"FAKE_POINT_INTERVAL_MS"`
	ApplyIntervalMs       int       `yaml:"apply_interval_ms" env:"APPLY_INTERVAL_MS"`
	OrderIntervalMs       int       `yaml:"order_interval_ms" env:"ORDER_INTERVAL_MS"`
	BroadcastIntervalMs   int       `yaml:"broadcast_interval_ms" env:"BROADCAST_INTERVAL_MS"`
	DiscoveryMinDelayMs   int       `yaml:"discovery_min_delay_ms" env:"DISCOVERY_MIN_DELAY_MS"`
	DiscoveryJitterMs     int       `yaml:"discovery_jitter_ms" env:"DISCOVERY_JITTER_MS"`
	HistoryRefreshMinutes int       `yaml:"history_refresh_minutes" env:"HISTORY_REFRESH_MINUTES"`
	RefreshPopulated      bool      `yaml:"refresh_populated" env:"REFRESH_POPULATED"`
	MaxOrders             int       `yaml:"max_orders" env:"MAX_ORDERS"`
	LobbyTTLSeconds       int       `yaml:"lobby_ttl_seconds" env:"LOBBY_TTL_SECONDS"`
}

type MRedisConfig struct {
	Enabled       bool   `yaml:"enabled" env:"ENABLED"`
	Address       string `yaml:"address" env:"ADDRESS"`
	Username      string `yaml:"username" env:"USERNAME"`
	Password      string `yaml:"password" env:"PASSWORD"`
	DB            int    `yaml:"db" env:"DB"`
	ChannelPrefix string `yaml:"channel_prefix" env:"CHANNEL_PREFIX"`
}

type MKafkaConfig struct {
	Enabled bool     `yaml:"enabled" env:"ENABLED"`
	Brokers []string `yaml:"brokers" env:"BROKERS" envSeparator:","`
	Topic   string   `yaml:"topic" env:"TOPIC"`
	GroupID string   `yaml:"group_id" env:"GROUP_ID"`
}
