package config

type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	Port        int    `mapstructure:"port" yaml:"port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Valkey ValkeyConfig `mapstructure:"valkey" yaml:"valkey"`
	Auth   AuthConfig   `mapstructure:"auth" yaml:"auth"`
	Authz  AuthzConfig  `mapstructure:"authz" yaml:"authz"`
}

// ValkeyConfig handles the Valkey/Redis permission store connection
type ValkeyConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Password string `mapstructure:"password" yaml:"password"`
	// TTL is the default TTL in seconds for expiring keys. Permission facts
	// and groups are written without expiry regardless of this value.
	TTL int `mapstructure:"ttl" yaml:"ttl"`
}

// AuthConfig handles bearer-token authentication at the HTTP boundary
type AuthConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	JWTSecret     string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer     string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	RootUserEmail string `mapstructure:"root_user_email" yaml:"root_user_email"`
}

// AuthzConfig tunes the authorization core
type AuthzConfig struct {
	// GroupCacheTTL is how long (seconds) resolved user group sets may be
	// served from cache before re-reading the group store.
	GroupCacheTTL int `mapstructure:"group_cache_ttl" yaml:"group_cache_ttl"`
	// PurgePageSize bounds each page of the paginated permission purge.
	PurgePageSize int `mapstructure:"purge_page_size" yaml:"purge_page_size"`
}
