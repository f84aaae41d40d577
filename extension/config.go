package extension

import "time"

// Config holds the Charter extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.charter" or "charter" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisablePages prevents registration of the public HTML pages.
	DisablePages bool `json:"disable_pages" mapstructure:"disable_pages" yaml:"disable_pages"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for charter routes (default: none).
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// GroveDriver names the driver of the *grove.DB registered in the DI
	// container: "postgres", "sqlite" or "mongo". When set and no store was
	// given explicitly, the extension builds the matching store over that DB.
	GroveDriver string `json:"grove_driver" mapstructure:"grove_driver" yaml:"grove_driver"`

	// TokenSecret is the HS256 key used to verify bearer tokens. Management
	// routes reject every request when it is empty.
	TokenSecret string `json:"-" mapstructure:"token_secret" yaml:"token_secret"`

	// CacheTTL bounds how long a current policy is served from the in-memory
	// cache. Zero uses the cache default.
	CacheTTL time.Duration `json:"cache_ttl" mapstructure:"cache_ttl" yaml:"cache_ttl"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL: 5 * time.Minute,
	}
}
