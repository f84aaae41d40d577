package charter

import "time"

// Config holds configuration for the charter engine.
type Config struct {
	// DefaultListLimit applies when a list request sets no limit.
	// Defaults to 50.
	DefaultListLimit int `json:"default_list_limit,omitempty" mapstructure:"default_list_limit" yaml:"default_list_limit"`

	// MaxListLimit caps any list request. Defaults to 500.
	MaxListLimit int `json:"max_list_limit,omitempty" mapstructure:"max_list_limit" yaml:"max_list_limit"`

	// DisableAudit turns off the audit trail.
	DisableAudit bool `json:"disable_audit,omitempty" mapstructure:"disable_audit" yaml:"disable_audit"`

	// AuditRetention, when positive, is how long audit entries are kept.
	// Engine.PurgeAudit removes anything older.
	AuditRetention time.Duration `json:"audit_retention,omitempty" mapstructure:"audit_retention" yaml:"audit_retention"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultListLimit: 50,
		MaxListLimit:     500,
	}
}

func (c Config) listLimit(n int) int {
	def, ceiling := c.DefaultListLimit, c.MaxListLimit
	if def <= 0 {
		def = 50
	}
	if ceiling <= 0 {
		ceiling = 500
	}
	if n <= 0 {
		return def
	}
	if n > ceiling {
		return ceiling
	}
	return n
}
