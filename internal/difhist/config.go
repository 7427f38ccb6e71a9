package difhist

import "time"

// Default tuning constants for the diff history engine. Mirrors the
// centralized-defaults convention of internal/config/defaults.go: a single
// source of truth that Viper overrides layer on top of.
const (
	// DefaultLockReleaseDelay is how long a path stays locked after the
	// engine's own write completes, to absorb delayed or duplicate
	// filesystem watcher events.
	DefaultLockReleaseDelay = 500 * time.Millisecond

	// ViperKeyLockReleaseDelay is the Viper config key, expected in a
	// project's .taskwing.yaml as diffhistory.lock_release_delay_ms.
	ViperKeyLockReleaseDelay = "diffhistory.lock_release_delay_ms"
)

// Config tunes the engine's timing behavior. The zero value is not valid;
// use NewDefaultConfig or LoadConfig.
type Config struct {
	LockReleaseDelay time.Duration
}

// NewDefaultConfig returns a Config with the engine's built-in defaults.
func NewDefaultConfig() Config {
	return Config{
		LockReleaseDelay: DefaultLockReleaseDelay,
	}
}

// ViperSource is the subset of viper.Viper this package depends on, kept
// narrow so callers can pass the global viper instance or a scoped one
// without this package importing viper's full surface beyond what it uses.
type ViperSource interface {
	IsSet(key string) bool
	GetInt(key string) int
}

// LoadConfig resolves a Config from v, falling back to defaults for any
// key that isn't set. A project opts into a non-default lock-release delay
// by setting diffhistory.lock_release_delay_ms in .taskwing.yaml.
func LoadConfig(v ViperSource) Config {
	cfg := NewDefaultConfig()
	if v == nil {
		return cfg
	}
	if v.IsSet(ViperKeyLockReleaseDelay) {
		cfg.LockReleaseDelay = time.Duration(v.GetInt(ViperKeyLockReleaseDelay)) * time.Millisecond
	}
	return cfg
}
