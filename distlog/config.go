package distlog

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when a writer cannot be built from its config.
var ErrInvalidConfig = errors.New("invalid redo log writer config")

// DeleteMode selects how Writer.Delete folds per-shard results.
type DeleteMode string

const (
	// DeleteModeLast reports the result of the last shard deleted.
	DeleteModeLast DeleteMode = "last"
	// DeleteModeAll reports success only if every shard was deleted.
	DeleteModeAll DeleteMode = "all"
)

// Config keys.
const (
	KeyShardCount      = "redis-num-streams"
	KeyStreamPrefix    = "redis-streams-redo-log-stream-prefix"
	KeyOrderingTimeout = "ordering-timeout"
	KeyDeleteMode      = "delete-mode"
)

// Config holds the writer settings. They are read once at construction and
// never reloaded.
type Config struct {
	// ShardCount is the number of parallel streams.
	ShardCount int
	// StreamPrefix is prepended to the shard index to name each stream.
	StreamPrefix string
	// OrderingTimeout bounds how long an end marker waits for its start
	// marker's append. Zero waits forever.
	OrderingTimeout time.Duration
	DeleteMode      DeleteMode
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		ShardCount:      4,
		StreamPrefix:    "redo-log-stream-",
		OrderingTimeout: 0,
		DeleteMode:      DeleteModeLast,
	}
}

// SetDefaults registers the defaults of DefaultConfig with v.
func SetDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault(KeyShardCount, def.ShardCount)
	v.SetDefault(KeyStreamPrefix, def.StreamPrefix)
	v.SetDefault(KeyOrderingTimeout, def.OrderingTimeout)
	v.SetDefault(KeyDeleteMode, string(def.DeleteMode))
}

// LoadConfig reads and validates the writer settings from v.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		ShardCount:      v.GetInt(KeyShardCount),
		StreamPrefix:    v.GetString(KeyStreamPrefix),
		OrderingTimeout: v.GetDuration(KeyOrderingTimeout),
		DeleteMode:      DeleteMode(v.GetString(KeyDeleteMode)),
	}
	if cfg.DeleteMode == "" {
		cfg.DeleteMode = DeleteModeLast
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate performs basic validation of the config
func (c Config) Validate() error {
	if c.ShardCount <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "%s must be positive, got %d", KeyShardCount, c.ShardCount)
	}
	if c.StreamPrefix == "" {
		return errors.Wrapf(ErrInvalidConfig, "%s must not be empty", KeyStreamPrefix)
	}
	if c.OrderingTimeout < 0 {
		return errors.Wrapf(ErrInvalidConfig, "%s must not be negative", KeyOrderingTimeout)
	}
	switch c.DeleteMode {
	case DeleteModeLast, DeleteModeAll:
	default:
		return errors.Wrapf(ErrInvalidConfig, "%s: unknown mode %q", KeyDeleteMode, c.DeleteMode)
	}
	return nil
}
