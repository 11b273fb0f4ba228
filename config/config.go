// Package config loads the ambient knobs the Batcher constructor needs,
// the way the corpus's daemon entry points bind spf13/viper to
// spf13/pflag: defaults first, then an optional config file, then
// TABLEBATCH_-prefixed environment variables, then flags, each layer
// overriding the last. The Batcher package itself never imports viper;
// it only ever sees the plain Config struct this package produces.
package config

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "TABLEBATCH"

// Config carries every knob spec.md names as caller-configurable.
type Config struct {
	// MaxBufferSize is the default max_buffer_size (bytes) new Batchers
	// track buffer_bytes_used against. Default 7 MiB.
	MaxBufferSize int64
	// DefaultTimeout is used to compute a flush deadline when the caller
	// never calls SetTimeout. Default 60s.
	DefaultTimeout time.Duration
	// AllowReadsFromFollowers controls whether cache-style reads may be
	// grouped as ConsistentPrefixRead instead of LeaderRead.
	AllowReadsFromFollowers bool
	// CombineBatcherErrors switches the ErrorAggregator to combine-mode.
	CombineBatcherErrors bool
}

// Defaults returns the spec-mandated defaults.
func Defaults() Config {
	return Config{
		MaxBufferSize:           7 << 20, // 7 MiB
		DefaultTimeout:          60 * time.Second,
		AllowReadsFromFollowers: false,
		CombineBatcherErrors:    false,
	}
}

// BindFlags registers pflag flags for every knob onto fs, for CLI
// callers (see cmd/tablebatchctl) that want command-line overrides.
func BindFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.Int64("max-buffer-size", d.MaxBufferSize, "maximum buffered bytes per batch before caller backpressure kicks in")
	fs.Duration("default-timeout", d.DefaultTimeout, "flush deadline used when SetTimeout was never called")
	fs.Bool("allow-reads-from-followers", d.AllowReadsFromFollowers, "allow cache-style reads to be served by any replica")
	fs.Bool("combine-batcher-errors", d.CombineBatcherErrors, "collapse multi-kind batch errors into a single Combined status")
}

// Load builds a Config from defaults, an optional config file (if
// configPath is non-empty), TABLEBATCH_-prefixed environment variables,
// and (if fs is non-nil) any pflags bound via BindFlags that were
// actually set on the command line.
func Load(configPath string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	d := Defaults()

	v.SetDefault("max-buffer-size", d.MaxBufferSize)
	v.SetDefault("default-timeout", d.DefaultTimeout)
	v.SetDefault("allow-reads-from-followers", d.AllowReadsFromFollowers)
	v.SetDefault("combine-batcher-errors", d.CombineBatcherErrors)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Config{}, err
		}
	}

	return Config{
		MaxBufferSize:           v.GetInt64("max-buffer-size"),
		DefaultTimeout:          v.GetDuration("default-timeout"),
		AllowReadsFromFollowers: v.GetBool("allow-reads-from-followers"),
		CombineBatcherErrors:    v.GetBool("combine-batcher-errors"),
	}, nil
}
