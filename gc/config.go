package gc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Clock abstracts time.Now so driver.go's pause-duration measurement
// can be replaced with a fake in tests, the standard Go constructor
// idiom for time-dependent code (the teacher's runtime itself reaches
// for a monotonic nanotime() read at the same spot — mgc.go's
// collection trigger — which this package cannot call into from
// outside runtime/; WithClock is the portable substitute).
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config holds the §6 tunables plus the ambient-stack injection points
// (logger, metrics registerer). Values are environment-independent per
// spec: LoadConfig below reads from viper only because viper is also a
// convenient typed-defaults container, not because these are meant to
// be read from the process environment at runtime.
type Config struct {
	// DefaultCollectInterval seeds each new Mutator's allocation
	// counter (§6: "≈5.6M × word on 64-bit, 3.2M × word on 32-bit").
	DefaultCollectInterval int64
	// MaxCollectInterval caps the interval the heuristics may grow to
	// (§6: "1.25G on 64-bit").
	MaxCollectInterval int64
	// MaxTotalMemory is the soft cap that forces full collections
	// (§6, §4.I.6).
	MaxTotalMemory uint64
	// PromotionAge is the number of full collections an object must
	// survive before promotion (§6: "promotion_age = 1").
	PromotionAge uint32

	Logger            *zap.Logger
	MetricsRegisterer prometheus.Registerer
	Clock             Clock
}

const wordSize = 8 // bytes; this collector targets 64-bit hosts only

// DefaultConfig returns the §6 tunables for a 64-bit host.
func DefaultConfig() Config {
	return Config{
		DefaultCollectInterval: 5_600_000 * wordSize,
		MaxCollectInterval:     1_250_000_000,
		MaxTotalMemory:         2 * 1 << 40, // 2 TB, reduced at init by LoadConfig
		PromotionAge:           1,
	}
}

// Option configures a Collector at construction time.
type Option func(*Config)

// WithLogger injects a *zap.Logger; the default is zap.NewProduction().
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMetricsRegisterer injects the prometheus.Registerer the
// collector registers its counters with; the default is
// prometheus.DefaultRegisterer.
func WithMetricsRegisterer(r prometheus.Registerer) Option {
	return func(c *Config) { c.MetricsRegisterer = r }
}

// WithClock injects the clock driver.go reads pause durations from;
// the default is the real wall clock.
func WithClock(clk Clock) Option {
	return func(c *Config) { c.Clock = clk }
}

// WithMaxTotalMemory overrides the soft memory cap.
func WithMaxTotalMemory(bytes uint64) Option {
	return func(c *Config) { c.MaxTotalMemory = bytes }
}

// WithDefaultCollectInterval overrides the starting interval.
func WithDefaultCollectInterval(n int64) Option {
	return func(c *Config) { c.DefaultCollectInterval = n }
}

// LoadConfig builds a Config from a *viper.Viper, falling back to
// DefaultConfig for any unset key. physicalMemory, when > 0, reduces
// MaxTotalMemory to 70% of it per §6 ("reduced to 70% of free physical
// at init") unless the viper source set max_total_memory explicitly.
func LoadConfig(v *viper.Viper, physicalMemory uint64) Config {
	cfg := DefaultConfig()
	// Checked before SetDefault below, since IsSet also reports keys
	// that only have a default.
	explicitMaxTotal := v.IsSet("max_total_memory")
	v.SetDefault("default_collect_interval", cfg.DefaultCollectInterval)
	v.SetDefault("max_collect_interval", cfg.MaxCollectInterval)
	v.SetDefault("max_total_memory", cfg.MaxTotalMemory)
	v.SetDefault("promotion_age", cfg.PromotionAge)

	cfg.DefaultCollectInterval = v.GetInt64("default_collect_interval")
	cfg.MaxCollectInterval = v.GetInt64("max_collect_interval")
	cfg.PromotionAge = uint32(v.GetInt("promotion_age"))

	if explicitMaxTotal {
		cfg.MaxTotalMemory = v.GetUint64("max_total_memory")
	} else if physicalMemory > 0 {
		cfg.MaxTotalMemory = physicalMemory * 70 / 100
	}
	return cfg
}
