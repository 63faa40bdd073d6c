package config

import (
	"time"

	"go.trai.ch/sompack/internal/core/domain"
)

// Config is the single immutable configuration object assembled at startup.
// It is validated once and never mutated after Load returns.
type Config struct {
	// BaseDir is the absolute resolution base directory.
	BaseDir string `mapstructure:"baseDir"`

	// Extensions lists source extensions probed during resolution, in order.
	Extensions []string `mapstructure:"extensions"`

	// CompiledExtension is the target-language extension that maps back to a
	// sibling source file during resolution.
	CompiledExtension string `mapstructure:"compiledExtension"`

	// CircularPolicy selects error, warn or ignore.
	CircularPolicy domain.CircularPolicy `mapstructure:"circularPolicy"`

	// OperationTimeout is the deadline applied to each load and bundle call.
	OperationTimeout time.Duration `mapstructure:"operationTimeout"`

	// Parallelism bounds the number of module loads in flight.
	Parallelism int `mapstructure:"parallelism"`

	// Externals is the explicit external-package allow-list.
	Externals []string `mapstructure:"externals"`

	Limits   LimitsConfig  `mapstructure:"limits"`
	Breaker  BreakerConfig `mapstructure:"breaker"`
	Bundle   BundleConfig  `mapstructure:"bundle"`
	Server   ServerConfig  `mapstructure:"server"`
	Shutdown time.Duration `mapstructure:"shutdownTimeout"`
}

// LimitsConfig holds the resource ceilings.
type LimitsConfig struct {
	MaxCachedModules int   `mapstructure:"maxCachedModules"`
	MaxMemoryBytes   int64 `mapstructure:"maxMemoryBytes"`
	MaxOpenHandles   int64 `mapstructure:"maxOpenHandles"`
}

// BreakerConfig holds the circuit breaker tuning knobs.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens a breaker.
	FailureThreshold int `mapstructure:"failureThreshold"`

	// Cooldown is how long an open breaker rejects before half-opening.
	Cooldown time.Duration `mapstructure:"cooldown"`

	// HalfOpenProbes is how many probe requests a half-open breaker admits.
	HalfOpenProbes int `mapstructure:"halfOpenProbes"`
}

// BundleConfig holds bundle output defaults.
type BundleConfig struct {
	Format        string `mapstructure:"format"`
	Output        string `mapstructure:"output"`
	Minify        bool   `mapstructure:"minify"`
	SourceMaps    bool   `mapstructure:"sourceMaps"`
	InlineSources bool   `mapstructure:"inlineSources"`
}

// ServerConfig holds the optional management endpoint settings.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}
