// Package config assembles the sompack configuration from file, environment
// and flag layers into one validated immutable object.
package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.trai.ch/sompack/internal/core/domain"
	"go.trai.ch/zerr"
)

// FormatModuleMap is the one fully supported bundle output format.
const FormatModuleMap = domain.FormatModuleMap

// DefaultFilename is the config file searched in the base directory.
const DefaultFilename = "sompack.yaml"

// Load assembles the configuration. Precedence, highest first: flags,
// SOMPACK_* environment variables, the config file, built-in defaults.
// Flags may be nil. The result is validated before it is returned.
func Load(path string, baseDir string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v, baseDir)

	v.SetEnvPrefix("SOMPACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to read config file"), "path", path)
		}
	} else {
		// The default config file is optional.
		v.SetConfigFile(filepath.Join(baseDir, DefaultFilename))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, zerr.Wrap(err, "failed to read config file")
			}
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, zerr.Wrap(err, "failed to decode configuration")
	}

	if !filepath.IsAbs(cfg.BaseDir) {
		cfg.BaseDir = filepath.Join(baseDir, cfg.BaseDir)
	}
	cfg.BaseDir = filepath.Clean(cfg.BaseDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, baseDir string) {
	v.SetDefault("baseDir", baseDir)
	v.SetDefault("extensions", []string{".som"})
	v.SetDefault("compiledExtension", ".js")
	v.SetDefault("circularPolicy", string(domain.PolicyError))
	v.SetDefault("operationTimeout", 30*time.Second)
	v.SetDefault("parallelism", 8)
	v.SetDefault("externals", []string{})
	v.SetDefault("limits.maxCachedModules", 1024)
	v.SetDefault("limits.maxMemoryBytes", int64(256<<20))
	v.SetDefault("limits.maxOpenHandles", int64(256))
	v.SetDefault("breaker.failureThreshold", 5)
	v.SetDefault("breaker.cooldown", 10*time.Second)
	v.SetDefault("breaker.halfOpenProbes", 1)
	v.SetDefault("bundle.format", FormatModuleMap)
	v.SetDefault("bundle.output", "bundle.js")
	v.SetDefault("bundle.minify", false)
	v.SetDefault("bundle.sourceMaps", false)
	v.SetDefault("bundle.inlineSources", false)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", "127.0.0.1:8642")
	v.SetDefault("shutdownTimeout", 15*time.Second)
}

// bindFlags maps CLI flags onto config keys so explicit flags win over the
// file and environment layers.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"circularPolicy":    "circular-policy",
		"operationTimeout":  "timeout",
		"parallelism":       "parallelism",
		"bundle.format":     "format",
		"bundle.output":     "output",
		"bundle.minify":     "minify",
		"bundle.sourceMaps": "source-map",
		"externals":         "externals",
	}
	for key, flag := range bindings {
		f := flags.Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to bind flag"), "flag", flag)
		}
	}
	return nil
}

// Validate checks the assembled configuration and fails fast on the first
// inconsistency so no component starts with a bad value.
func (c *Config) Validate() error {
	if c.BaseDir == "" {
		return zerr.New("baseDir must not be empty")
	}
	if len(c.Extensions) == 0 {
		return zerr.New("at least one source extension is required")
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return zerr.With(zerr.New("extension must start with a dot"), "extension", ext)
		}
	}
	if !c.CircularPolicy.Valid() {
		return zerr.With(zerr.New("unknown circular policy"), "policy", string(c.CircularPolicy))
	}
	if c.OperationTimeout <= 0 {
		return zerr.New("operationTimeout must be positive")
	}
	if c.Parallelism <= 0 {
		return zerr.New("parallelism must be positive")
	}
	if c.Limits.MaxCachedModules <= 0 {
		return zerr.New("limits.maxCachedModules must be positive")
	}
	if c.Limits.MaxMemoryBytes <= 0 {
		return zerr.New("limits.maxMemoryBytes must be positive")
	}
	if c.Limits.MaxOpenHandles <= 0 {
		return zerr.New("limits.maxOpenHandles must be positive")
	}
	if c.Breaker.FailureThreshold <= 0 {
		return zerr.New("breaker.failureThreshold must be positive")
	}
	if c.Breaker.Cooldown <= 0 {
		return zerr.New("breaker.cooldown must be positive")
	}
	return nil
}
