// Package config loads quantum-vault settings from defaults, an optional YAML
// file, QVAULT_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/pzverkov/quantum-vault/internal/constants"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
	"github.com/pzverkov/quantum-vault/pkg/metrics"
	"github.com/pzverkov/quantum-vault/pkg/rsakex"
)

// EnvPrefix prefixes every environment variable, e.g. QVAULT_RSA_BITS.
const EnvPrefix = "QVAULT"

// GlobalConfigDirectory is searched after the working directory.
const GlobalConfigDirectory = "/etc/quantum-vault/"

// Config is the full runtime configuration.
type Config struct {
	ListenAddr  string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	CipherSuite string        `mapstructure:"cipher_suite" yaml:"cipher_suite"`
	Tracing     bool          `mapstructure:"tracing" yaml:"tracing"`
	Log         LogConfig     `mapstructure:"log" yaml:"log"`
	RSA         RSAConfig     `mapstructure:"rsa" yaml:"rsa"`
	Session     SessionConfig `mapstructure:"session" yaml:"session"`
	Limits      LimitsConfig  `mapstructure:"limits" yaml:"limits"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// RSAConfig bounds RSA key generation.
type RSAConfig struct {
	Bits          int           `mapstructure:"bits" yaml:"bits"`
	MaxIterations int           `mapstructure:"max_iterations" yaml:"max_iterations"`
	KeyGenTimeout time.Duration `mapstructure:"keygen_timeout" yaml:"keygen_timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts" yaml:"retry_attempts"`
}

// SessionConfig controls the in-memory session store.
type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl" yaml:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
	MaxSessions     int           `mapstructure:"max_sessions" yaml:"max_sessions"`
}

// LimitsConfig throttles the key generating endpoints. Zero disables a
// limit.
type LimitsConfig struct {
	KeyGenRate   float64 `mapstructure:"keygen_rate" yaml:"keygen_rate"`
	KeyGenBurst  int     `mapstructure:"keygen_burst" yaml:"keygen_burst"`
	MaxPerClient int     `mapstructure:"max_per_client" yaml:"max_per_client"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:  "127.0.0.1:8080",
		CipherSuite: constants.CipherSuiteAES256GCM.String(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		RSA: RSAConfig{
			Bits:          constants.RSADefaultBits,
			MaxIterations: constants.RSADefaultMaxIterations,
			KeyGenTimeout: 30 * time.Second,
			RetryAttempts: 3,
		},
		Session: SessionConfig{
			TTL:             30 * time.Minute,
			CleanupInterval: time.Minute,
			MaxSessions:     1024,
		},
		Limits: LimitsConfig{
			KeyGenRate:   20,
			KeyGenBurst:  40,
			MaxPerClient: 4,
		},
	}
}

// Flag names understood by Load.
const (
	FlagConfig      = "config"
	FlagListen      = "listen"
	FlagLogLevel    = "log-level"
	FlagLogFormat   = "log-format"
	FlagCipherSuite = "cipher-suite"
	FlagRSABits     = "rsa-bits"
	FlagTracing     = "tracing"
)

var flagKeys = map[string]string{
	FlagListen:      "listen_addr",
	FlagLogLevel:    "log.level",
	FlagLogFormat:   "log.format",
	FlagCipherSuite: "cipher_suite",
	FlagRSABits:     "rsa.bits",
	FlagTracing:     "tracing",
}

// AddFlags registers the configuration flags on fs.
func AddFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(FlagConfig, "", "config file (default ./quantum-vault.yaml or "+GlobalConfigDirectory+"quantum-vault.yaml)")
	fs.String(FlagListen, d.ListenAddr, "address the API listens on")
	fs.String(FlagLogLevel, d.Log.Level, "log level: debug, info, warn, error, silent")
	fs.String(FlagLogFormat, d.Log.Format, "log format: text or json")
	fs.String(FlagCipherSuite, d.CipherSuite, "message AEAD: AES-256-GCM or ChaCha20-Poly1305")
	fs.Int(FlagRSABits, d.RSA.Bits, "RSA modulus size in bits")
	fs.Bool(FlagTracing, d.Tracing, "record spans for key exchange operations")
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("cipher_suite", d.CipherSuite)
	v.SetDefault("tracing", d.Tracing)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("rsa.bits", d.RSA.Bits)
	v.SetDefault("rsa.max_iterations", d.RSA.MaxIterations)
	v.SetDefault("rsa.keygen_timeout", d.RSA.KeyGenTimeout)
	v.SetDefault("rsa.retry_attempts", d.RSA.RetryAttempts)
	v.SetDefault("session.ttl", d.Session.TTL)
	v.SetDefault("session.cleanup_interval", d.Session.CleanupInterval)
	v.SetDefault("session.max_sessions", d.Session.MaxSessions)
	v.SetDefault("limits.keygen_rate", d.Limits.KeyGenRate)
	v.SetDefault("limits.keygen_burst", d.Limits.KeyGenBurst)
	v.SetDefault("limits.max_per_client", d.Limits.MaxPerClient)
}

// Load builds the configuration. fs may be nil; when it carries a --config
// flag, that file must exist. Without one, quantum-vault.yaml is looked up in
// the working directory and GlobalConfigDirectory, and its absence is not an
// error.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var path string
	if fs != nil {
		if f := fs.Lookup(FlagConfig); f != nil {
			path = f.Value.String()
		}
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "failed to bind flag %q", name)
				}
			}
		}
	}
	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	} else {
		if wd, err := os.Getwd(); err == nil {
			v.AddConfigPath(wd)
		}
		v.AddConfigPath(GlobalConfigDirectory)
		v.SetConfigName("quantum-vault")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errors.Wrap(err, "failed to read config file")
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.ListenAddr == "" {
		result = multierror.Append(result, fmt.Errorf("listen_addr is required"))
	}

	if suite, ok := constants.ParseCipherSuite(c.CipherSuite); !ok {
		result = multierror.Append(result, fmt.Errorf("cipher_suite %q is not supported", c.CipherSuite))
	} else if crypto.FIPSMode() && !suite.IsFIPSApproved() {
		result = multierror.Append(result, fmt.Errorf("cipher_suite %q is not available in this build", c.CipherSuite))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "trace", "info", "warn", "warning", "error", "silent", "off", "none":
	default:
		result = multierror.Append(result, fmt.Errorf("log.level %q is unknown", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		result = multierror.Append(result, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	if c.RSA.Bits < constants.RSAMinBits || c.RSA.Bits%16 != 0 {
		result = multierror.Append(result, fmt.Errorf("rsa.bits must be a multiple of 16 and at least %d, got %d", constants.RSAMinBits, c.RSA.Bits))
	}
	if c.RSA.MaxIterations <= 0 {
		result = multierror.Append(result, fmt.Errorf("rsa.max_iterations must be positive"))
	}
	if c.RSA.KeyGenTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("rsa.keygen_timeout must be positive"))
	}
	if c.RSA.RetryAttempts < 0 {
		result = multierror.Append(result, fmt.Errorf("rsa.retry_attempts must not be negative"))
	}

	if c.Session.TTL <= 0 {
		result = multierror.Append(result, fmt.Errorf("session.ttl must be positive"))
	}
	if c.Session.CleanupInterval <= 0 {
		result = multierror.Append(result, fmt.Errorf("session.cleanup_interval must be positive"))
	}
	if c.Session.MaxSessions <= 0 {
		result = multierror.Append(result, fmt.Errorf("session.max_sessions must be positive"))
	}

	if c.Limits.KeyGenRate < 0 {
		result = multierror.Append(result, fmt.Errorf("limits.keygen_rate must not be negative"))
	}
	if c.Limits.KeyGenRate > 0 && c.Limits.KeyGenBurst < 1 {
		result = multierror.Append(result, fmt.Errorf("limits.keygen_burst must be at least 1 when keygen_rate is set"))
	}
	if c.Limits.MaxPerClient < 0 {
		result = multierror.Append(result, fmt.Errorf("limits.max_per_client must not be negative"))
	}

	return result.ErrorOrNil()
}

// Dump generates a YAML string of the Config object.
func (c *Config) Dump() (string, error) {
	d, err := yaml.Marshal(c)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate YAML dump of config")
	}
	return string(d), nil
}

// Suite returns the configured AEAD. Validate guarantees it parses.
func (c *Config) Suite() constants.CipherSuite {
	suite, _ := constants.ParseCipherSuite(c.CipherSuite)
	return suite
}

// RSAOptions returns the key generation options for rsakex.
func (c *Config) RSAOptions() rsakex.Options {
	return rsakex.Options{Bits: c.RSA.Bits, MaxIterations: c.RSA.MaxIterations}
}

// NewLogger builds the configured logger.
func (c *Config) NewLogger() *metrics.Logger {
	return metrics.NewLogger(
		metrics.WithLevel(metrics.ParseLevel(c.Log.Level)),
		metrics.WithFormat(metrics.ParseFormat(c.Log.Format)),
		metrics.WithName("quantum-vault"),
	)
}
