// Package config loads the settings of the unxf command from a YAML file and
// UNXF_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/abczzz13/unxf"
)

var (
	ErrFailedToParseConfig = errors.New("failed to parse config from env")
)

// Bad chain policies accepted in OnBadChain.
const (
	PolicyReject = "reject"
	PolicyPass   = "pass"
)

// Config holds the filter and server settings of the unxf command.
type Config struct {
	// Trust lists trusted proxies as CIDR prefixes, bare addresses or group
	// names (private_ipv4, ipv4_loopback, ipv6_loopback, RFC_1918, LOCALHOST).
	// Empty means the default groups.
	Trust []string `yaml:"trust" env:"UNXF_TRUST" envSeparator:","`

	// AcceptForwarded enables the RFC 7239 Forwarded header.
	AcceptForwarded bool `yaml:"accept_forwarded" env:"UNXF_ACCEPT_FORWARDED"`

	// MaxChainLength caps the number of hops in one header.
	MaxChainLength int `yaml:"max_chain_length" env:"UNXF_MAX_CHAIN_LENGTH"`

	// OnBadChain is reject or pass.
	OnBadChain string `yaml:"on_bad_chain" env:"UNXF_ON_BAD_CHAIN"`

	// LogLevel sets the logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" env:"UNXF_LOG_LEVEL"`

	// LogFile is a path for rotated log output; empty or "console" logs to
	// stderr.
	LogFile string `yaml:"log_file" env:"UNXF_LOG_FILE"`

	ListenAddress   string        `yaml:"listen_address" env:"UNXF_LISTEN_ADDRESS"`
	MetricsAddress  string        `yaml:"metrics_address" env:"UNXF_METRICS_ADDRESS"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"UNXF_SHUTDOWN_TIMEOUT"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		MaxChainLength:  unxf.DefaultMaxChainLength,
		OnBadChain:      PolicyReject,
		LogLevel:        "info",
		ListenAddress:   ":8080",
		MetricsAddress:  ":9090",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load returns the defaults, overlaid with the YAML file at path when path is
// not empty, overlaid with any UNXF_* environment variables that are set.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFailedToParseConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	// An empty file decodes to io.EOF and keeps the defaults.
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs *multierror.Error

	if _, err := unxf.ParseTrustEntries(c.Trust...); err != nil {
		errs = multierror.Append(errs, err)
	}
	if c.MaxChainLength <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("max_chain_length must be > 0, got %d", c.MaxChainLength))
	}
	switch c.OnBadChain {
	case PolicyReject, PolicyPass:
	default:
		errs = multierror.Append(errs, fmt.Errorf("on_bad_chain must be %s or %s, got %q", PolicyReject, PolicyPass, c.OnBadChain))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.ShutdownTimeout < 0 {
		errs = multierror.Append(errs, fmt.Errorf("shutdown_timeout must not be negative, got %s", c.ShutdownTimeout))
	}

	return errs.ErrorOrNil()
}

// FilterOptions translates the filter settings into unxf options.
func (c Config) FilterOptions() []unxf.Option {
	opts := []unxf.Option{
		unxf.MaxChainLength(c.MaxChainLength),
		unxf.AcceptForwarded(c.AcceptForwarded),
	}

	if len(c.Trust) > 0 {
		opts = append(opts, unxf.TrustCIDRs(c.Trust...))
	}

	if c.OnBadChain == PolicyPass {
		opts = append(opts, unxf.WithBadChainHandler(unxf.PassBadChains()))
	} else {
		opts = append(opts, unxf.WithBadChainHandler(unxf.RejectBadChains()))
	}

	return opts
}
