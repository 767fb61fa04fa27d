package unxf

import (
	"fmt"
	"net/netip"
	"reflect"
)

const (
	// DefaultMaxChainLength is the maximum number of hops accepted in one
	// forwarding header. Longer chains are treated as broken. Typical proxy
	// chains rarely exceed 5-10 entries; 100 leaves room for multi-CDN setups
	// while bounding the work an attacker can force per request.
	DefaultMaxChainLength = 100
)

// Option configures a Filter.
//
// Construct options using package-provided option builder functions.
type Option func(*config) error

// config holds filter configuration state.
//
// It is mutated by Option functions during construction only.
type config struct {
	trustEntries []TrustEntry
	trustSet     bool

	networks *NetworkSet
	prefixes []netip.Prefix

	handler         BadChainHandler
	maxChainLength  int
	acceptForwarded bool

	logger  Logger
	metrics Metrics

	metricsFactory    func() (Metrics, error)
	useMetricsFactory bool
}

func defaultConfig() *config {
	return &config{
		handler:        RejectBadChains(),
		maxChainLength: DefaultMaxChainLength,
		logger:         noopLogger{},
		metrics:        noopMetrics{},
	}
}

func applyOptions(c *config, opts ...Option) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(c); err != nil {
			return err
		}
	}

	return nil
}

func defaultTrustEntries() []TrustEntry {
	entries := make([]TrustEntry, 0, len(DefaultTrustGroups))
	for _, g := range DefaultTrustGroups {
		entries = append(entries, GroupEntry(g))
	}
	return entries
}

func configFromOptions(opts ...Option) (*config, error) {
	cfg := defaultConfig()

	if err := applyOptions(cfg, opts...); err != nil {
		return nil, err
	}

	if !cfg.trustSet {
		cfg.trustEntries = defaultTrustEntries()
	}

	networks, prefixes, err := buildNetworkSet(cfg.trustEntries)
	if err != nil {
		return nil, err
	}
	cfg.networks = networks
	cfg.prefixes = prefixes

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.useMetricsFactory {
		metrics, err := cfg.metricsFactory()
		if err != nil {
			return nil, err
		}
		if isNilInterface(metrics) {
			return nil, fmt.Errorf("metrics factory returned nil metrics")
		}
		cfg.metrics = metrics
	}

	return cfg, nil
}

func (c *config) validate() error {
	if c.trustSet && len(c.trustEntries) == 0 {
		return fmt.Errorf("trust list is empty")
	}
	if c.maxChainLength <= 0 {
		return fmt.Errorf("maxChainLength must be > 0, got %d", c.maxChainLength)
	}
	if isNilInterface(c.handler) {
		return fmt.Errorf("bad chain handler cannot be nil")
	}
	if isNilInterface(c.logger) {
		return fmt.Errorf("logger cannot be nil")
	}
	if c.useMetricsFactory {
		if c.metricsFactory == nil {
			return fmt.Errorf("metrics factory cannot be nil")
		}
	} else if isNilInterface(c.metrics) {
		return fmt.Errorf("metrics cannot be nil")
	}
	return nil
}

func isNilInterface(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return rv.IsNil()
	default:
		return false
	}
}
