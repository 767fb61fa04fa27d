package unxf

import (
	"fmt"
	"net/netip"
)

// Trust adds trust entries. The first trust option replaces the default
// groups; later ones are unioned with it. New fails if the trust options
// together add no entry.
func Trust(entries ...TrustEntry) Option {
	entries = append([]TrustEntry(nil), entries...)

	return func(c *config) error {
		c.trustSet = true
		c.trustEntries = append(c.trustEntries, entries...)
		return nil
	}
}

// TrustGroups adds named trust groups.
func TrustGroups(groups ...TrustGroup) Option {
	entries := make([]TrustEntry, 0, len(groups))
	for _, g := range groups {
		entries = append(entries, GroupEntry(g))
	}
	return Trust(entries...)
}

// TrustPrefixes adds literal trusted network prefixes.
func TrustPrefixes(prefixes ...netip.Prefix) Option {
	entries := make([]TrustEntry, 0, len(prefixes))
	for _, p := range prefixes {
		entries = append(entries, PrefixEntry(p))
	}
	return Trust(entries...)
}

// TrustCIDRs parses and adds trust entries given as text: CIDR prefixes, bare
// addresses or group names. Every invalid entry is reported and New fails.
func TrustCIDRs(entries ...string) Option {
	entries = append([]string(nil), entries...)

	return func(c *config) error {
		parsed, err := ParseTrustEntries(entries...)
		if err != nil {
			return err
		}
		return Trust(parsed...)(c)
	}
}

// TrustDefaults adds DefaultTrustGroups.
func TrustDefaults() Option {
	return TrustGroups(DefaultTrustGroups...)
}

// WithBadChainHandler sets the handler deciding the outcome of broken and
// untrusted chains.
func WithBadChainHandler(h BadChainHandler) Option {
	return func(c *config) error {
		c.handler = h
		return nil
	}
}

// MaxChainLength sets the maximum number of hops accepted in one header.
func MaxChainLength(max int) Option {
	return func(c *config) error {
		c.maxChainLength = max
		return nil
	}
}

// AcceptForwarded enables the RFC 7239 Forwarded header as a chain source of
// last resort, after X-Forwarded-For and X-Real-IP.
func AcceptForwarded(enable bool) Option {
	return func(c *config) error {
		c.acceptForwarded = enable
		return nil
	}
}

// WithLogger sets the logger implementation used for warning events.
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}

// WithMetrics sets a concrete metrics implementation.
//
// If previously configured, a metrics factory is disabled.
func WithMetrics(metrics Metrics) Option {
	return func(c *config) error {
		c.metrics = metrics
		c.metricsFactory = nil
		c.useMetricsFactory = false
		return nil
	}
}

// WithMetricsFactory configures a lazy metrics constructor.
//
// The factory is invoked only for the final winning metrics option after
// option validation succeeds.
func WithMetricsFactory(factory func() (Metrics, error)) Option {
	return func(c *config) error {
		if factory == nil {
			return fmt.Errorf("metrics factory cannot be nil")
		}

		c.metricsFactory = factory
		c.useMetricsFactory = true
		return nil
	}
}
