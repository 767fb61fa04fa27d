package unxf

// Metrics records resolution outcomes and security events emitted by Filter.
//
// Implementations should be safe for concurrent use, as a single Filter
// instance is typically shared across many goroutines.
type Metrics interface {
	// RecordResolution is called once per Resolve call that found a
	// forwarding header, with the Status text (trusted, untrusted, broken).
	RecordResolution(status string)
	// RecordSecurityEvent is called when the filter observes a
	// security-relevant condition.
	RecordSecurityEvent(event string)
}

// noopMetrics is the default Metrics implementation when metrics are not
// explicitly configured.
type noopMetrics struct{}

func (noopMetrics) RecordResolution(string) {}

func (noopMetrics) RecordSecurityEvent(string) {}
