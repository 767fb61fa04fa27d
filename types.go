package unxf

import (
	"errors"
	"fmt"
	"net/netip"
)

var (
	ErrMalformedAddress = errors.New("malformed address in forwarding chain")

	ErrUntrustedHop = errors.New("untrusted hop in forwarding chain")

	ErrChainTooLong = errors.New("forwarding chain too long")

	ErrInvalidForwardedHeader = errors.New("invalid Forwarded header")

	ErrInvalidTrustEntry = errors.New("invalid trust entry")
)

// Outcome is the control decision returned by Filter.Resolve and by
// BadChainHandler implementations.
type Outcome int

const (
	// Proceed lets the request continue with the (possibly mutated) Env.
	Proceed Outcome = iota + 1
	// Reject asks the caller to short-circuit with a failure response.
	Reject
)

// String returns the canonical text representation of o.
func (o Outcome) String() string {
	switch o {
	case Proceed:
		return "proceed"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// Status classifies how a forwarding chain was resolved.
type Status int

const (
	// StatusNoHeaders means no forwarding header was present.
	StatusNoHeaders Status = iota + 1
	// StatusTrusted means the whole chain was consumed through trusted hops.
	StatusTrusted
	// StatusUntrusted means the walk stopped at an untrusted hop with hops left.
	StatusUntrusted
	// StatusBroken means the peer or a hop could not be parsed, or the chain
	// was malformed.
	StatusBroken
)

// String returns the canonical text representation of s.
func (s Status) String() string {
	switch s {
	case StatusNoHeaders:
		return "no_headers"
	case StatusTrusted:
		return "trusted"
	case StatusUntrusted:
		return "untrusted"
	case StatusBroken:
		return "broken"
	default:
		return "unknown"
	}
}

// Result describes a single Resolve call.
type Result struct {
	Outcome Outcome

	Status Status

	// ClientAddr is the committed client address. It is only valid when
	// Status is StatusTrusted.
	ClientAddr netip.Addr

	// Secure reports whether the resolved scheme was marked as https.
	Secure bool

	Err error
}

// Trusted reports whether the chain resolved completely through trusted hops.
func (r Result) Trusted() bool {
	return r.Status == StatusTrusted && r.ClientAddr.IsValid()
}

// ChainError carries the details of a broken or untrusted forwarding chain.
//
// Chain holds the raw header value as received and may contain arbitrary
// bytes; Error quotes it.
type ChainError struct {
	Err        error
	Header     string
	Chain      string
	RemoteAddr string

	// Index is the chain position the walk stopped at, or -1 when the
	// observed peer address itself was at fault.
	Index int
	Hop   string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("%s: %v (chain=%q, remote_addr=%q, index=%d, hop=%q)",
		e.Header, e.Err, e.Chain, e.RemoteAddr, e.Index, e.Hop)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

// ChainTooLongError reports a chain exceeding the configured hop limit.
type ChainTooLongError struct {
	ChainError
	ChainLength int
	MaxLength   int
}

func (e *ChainTooLongError) Error() string {
	return fmt.Sprintf("%s: %v (chain_length=%d, max_length=%d, remote_addr=%q)",
		e.Header, e.Err, e.ChainLength, e.MaxLength, e.RemoteAddr)
}

// TrustEntryError reports a trust entry that could not be turned into a
// network prefix.
type TrustEntryError struct {
	Entry string
	Err   error
}

func (e *TrustEntryError) Error() string {
	return fmt.Sprintf("%v %q: %v", ErrInvalidTrustEntry, e.Entry, e.Err)
}

func (e *TrustEntryError) Unwrap() []error {
	return []error{ErrInvalidTrustEntry, e.Err}
}
