package unxf

import (
	"context"
	"fmt"
	"net/netip"
	"strconv"
)

// Header names as they appear on the wire.
const (
	HeaderForwardedFor   = "X-Forwarded-For"
	HeaderRealIP         = "X-Real-IP"
	HeaderForwarded      = "Forwarded"
	HeaderForwardedProto = "X-Forwarded-Proto"
)

// Filter resolves the client address of a request from its forwarding
// headers, trusting only hops inside its NetworkSet.
//
// A Filter is immutable after New and safe for concurrent use.
type Filter struct {
	config *config
}

// New creates a Filter from one or more Option builders. Without a trust
// option the filter trusts DefaultTrustGroups.
//
// Any invalid trust entry makes New fail; entries are never dropped silently.
func New(opts ...Option) (*Filter, error) {
	cfg, err := configFromOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Filter{config: cfg}, nil
}

// TrustedPrefixes returns the deduplicated prefixes the filter trusts.
func (f *Filter) TrustedPrefixes() []netip.Prefix {
	return clonePrefixes(f.config.prefixes)
}

// IsTrusted reports whether addr lies inside a trusted prefix.
func (f *Filter) IsTrusted(addr netip.Addr) bool {
	return f.config.networks.Contains(addr)
}

// chainSource is the header chosen for one resolution.
type chainSource struct {
	key    string
	header string
	raw    string
	hops   []string
}

// Resolve walks the forwarding chain in env and rewrites env in place.
//
// When no forwarding header is present env is left untouched and Resolve
// returns Proceed. Otherwise the raw header values are moved into the audit
// keys and removed; on a fully trusted chain REMOTE_ADDR is replaced with the
// client address and url.scheme may be set to https. Broken and untrusted
// chains leave REMOTE_ADDR alone and the outcome is decided by the configured
// BadChainHandler.
func (f *Filter) Resolve(ctx context.Context, env Env) Result {
	return f.resolve(ctx, env, false)
}

// resolve is Resolve for callers that saw the protocol header repeated.
// Repeated protocol lines are never believed.
func (f *Filter) resolve(ctx context.Context, env Env, repeatedProto bool) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	src, ok := f.selectSource(env)
	if !ok {
		return Result{Outcome: Proceed, Status: StatusNoHeaders}
	}

	proto, hasProto := f.consumeHeaders(env, &src)
	peerRaw := env[KeyRemoteAddr]

	chainErr := func(err error, index int, hop string) *ChainError {
		return &ChainError{
			Err:        err,
			Header:     src.header,
			Chain:      src.raw,
			RemoteAddr: peerRaw,
			Index:      index,
			Hop:        hop,
		}
	}

	if src.key == KeyForwarded {
		fwd, err := parseForwarded(src.raw)
		if err != nil {
			return f.badChain(ctx, env, src, StatusBroken, securityEventMalformedForwarded, chainErr(err, -1, ""))
		}
		if n := len(fwd.hops); n > f.config.maxChainLength {
			return f.chainTooLong(ctx, env, src, chainErr(ErrChainTooLong, -1, ""), n)
		}
		src.hops = fwd.hops
		if !hasProto && fwd.proto != "" {
			proto, hasProto = fwd.proto, true
			env[KeyAuditProto] = fwd.proto
		}
	} else {
		if n := chainLength(src.raw); n > f.config.maxChainLength {
			return f.chainTooLong(ctx, env, src, chainErr(ErrChainTooLong, -1, ""), n)
		}
		src.hops = splitChain(src.raw)
	}

	peer := parseHop(peerRaw)
	if !peer.IsValid() {
		return f.badChain(ctx, env, src, StatusBroken, securityEventMalformedAddress, chainErr(ErrMalformedAddress, -1, peerRaw))
	}

	hops, badIndex := parseChain(src.hops)
	if badIndex >= 0 {
		return f.badChain(ctx, env, src, StatusBroken, securityEventMalformedAddress, chainErr(ErrMalformedAddress, badIndex, src.hops[badIndex]))
	}

	// A header without hops vouches for nothing, so the peer itself must be
	// trusted.
	client, remaining := walkChain(f.config.networks, peer, hops)
	if remaining > 0 || (len(hops) == 0 && !f.config.networks.Contains(peer)) {
		if hasProto && isSecureProto(proto) {
			f.config.metrics.RecordSecurityEvent(securityEventProtoIgnored)
		}

		index, hop := -1, peerRaw
		if remaining < len(hops) {
			index, hop = remaining, src.hops[remaining]
		}
		return f.badChain(ctx, env, src, StatusUntrusted, securityEventUntrustedHop, chainErr(ErrUntrustedHop, index, hop))
	}

	env[KeyRemoteAddr] = client.String()

	secure := hasProto && isSecureProto(proto)
	if hasProto && repeatedProto {
		f.config.metrics.RecordSecurityEvent(securityEventMultipleHeaders)
		f.config.logger.WarnContext(ctx, "repeated protocol header ignored",
			"event", securityEventMultipleHeaders,
			"header", HeaderForwardedProto,
			"proto", strconv.Quote(proto),
			"remote_addr", strconv.Quote(peerRaw),
		)
		secure = false
	}
	if secure {
		env[KeyURLScheme] = SchemeHTTPS
	}

	f.config.metrics.RecordResolution(StatusTrusted.String())

	return Result{
		Outcome:    Proceed,
		Status:     StatusTrusted,
		ClientAddr: client,
		Secure:     secure,
	}
}

// selectSource picks the chain header by precedence: X-Forwarded-For, then
// X-Real-IP, then Forwarded when enabled.
func (f *Filter) selectSource(env Env) (chainSource, bool) {
	if env == nil {
		return chainSource{}, false
	}

	if raw, ok := env[KeyForwardedFor]; ok {
		return chainSource{key: KeyForwardedFor, header: HeaderForwardedFor, raw: raw}, true
	}
	if raw, ok := env[KeyRealIP]; ok {
		return chainSource{key: KeyRealIP, header: HeaderRealIP, raw: raw}, true
	}
	if f.config.acceptForwarded {
		if raw, ok := env[KeyForwarded]; ok {
			return chainSource{key: KeyForwarded, header: HeaderForwarded, raw: raw}, true
		}
	}

	return chainSource{}, false
}

// consumeHeaders moves the forwarding headers into the audit keys so that
// nothing downstream reads them raw. It returns the declared protocol.
func (f *Filter) consumeHeaders(env Env, src *chainSource) (string, bool) {
	env[KeyAuditFor] = src.raw

	delete(env, src.key)
	if realIP, ok := env.take(KeyRealIP); ok {
		env[KeyAuditRealIP] = realIP
	}
	if f.config.acceptForwarded {
		delete(env, KeyForwarded)
	}

	proto, ok := env.take(KeyForwardedProto)
	if ok {
		env[KeyAuditProto] = proto
	}
	return proto, ok
}

func (f *Filter) badChain(ctx context.Context, env Env, src chainSource, status Status, event string, err error) Result {
	f.config.metrics.RecordSecurityEvent(event)
	f.config.metrics.RecordResolution(status.String())

	attrs := []any{
		"event", event,
		"header", src.header,
		"chain", strconv.Quote(src.raw),
		"remote_addr", strconv.Quote(env[KeyRemoteAddr]),
	}
	if ce, ok := err.(interface{ chainIndex() int }); ok {
		attrs = append(attrs, "index", ce.chainIndex())
	}
	if tooLong, ok := err.(*ChainTooLongError); ok {
		attrs = append(attrs, "chain_length", tooLong.ChainLength, "max_length", tooLong.MaxLength)
	}
	f.config.logger.WarnContext(ctx, badChainMessage(status), attrs...)

	var outcome Outcome
	if status == StatusBroken {
		outcome = f.config.handler.OnBroken(ctx, env, src.raw)
	} else {
		outcome = f.config.handler.OnUntrusted(ctx, env, src.raw)
	}
	if outcome != Proceed {
		outcome = Reject
	}

	return Result{Outcome: outcome, Status: status, Err: err}
}

func (f *Filter) chainTooLong(ctx context.Context, env Env, src chainSource, base *ChainError, n int) Result {
	return f.badChain(ctx, env, src, StatusBroken, securityEventChainTooLong, &ChainTooLongError{
		ChainError:  *base,
		ChainLength: n,
		MaxLength:   f.config.maxChainLength,
	})
}

func badChainMessage(status Status) string {
	if status == StatusUntrusted {
		return "untrusted hop in forwarding chain"
	}
	return "broken forwarding chain"
}

func (e *ChainError) chainIndex() int {
	return e.Index
}
