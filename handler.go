package unxf

import "context"

// BadChainHandler decides what happens to a request whose forwarding chain
// could not be trusted.
//
// raw is the header value as received and may contain arbitrary bytes. env is
// the request context after the forwarding headers were moved into the audit
// keys; REMOTE_ADDR still holds the observed peer address. Implementations
// must be safe for concurrent use.
type BadChainHandler interface {
	// OnBroken is called when the peer or a hop does not parse, or the chain
	// header is otherwise malformed.
	OnBroken(ctx context.Context, env Env, raw string) Outcome
	// OnUntrusted is called when the walk stops at an untrusted hop while
	// hops remain.
	OnUntrusted(ctx context.Context, env Env, raw string) Outcome
}

type staticHandler Outcome

func (h staticHandler) OnBroken(context.Context, Env, string) Outcome { return Outcome(h) }

func (h staticHandler) OnUntrusted(context.Context, Env, string) Outcome { return Outcome(h) }

// RejectBadChains returns the default handler: every broken or untrusted chain
// is rejected.
func RejectBadChains() BadChainHandler {
	return staticHandler(Reject)
}

// PassBadChains returns a handler that lets broken or untrusted chains
// through with the observed peer address left in place.
func PassBadChains() BadChainHandler {
	return staticHandler(Proceed)
}

// BadChainHandlerFuncs adapts plain functions to BadChainHandler. A nil
// function falls back to Reject.
type BadChainHandlerFuncs struct {
	Broken    func(ctx context.Context, env Env, raw string) Outcome
	Untrusted func(ctx context.Context, env Env, raw string) Outcome
}

// OnBroken implements BadChainHandler.
func (f BadChainHandlerFuncs) OnBroken(ctx context.Context, env Env, raw string) Outcome {
	if f.Broken == nil {
		return Reject
	}
	return f.Broken(ctx, env, raw)
}

// OnUntrusted implements BadChainHandler.
func (f BadChainHandlerFuncs) OnUntrusted(ctx context.Context, env Env, raw string) Outcome {
	if f.Untrusted == nil {
		return Reject
	}
	return f.Untrusted(ctx, env, raw)
}
