package unxf

import (
	"context"
	"testing"
)

func TestStaticHandlers(t *testing.T) {
	ctx := context.Background()

	reject := RejectBadChains()
	if got := reject.OnBroken(ctx, Env{}, ""); got != Reject {
		t.Fatalf("RejectBadChains().OnBroken() = %v, want %v", got, Reject)
	}
	if got := reject.OnUntrusted(ctx, Env{}, ""); got != Reject {
		t.Fatalf("RejectBadChains().OnUntrusted() = %v, want %v", got, Reject)
	}

	pass := PassBadChains()
	if got := pass.OnBroken(ctx, Env{}, ""); got != Proceed {
		t.Fatalf("PassBadChains().OnBroken() = %v, want %v", got, Proceed)
	}
	if got := pass.OnUntrusted(ctx, Env{}, ""); got != Proceed {
		t.Fatalf("PassBadChains().OnUntrusted() = %v, want %v", got, Proceed)
	}
}

func TestBadChainHandlerFuncs_NilFallsBackToReject(t *testing.T) {
	var h BadChainHandlerFuncs

	if got := h.OnBroken(context.Background(), Env{}, "x"); got != Reject {
		t.Fatalf("OnBroken() = %v, want %v", got, Reject)
	}
	if got := h.OnUntrusted(context.Background(), Env{}, "x"); got != Reject {
		t.Fatalf("OnUntrusted() = %v, want %v", got, Reject)
	}
}

func TestBadChainHandler_ReceivesRawValueAndPeer(t *testing.T) {
	type call struct {
		kind       string
		raw        string
		remoteAddr string
		auditFor   string
	}
	var calls []call

	handler := BadChainHandlerFuncs{
		Broken: func(_ context.Context, env Env, raw string) Outcome {
			calls = append(calls, call{kind: "broken", raw: raw, remoteAddr: env[KeyRemoteAddr], auditFor: env[KeyAuditFor]})
			return Proceed
		},
		Untrusted: func(_ context.Context, env Env, raw string) Outcome {
			calls = append(calls, call{kind: "untrusted", raw: raw, remoteAddr: env[KeyRemoteAddr], auditFor: env[KeyAuditFor]})
			return Reject
		},
	}
	filter := mustNewFilter(t, WithBadChainHandler(handler))

	broken := filter.Resolve(context.Background(), Env{
		KeyForwardedFor: "\x00.6.6.6,8.8.8.8",
		KeyRemoteAddr:   "127.0.0.1",
	})
	if broken.Outcome != Proceed {
		t.Fatalf("broken outcome = %v, want %v", broken.Outcome, Proceed)
	}

	untrusted := filter.Resolve(context.Background(), Env{
		KeyForwardedFor: "0.6.6.6",
		KeyRemoteAddr:   "227.0.0.1",
	})
	if untrusted.Outcome != Reject {
		t.Fatalf("untrusted outcome = %v, want %v", untrusted.Outcome, Reject)
	}

	want := []call{
		{kind: "broken", raw: "\x00.6.6.6,8.8.8.8", remoteAddr: "127.0.0.1", auditFor: "\x00.6.6.6,8.8.8.8"},
		{kind: "untrusted", raw: "0.6.6.6", remoteAddr: "227.0.0.1", auditFor: "0.6.6.6"},
	}
	if len(calls) != len(want) {
		t.Fatalf("handler calls = %d, want %d", len(calls), len(want))
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d = %+v, want %+v", i, calls[i], want[i])
		}
	}
}

func TestBadChainHandler_UnknownOutcomeRejects(t *testing.T) {
	handler := BadChainHandlerFuncs{
		Untrusted: func(context.Context, Env, string) Outcome { return Outcome(0) },
	}
	filter := mustNewFilter(t, WithBadChainHandler(handler))

	result := filter.Resolve(context.Background(), Env{
		KeyForwardedFor: "0.6.6.6",
		KeyRemoteAddr:   "227.0.0.1",
	})
	if result.Outcome != Reject {
		t.Fatalf("outcome = %v, want %v", result.Outcome, Reject)
	}
}

func TestOutcomeAndStatusStrings(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{got: Proceed.String(), want: "proceed"},
		{got: Reject.String(), want: "reject"},
		{got: Outcome(0).String(), want: "unknown"},
		{got: StatusNoHeaders.String(), want: "no_headers"},
		{got: StatusTrusted.String(), want: "trusted"},
		{got: StatusUntrusted.String(), want: "untrusted"},
		{got: StatusBroken.String(), want: "broken"},
		{got: Status(0).String(), want: "unknown"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %q, want %q", tt.got, tt.want)
		}
	}
}
