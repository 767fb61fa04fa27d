package unxf

import (
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type testTypedNilMetrics struct{}

func (*testTypedNilMetrics) RecordResolution(string) {}

func (*testTypedNilMetrics) RecordSecurityEvent(string) {}

type configSnapshot struct {
	TrustedPrefixes []string
	MaxChainLength  int
	AcceptForwarded bool
	Lenient         bool
}

func snapshotConfig(cfg *config) configSnapshot {
	h, ok := cfg.handler.(staticHandler)
	lenient := ok && h == staticHandler(Proceed)

	return configSnapshot{
		TrustedPrefixes: prefixStrings(cfg.prefixes),
		MaxChainLength:  cfg.maxChainLength,
		AcceptForwarded: cfg.acceptForwarded,
		Lenient:         lenient,
	}
}

func TestNew_ConfigScenarios(t *testing.T) {
	tests := []struct {
		name        string
		opts        []Option
		want        configSnapshot
		wantErrText string
	}{
		{
			name: "default",
			want: configSnapshot{
				TrustedPrefixes: []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "127.0.0.0/8", "::1/128"},
				MaxChainLength:  DefaultMaxChainLength,
			},
		},
		{
			name: "configured options",
			opts: []Option{
				TrustPrefixes(
					netip.MustParsePrefix("10.0.0.0/8"),
					netip.MustParsePrefix("2001:db8::/32"),
				),
				MaxChainLength(42),
				AcceptForwarded(true),
				WithBadChainHandler(PassBadChains()),
			},
			want: configSnapshot{
				TrustedPrefixes: []string{"10.0.0.0/8", "2001:db8::/32"},
				MaxChainLength:  42,
				AcceptForwarded: true,
				Lenient:         true,
			},
		},
		{
			name: "explicit trust replaces defaults",
			opts: []Option{TrustCIDRs("0.6.6.6")},
			want: configSnapshot{
				TrustedPrefixes: []string{"0.6.6.6/32"},
				MaxChainLength:  DefaultMaxChainLength,
			},
		},
		{
			name: "trust options are unioned",
			opts: []Option{
				TrustGroups(IPv6Loopback),
				TrustCIDRs("LOCALHOST", "0.6.6.6", "::1"),
				TrustDefaults(),
			},
			want: configSnapshot{
				TrustedPrefixes: []string{"::1/128", "127.0.0.0/8", "0.6.6.6/32", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
				MaxChainLength:  DefaultMaxChainLength,
			},
		},
		{
			name: "nil options are skipped",
			opts: []Option{nil, MaxChainLength(7), nil},
			want: configSnapshot{
				TrustedPrefixes: []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "127.0.0.0/8", "::1/128"},
				MaxChainLength:  7,
			},
		},
		{
			name:        "empty explicit trust list",
			opts:        []Option{Trust()},
			wantErrText: "trust list is empty",
		},
		{
			name:        "empty trust cidr list",
			opts:        []Option{TrustCIDRs()},
			wantErrText: "trust list is empty",
		},
		{
			name:        "empty trust list after groups",
			opts:        []Option{TrustGroups(), TrustPrefixes()},
			wantErrText: "trust list is empty",
		},
		{
			name:        "invalid trust entry",
			opts:        []Option{TrustCIDRs("10.0.0.0/8", "not-a-network")},
			wantErrText: `invalid trust entry "not-a-network"`,
		},
		{
			name:        "invalid trust prefix",
			opts:        []Option{TrustPrefixes(netip.Prefix{})},
			wantErrText: "invalid trust entry",
		},
		{
			name:        "zero max chain length",
			opts:        []Option{MaxChainLength(0)},
			wantErrText: "maxChainLength must be > 0",
		},
		{
			name:        "nil handler",
			opts:        []Option{WithBadChainHandler(nil)},
			wantErrText: "bad chain handler cannot be nil",
		},
		{
			name:        "nil logger",
			opts:        []Option{WithLogger(nil)},
			wantErrText: "logger cannot be nil",
		},
		{
			name:        "typed nil logger",
			opts:        []Option{WithLogger((*slog.Logger)(nil))},
			wantErrText: "logger cannot be nil",
		},
		{
			name:        "nil metrics",
			opts:        []Option{WithMetrics(nil)},
			wantErrText: "metrics cannot be nil",
		},
		{
			name:        "typed nil metrics",
			opts:        []Option{WithMetrics((*testTypedNilMetrics)(nil))},
			wantErrText: "metrics cannot be nil",
		},
		{
			name:        "nil metrics factory",
			opts:        []Option{WithMetricsFactory(nil)},
			wantErrText: "metrics factory cannot be nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := New(tt.opts...)
			if tt.wantErrText != "" {
				if err == nil {
					t.Fatalf("New() error = nil, want %q", tt.wantErrText)
				}
				if !strings.Contains(err.Error(), tt.wantErrText) {
					t.Fatalf("New() error = %q, want it to contain %q", err.Error(), tt.wantErrText)
				}
				if !strings.HasPrefix(err.Error(), "invalid configuration: ") {
					t.Fatalf("New() error = %q, want invalid configuration prefix", err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			if diff := cmp.Diff(tt.want, snapshotConfig(filter.config)); diff != "" {
				t.Fatalf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNew_InvalidTrustEntriesAreAllReported(t *testing.T) {
	_, err := New(TrustCIDRs("bogus", "10.0.0.0/33", "LOCALHOST"))
	if !errors.Is(err, ErrInvalidTrustEntry) {
		t.Fatalf("New() error = %v, want %v", err, ErrInvalidTrustEntry)
	}

	var entryErr *TrustEntryError
	if !errors.As(err, &entryErr) {
		t.Fatalf("New() error = %v, want *TrustEntryError", err)
	}

	for _, entry := range []string{"bogus", "10.0.0.0/33"} {
		if !strings.Contains(err.Error(), entry) {
			t.Fatalf("New() error %q does not mention %q", err.Error(), entry)
		}
	}
}

func TestNew_MetricsFactory(t *testing.T) {
	t.Run("invoked once on success", func(t *testing.T) {
		calls := 0
		metrics := newMockMetrics()

		_, err := New(WithMetricsFactory(func() (Metrics, error) {
			calls++
			return metrics, nil
		}))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if calls != 1 {
			t.Fatalf("factory calls = %d, want 1", calls)
		}
	})

	t.Run("not invoked on invalid configuration", func(t *testing.T) {
		calls := 0

		_, err := New(
			WithMetricsFactory(func() (Metrics, error) {
				calls++
				return newMockMetrics(), nil
			}),
			TrustCIDRs("bogus"),
		)
		if err == nil {
			t.Fatal("New() error = nil, want error")
		}
		if calls != 0 {
			t.Fatalf("factory calls = %d, want 0", calls)
		}
	})

	t.Run("not invoked when overridden", func(t *testing.T) {
		calls := 0

		_, err := New(
			WithMetricsFactory(func() (Metrics, error) {
				calls++
				return newMockMetrics(), nil
			}),
			WithMetrics(newMockMetrics()),
		)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if calls != 0 {
			t.Fatalf("factory calls = %d, want 0", calls)
		}
	})

	t.Run("factory error", func(t *testing.T) {
		factoryErr := errors.New("boom")

		_, err := New(WithMetricsFactory(func() (Metrics, error) {
			return nil, factoryErr
		}))
		if !errors.Is(err, factoryErr) {
			t.Fatalf("New() error = %v, want %v", err, factoryErr)
		}
	})

	t.Run("factory returns nil", func(t *testing.T) {
		_, err := New(WithMetricsFactory(func() (Metrics, error) {
			return (*testTypedNilMetrics)(nil), nil
		}))
		if err == nil || !strings.Contains(err.Error(), "nil metrics") {
			t.Fatalf("New() error = %v, want nil metrics error", err)
		}
	})
}

func TestNew_SlogLoggerAccepted(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, err := New(WithLogger(logger)); err != nil {
		t.Fatalf("New() error = %v", err)
	}
}
