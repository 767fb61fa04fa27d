package unxf

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type mockMetrics struct {
	mu             sync.Mutex
	resolutions    map[string]int
	securityEvents map[string]int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{
		resolutions:    make(map[string]int),
		securityEvents: make(map[string]int),
	}
}

func (m *mockMetrics) RecordResolution(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolutions[status]++
}

func (m *mockMetrics) RecordSecurityEvent(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.securityEvents[event]++
}

func (m *mockMetrics) snapshot() (map[string]int, map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	resolutions := make(map[string]int, len(m.resolutions))
	for k, v := range m.resolutions {
		resolutions[k] = v
	}
	events := make(map[string]int, len(m.securityEvents))
	for k, v := range m.securityEvents {
		events[k] = v
	}
	return resolutions, events
}

func TestMetrics_RecordsPerOutcome(t *testing.T) {
	tests := []struct {
		name            string
		opts            []Option
		env             Env
		wantResolutions map[string]int
		wantEvents      map[string]int
	}{
		{
			name:            "no headers records nothing",
			env:             Env{KeyRemoteAddr: "8.8.8.8"},
			wantResolutions: map[string]int{},
			wantEvents:      map[string]int{},
		},
		{
			name:            "trusted",
			env:             Env{KeyForwardedFor: "0.6.6.6", KeyRemoteAddr: "127.0.0.1"},
			wantResolutions: map[string]int{"trusted": 1},
			wantEvents:      map[string]int{},
		},
		{
			name:            "untrusted",
			env:             Env{KeyForwardedFor: "0.6.6.6", KeyRemoteAddr: "227.0.0.1"},
			wantResolutions: map[string]int{"untrusted": 1},
			wantEvents:      map[string]int{securityEventUntrustedHop: 1},
		},
		{
			name: "untrusted with declared https",
			env: Env{
				KeyForwardedFor:   "0.6.6.6,8.8.8.8",
				KeyForwardedProto: "https",
				KeyRemoteAddr:     "127.0.0.1",
			},
			wantResolutions: map[string]int{"untrusted": 1},
			wantEvents:      map[string]int{securityEventUntrustedHop: 1, securityEventProtoIgnored: 1},
		},
		{
			name: "blank header from untrusted peer with declared https",
			env: Env{
				KeyForwardedFor:   "",
				KeyForwardedProto: "https",
				KeyRemoteAddr:     "8.8.8.8",
			},
			wantResolutions: map[string]int{"untrusted": 1},
			wantEvents:      map[string]int{securityEventUntrustedHop: 1, securityEventProtoIgnored: 1},
		},
		{
			name:            "malformed hop",
			env:             Env{KeyForwardedFor: "\x00.6.6.6,8.8.8.8", KeyRemoteAddr: "127.0.0.1"},
			wantResolutions: map[string]int{"broken": 1},
			wantEvents:      map[string]int{securityEventMalformedAddress: 1},
		},
		{
			name:            "chain too long",
			opts:            []Option{MaxChainLength(1)},
			env:             Env{KeyForwardedFor: "1.1.1.1,10.0.0.1", KeyRemoteAddr: "127.0.0.1"},
			wantResolutions: map[string]int{"broken": 1},
			wantEvents:      map[string]int{securityEventChainTooLong: 1},
		},
		{
			name:            "malformed forwarded",
			opts:            []Option{AcceptForwarded(true)},
			env:             Env{KeyForwarded: "for=1.1.1.1;for=2.2.2.2", KeyRemoteAddr: "127.0.0.1"},
			wantResolutions: map[string]int{"broken": 1},
			wantEvents:      map[string]int{securityEventMalformedForwarded: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := newMockMetrics()
			filter := mustNewFilter(t, append([]Option{WithMetrics(metrics)}, tt.opts...)...)

			filter.Resolve(context.Background(), tt.env)

			resolutions, events := metrics.snapshot()
			if diff := cmp.Diff(tt.wantResolutions, resolutions); diff != "" {
				t.Fatalf("resolutions mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantEvents, events); diff != "" {
				t.Fatalf("security events mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMetrics_ConcurrentResolve(t *testing.T) {
	metrics := newMockMetrics()
	filter := mustNewFilter(t, WithMetrics(metrics))

	const goroutines = 16
	const perGoroutine = 50

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				filter.Resolve(context.Background(), Env{
					KeyForwardedFor: "0.6.6.6, 10.0.0.1",
					KeyRemoteAddr:   "127.0.0.1",
				})
			}
		}()
	}
	wg.Wait()

	resolutions, _ := metrics.snapshot()
	if got := resolutions["trusted"]; got != goroutines*perGoroutine {
		t.Fatalf("trusted resolutions = %d, want %d", got, goroutines*perGoroutine)
	}
}
