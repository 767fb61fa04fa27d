package unxf

import (
	"errors"
	"net/netip"
	"testing"
)

// resultView is the comparable subset of a Result.
type resultView struct {
	Outcome    Outcome
	Status     Status
	ClientAddr string
	Secure     bool
}

func viewOf(result Result) resultView {
	view := resultView{
		Outcome: result.Outcome,
		Status:  result.Status,
		Secure:  result.Secure,
	}
	if result.ClientAddr.IsValid() {
		view.ClientAddr = result.ClientAddr.String()
	}
	return view
}

func mustNewFilter(t testing.TB, opts ...Option) *Filter {
	t.Helper()

	filter, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return filter
}

func mustParseCIDRs(t testing.TB, cidrs ...string) []netip.Prefix {
	t.Helper()

	prefixes, err := ParseCIDRs(cidrs...)
	if err != nil {
		t.Fatalf("ParseCIDRs() error = %v", err)
	}

	return prefixes
}

func chainErrorOf(t *testing.T, err error) *ChainError {
	t.Helper()

	var tooLong *ChainTooLongError
	if errors.As(err, &tooLong) {
		return &tooLong.ChainError
	}

	var chainErr *ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("error = %v (%T), want *ChainError", err, err)
	}
	return chainErr
}

func prefixStrings(prefixes []netip.Prefix) []string {
	out := make([]string, len(prefixes))
	for i, p := range prefixes {
		out[i] = p.String()
	}
	return out
}
