package unxf

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// TrustGroup names a built-in set of trusted network prefixes.
type TrustGroup int

const (
	// Start at 1 to avoid zero-value confusion.
	//
	// PrivateIPv4 covers the RFC 1918 ranges.
	PrivateIPv4 TrustGroup = iota + 1
	// IPv4Loopback covers 127.0.0.0/8.
	IPv4Loopback
	// IPv6Loopback covers ::1/128.
	IPv6Loopback
)

var (
	privateIPv4Prefixes = []netip.Prefix{
		mustParsePrefix("10.0.0.0/8"),
		mustParsePrefix("172.16.0.0/12"),
		mustParsePrefix("192.168.0.0/16"),
	}

	ipv4LoopbackPrefixes = []netip.Prefix{
		mustParsePrefix("127.0.0.0/8"),
	}

	ipv6LoopbackPrefixes = []netip.Prefix{
		mustParsePrefix("::1/128"),
	}
)

// DefaultTrustGroups are trusted when no trust option is given.
var DefaultTrustGroups = []TrustGroup{PrivateIPv4, IPv4Loopback, IPv6Loopback}

func mustParsePrefix(cidr string) netip.Prefix {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in CIDR %q: %v", cidr, err))
	}
	return prefix
}

// String returns the canonical text representation of g.
func (g TrustGroup) String() string {
	switch g {
	case PrivateIPv4:
		return "private_ipv4"
	case IPv4Loopback:
		return "ipv4_loopback"
	case IPv6Loopback:
		return "ipv6_loopback"
	default:
		return "unknown"
	}
}

// Prefixes returns a copy of the prefixes g stands for, or nil for an
// unknown group.
func (g TrustGroup) Prefixes() []netip.Prefix {
	var prefixes []netip.Prefix
	switch g {
	case PrivateIPv4:
		prefixes = privateIPv4Prefixes
	case IPv4Loopback:
		prefixes = ipv4LoopbackPrefixes
	case IPv6Loopback:
		prefixes = ipv6LoopbackPrefixes
	default:
		return nil
	}
	return clonePrefixes(prefixes)
}

func (g TrustGroup) valid() bool {
	return g == PrivateIPv4 || g == IPv4Loopback || g == IPv6Loopback
}

// trustGroupNames maps the accepted spellings of group references. RFC_1918
// and LOCALHOST are kept as aliases of the historical symbol names.
var trustGroupNames = map[string]TrustGroup{
	"private_ipv4":  PrivateIPv4,
	"rfc_1918":      PrivateIPv4,
	"rfc1918":       PrivateIPv4,
	"ipv4_loopback": IPv4Loopback,
	"localhost":     IPv4Loopback,
	"ipv6_loopback": IPv6Loopback,
}

// ParseTrustGroup resolves a group name such as "private_ipv4" or "RFC_1918".
func ParseTrustGroup(name string) (TrustGroup, bool) {
	g, ok := trustGroupNames[strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))]
	return g, ok
}

// TrustEntry is either a named TrustGroup or a literal network prefix.
type TrustEntry struct {
	group  TrustGroup
	prefix netip.Prefix
}

// GroupEntry returns an entry referencing g.
func GroupEntry(g TrustGroup) TrustEntry {
	return TrustEntry{group: g}
}

// PrefixEntry returns an entry for a literal prefix.
func PrefixEntry(prefix netip.Prefix) TrustEntry {
	return TrustEntry{prefix: prefix}
}

// String returns the group name or the prefix text of e.
func (e TrustEntry) String() string {
	if e.group != 0 {
		return e.group.String()
	}
	return e.prefix.String()
}

func (e TrustEntry) prefixes() ([]netip.Prefix, error) {
	if e.group != 0 {
		if !e.group.valid() {
			return nil, &TrustEntryError{Entry: e.String(), Err: fmt.Errorf("unknown trust group %d", int(e.group))}
		}
		return e.group.Prefixes(), nil
	}

	if !e.prefix.IsValid() {
		return nil, &TrustEntryError{Entry: e.String(), Err: errors.New("invalid prefix")}
	}
	return []netip.Prefix{e.prefix.Masked()}, nil
}

// ParseTrustEntry parses a group name, a CIDR prefix or a bare address. Bare
// addresses become single-host prefixes (/32 or /128).
func ParseTrustEntry(raw string) (TrustEntry, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return TrustEntry{}, &TrustEntryError{Entry: raw, Err: errors.New("empty entry")}
	}

	if g, ok := ParseTrustGroup(s); ok {
		return GroupEntry(g), nil
	}

	if strings.Contains(s, "/") {
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			return TrustEntry{}, &TrustEntryError{Entry: raw, Err: err}
		}
		return PrefixEntry(prefix), nil
	}

	addr, err := netip.ParseAddr(s)
	if err != nil {
		return TrustEntry{}, &TrustEntryError{Entry: raw, Err: fmt.Errorf("not a valid CIDR, address or group name: %w", err)}
	}

	return PrefixEntry(netip.PrefixFrom(addr.WithZone(""), addr.BitLen())), nil
}

// ParseTrustEntries parses every entry in raw. All invalid entries are
// reported together.
func ParseTrustEntries(raw ...string) ([]TrustEntry, error) {
	entries := make([]TrustEntry, 0, len(raw))
	var errs *multierror.Error

	for _, r := range raw {
		entry, err := ParseTrustEntry(r)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		entries = append(entries, entry)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	return entries, nil
}

// ParseCIDRs parses literal prefixes only.
func ParseCIDRs(cidrs ...string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, &TrustEntryError{Entry: cidr, Err: err}
		}
		prefixes = append(prefixes, prefix)
	}
	return prefixes, nil
}

func clonePrefixes(prefixes []netip.Prefix) []netip.Prefix {
	if prefixes == nil {
		return nil
	}
	cloned := make([]netip.Prefix, len(prefixes))
	copy(cloned, prefixes)
	return cloned
}

func mergeUniquePrefixes(existing []netip.Prefix, additions ...netip.Prefix) []netip.Prefix {
	if len(existing) == 0 && len(additions) == 0 {
		return nil
	}

	merged := make([]netip.Prefix, 0, len(existing)+len(additions))
	seen := make(map[netip.Prefix]struct{}, len(existing)+len(additions))

	for _, list := range [][]netip.Prefix{existing, additions} {
		for _, prefix := range list {
			if _, ok := seen[prefix]; ok {
				continue
			}
			seen[prefix] = struct{}{}
			merged = append(merged, prefix)
		}
	}

	return merged
}

func buildNetworkSet(entries []TrustEntry) (*NetworkSet, []netip.Prefix, error) {
	var (
		prefixes []netip.Prefix
		errs     *multierror.Error
	)

	for _, entry := range entries {
		p, err := entry.prefixes()
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		prefixes = mergeUniquePrefixes(prefixes, p...)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, nil, err
	}

	set, err := NewNetworkSet(prefixes...)
	if err != nil {
		return nil, nil, err
	}

	return set, prefixes, nil
}
