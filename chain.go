package unxf

import (
	"net/netip"
	"strings"
)

// typicalChainCapacity is the initial capacity used when splitting chains.
//
// Most deployments have short chains (around 1-5 hops). Preallocating 8 avoids
// reallocations in common cases without meaningful memory overhead.
const typicalChainCapacity = 8

const asciiSpace = " \t\r\n\v\f"

// chainLength returns the number of elements splitChain would produce for
// raw, without allocating.
func chainLength(raw string) int {
	if strings.Trim(raw, asciiSpace) == "" {
		return 0
	}
	return strings.Count(raw, ",") + 1
}

// splitChain splits a raw chain header on commas and trims ASCII whitespace
// around each element. Empty elements are kept so that they are rejected as
// malformed hops; an empty or blank header yields no hops.
func splitChain(raw string) []string {
	if chainLength(raw) == 0 {
		return nil
	}

	hops := make([]string, 0, typicalChainCapacity)
	for part := range strings.SplitSeq(raw, ",") {
		hops = append(hops, strings.Trim(part, asciiSpace))
	}
	return hops
}

// parseChain parses every hop. It returns the index of the first hop that is
// not an address, or -1 when all parse.
func parseChain(hops []string) ([]netip.Addr, int) {
	addrs := make([]netip.Addr, len(hops))
	for i, hop := range hops {
		ip := parseHop(hop)
		if !ip.IsValid() {
			return nil, i
		}
		addrs[i] = ip
	}
	return addrs, -1
}

// walkChain starts at peer and, while the current address is trusted and
// hops remain, pops the rightmost hop as the new current address.
//
// It returns the address the walk stopped at and the number of hops left
// unexamined. A non-zero remainder means current is untrusted and the chain
// must not be used.
func walkChain(networks *NetworkSet, peer netip.Addr, hops []netip.Addr) (current netip.Addr, remaining int) {
	current = peer
	remaining = len(hops)

	for remaining > 0 && networks.Contains(current) {
		remaining--
		current = hops[remaining]
	}

	return current, remaining
}

// isSecureProto reports whether a declared protocol value starts with the
// token "https" (any case) followed by the end of the value or a non-word
// byte, so "https", "HTTPS" and "https, http" qualify but "httpsx" does not.
func isSecureProto(v string) bool {
	const token = SchemeHTTPS
	if len(v) < len(token) || !strings.EqualFold(v[:len(token)], token) {
		return false
	}
	if len(v) == len(token) {
		return true
	}
	return !isWordByte(v[len(token)])
}

func isWordByte(b byte) bool {
	return b == '_' ||
		('0' <= b && b <= '9') ||
		('a' <= b && b <= 'z') ||
		('A' <= b && b <= 'Z')
}
