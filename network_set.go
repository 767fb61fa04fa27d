package unxf

import (
	"fmt"
	"net/netip"
)

// NetworkSet is a set of IPv4 and IPv6 network prefixes backed by one binary
// trie per address family.
//
// A NetworkSet is built once and then only read; concurrent Contains calls
// are safe as long as no Insert runs at the same time.
type NetworkSet struct {
	ipv4Root *prefixTrieNode
	ipv6Root *prefixTrieNode
	size     int
}

type prefixTrieNode struct {
	children [2]*prefixTrieNode
	terminal bool
}

// NewNetworkSet returns a set holding prefixes.
func NewNetworkSet(prefixes ...netip.Prefix) (*NetworkSet, error) {
	set := &NetworkSet{}
	for _, prefix := range prefixes {
		if err := set.Insert(prefix); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// Insert adds prefix to the trie of its address family. Duplicate and
// overlapping prefixes are accepted.
func (s *NetworkSet) Insert(prefix netip.Prefix) error {
	addr := prefix.Addr()
	if !prefix.IsValid() || !addr.IsValid() {
		return &TrustEntryError{Entry: prefix.String(), Err: fmt.Errorf("invalid prefix")}
	}

	bits := prefix.Bits()
	if bits < 0 || bits > addr.BitLen() {
		return &TrustEntryError{Entry: prefix.String(), Err: fmt.Errorf("prefix length %d exceeds %d bits", bits, addr.BitLen())}
	}

	if addr.Is4() {
		if s.ipv4Root == nil {
			s.ipv4Root = &prefixTrieNode{}
		}

		bytes := addr.As4()
		insertPrefix(s.ipv4Root, bytes[:], bits)
	} else {
		if s.ipv6Root == nil {
			s.ipv6Root = &prefixTrieNode{}
		}

		bytes := addr.As16()
		insertPrefix(s.ipv6Root, bytes[:], bits)
	}

	s.size++
	return nil
}

// Len returns the number of prefixes inserted, duplicates included.
func (s *NetworkSet) Len() int {
	if s == nil {
		return 0
	}
	return s.size
}

func insertPrefix(root *prefixTrieNode, addr []byte, bits int) {
	node := root
	for bitIndex := range bits {
		bit := addrBit(addr, bitIndex)
		child := node.children[bit]
		if child == nil {
			child = &prefixTrieNode{}
			node.children[bit] = child
		}
		node = child
	}

	node.terminal = true
}

// Contains reports whether ip falls inside any inserted prefix of the same
// address family. IPv4-mapped IPv6 addresses are IPv6 and never match IPv4
// prefixes.
func (s *NetworkSet) Contains(ip netip.Addr) bool {
	if s == nil || !ip.IsValid() {
		return false
	}

	if ip.Is4() {
		bytes := ip.As4()
		return trieContains(s.ipv4Root, bytes[:])
	}

	bytes := ip.As16()
	return trieContains(s.ipv6Root, bytes[:])
}

// ContainsString parses raw as a hop value and reports whether it is inside
// the set. A value that does not parse yields ErrMalformedAddress and is
// never reported as trusted.
func (s *NetworkSet) ContainsString(raw string) (bool, error) {
	ip := parseHop(raw)
	if !ip.IsValid() {
		return false, fmt.Errorf("%w: %q", ErrMalformedAddress, raw)
	}

	return s.Contains(ip), nil
}

func trieContains(root *prefixTrieNode, addr []byte) bool {
	node := root
	if node == nil {
		return false
	}

	if node.terminal {
		return true
	}

	for bitIndex := range len(addr) * 8 {
		node = node.children[addrBit(addr, bitIndex)]
		if node == nil {
			return false
		}
		if node.terminal {
			return true
		}
	}

	return false
}

func addrBit(addr []byte, bitIndex int) int {
	byteIndex := bitIndex / 8
	shift := uint(7 - (bitIndex % 8))
	if ((addr[byteIndex] >> shift) & 1) == 1 {
		return 1
	}
	return 0
}
