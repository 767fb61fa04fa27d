// Package unxf resolves the true client address of an HTTP request from the
// X-Forwarded-For chain (or X-Real-IP, or optionally RFC 7239 Forwarded) while
// ignoring forwarding information that did not come from a trusted proxy.
//
// # How it works
//
// Starting at the observed peer address, the filter walks the chain from the
// rightmost (most recently added) hop to the left. As long as the current
// address is inside a trusted network and hops remain, the next hop to the
// left becomes the current address. When the chain is consumed completely,
// the last address reached is the client:
//
//	peer 127.0.0.1, X-Forwarded-For: 0.6.6.6, 192.168.0.1  =>  client 0.6.6.6
//
// When the walk stops at an untrusted address while hops remain, the chain
// is untrusted and nothing is committed:
//
//	peer 127.0.0.1, X-Forwarded-For: 0.6.6.6, 8.8.8.8      =>  untrusted
//
// A hop or peer that is not an address makes the chain broken. A header that
// is present but blank has no hops, so it resolves only when the peer itself
// is trusted. X-Forwarded-Proto is honored only on a completely trusted chain
// and never when the header is repeated.
//
// # Basic Usage
//
//	filter, err := unxf.New() // trusts RFC 1918 and loopback ranges
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	http.ListenAndServe(":8080", filter.Middleware(app))
//
// Downstream handlers read the result from the request:
//
//	info, _ := unxf.InfoFromRequest(r)
//	fmt.Println(info.ClientAddr, info.Secure)
//
// # Trust configuration
//
// Trust entries are CIDR prefixes, bare addresses or group names, unioned:
//
//	filter, err := unxf.New(
//	    unxf.TrustCIDRs("ipv4_loopback", "0.6.6.6", "2001:db8::/32"),
//	)
//
// The first trust option replaces the defaults. An invalid entry, or a trust
// option that leaves the list empty, makes New fail instead of being skipped.
//
// # Bad chains
//
// Broken and untrusted chains are reported to a BadChainHandler. The default
// rejects the request (HTTP 400 from the middleware); PassBadChains keeps the
// observed peer address and continues.
//
//	filter, _ := unxf.New(unxf.WithBadChainHandler(unxf.PassBadChains()))
//
// # Framework-agnostic use
//
// Filter.Resolve works on an Env, a CGI-style key-value view of the request,
// so the filter can sit in front of anything that can produce one.
//
// # Observability
//
// WithLogger accepts *slog.Logger directly; raw header values are quoted
// before they reach the logger. WithMetrics accepts any Metrics; the
// Prometheus adapter lives in github.com/abczzz13/unxf/prometheus.
//
// # Thread Safety
//
// Filter instances are immutable after New and safe for concurrent use.
package unxf
