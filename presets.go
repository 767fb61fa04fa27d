package unxf

// PresetStrict trusts the default private and loopback ranges and rejects
// every broken or untrusted chain.
func PresetStrict() Option {
	return func(c *config) error {
		return applyOptions(c,
			TrustDefaults(),
			WithBadChainHandler(RejectBadChains()),
		)
	}
}

// PresetLenient trusts the default private and loopback ranges and lets
// broken or untrusted chains through with the observed peer address.
//
// Use it for logging-only deployments; downstream code must not treat
// REMOTE_ADDR as anything more than the socket peer when the chain failed.
func PresetLenient() Option {
	return func(c *config) error {
		return applyOptions(c,
			TrustDefaults(),
			WithBadChainHandler(PassBadChains()),
		)
	}
}

// PresetLoopbackProxy trusts only loopback peers, for an application behind
// a reverse proxy on the same host.
func PresetLoopbackProxy() Option {
	return TrustGroups(IPv4Loopback, IPv6Loopback)
}
