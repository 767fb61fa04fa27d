package unxf

const (
	securityEventMalformedAddress   = "malformed_address"
	securityEventUntrustedHop       = "untrusted_hop"
	securityEventChainTooLong       = "chain_too_long"
	securityEventMalformedForwarded = "malformed_forwarded"
	securityEventProtoIgnored       = "proto_ignored"
	securityEventMultipleHeaders    = "multiple_headers"
)
