package unxf

// Env is the mutable key-value view of one in-flight request.
//
// Keys follow the CGI convention for request headers (HTTP_ prefix, upper
// case, underscores). Filter.Resolve reads and rewrites the keys below and
// leaves every other key alone.
type Env map[string]string

const (
	// KeyRemoteAddr holds the observed peer address; it is replaced by the
	// resolved client address when the chain is fully trusted.
	KeyRemoteAddr = "REMOTE_ADDR"
	// KeyForwardedFor holds the raw X-Forwarded-For value.
	KeyForwardedFor = "HTTP_X_FORWARDED_FOR"
	// KeyRealIP holds the raw X-Real-IP value.
	KeyRealIP = "HTTP_X_REAL_IP"
	// KeyForwarded holds the raw RFC 7239 Forwarded value.
	KeyForwarded = "HTTP_FORWARDED"
	// KeyForwardedProto holds the raw X-Forwarded-Proto value.
	KeyForwardedProto = "HTTP_X_FORWARDED_PROTO"

	// KeyURLScheme is set to SchemeHTTPS when the declared scheme is believed.
	KeyURLScheme = "url.scheme"

	// KeyAuditFor records the raw chain header value as received.
	KeyAuditFor = "unxf.for"
	// KeyAuditRealIP records a raw X-Real-IP value that was shadowed by
	// X-Forwarded-For.
	KeyAuditRealIP = "unxf.real_ip"
	// KeyAuditProto records the raw X-Forwarded-Proto value as received. When
	// the protocol comes from a Forwarded header it holds the unquoted proto
	// parameter; the raw Forwarded text is in KeyAuditFor.
	KeyAuditProto = "unxf.proto"
)

// SchemeHTTPS is the value written to KeyURLScheme.
const SchemeHTTPS = "https"

// take returns the value under key and removes it.
func (e Env) take(key string) (string, bool) {
	v, ok := e[key]
	if ok {
		delete(e, key)
	}
	return v, ok
}

// Clone returns a shallow copy of e.
func (e Env) Clone() Env {
	if e == nil {
		return nil
	}
	cloned := make(Env, len(e))
	for k, v := range e {
		cloned[k] = v
	}
	return cloned
}
