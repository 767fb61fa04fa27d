package unxf

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Info is what the HTTP middleware learned about a request. It is stored in
// the request context for downstream handlers.
type Info struct {
	// ClientAddr is the address downstream code should attribute the request
	// to: the resolved client on a trusted chain, the observed peer otherwise.
	ClientAddr netip.Addr
	Status     Status
	Secure     bool

	// Raw header values as received, for logging only. They may contain
	// arbitrary bytes and must be escaped before being written anywhere.
	AuditFor    string
	AuditRealIP string
	AuditProto  string
}

type infoContextKey struct{}

// InfoFromContext returns the Info stored by Filter.Middleware.
func InfoFromContext(ctx context.Context) (Info, bool) {
	if ctx == nil {
		return Info{}, false
	}
	info, ok := ctx.Value(infoContextKey{}).(Info)
	return info, ok
}

// InfoFromRequest returns the Info stored by Filter.Middleware for r.
func InfoFromRequest(r *http.Request) (Info, bool) {
	if r == nil {
		return Info{}, false
	}
	return InfoFromContext(r.Context())
}

// EnvFromRequest builds the Env for r. REMOTE_ADDR holds the peer host
// without port. Repeated header lines are joined with ", " as they would be on
// a single line, so a line appended by the nearest proxy is walked first.
func EnvFromRequest(r *http.Request) Env {
	env := Env{}
	if r == nil {
		return env
	}

	env[KeyRemoteAddr] = remoteHost(r.RemoteAddr)

	if values := r.Header.Values(HeaderForwardedFor); len(values) > 0 {
		env[KeyForwardedFor] = strings.Join(values, ", ")
	}
	if values := r.Header.Values(HeaderRealIP); len(values) > 0 {
		env[KeyRealIP] = strings.Join(values, ", ")
	}
	if values := r.Header.Values(HeaderForwarded); len(values) > 0 {
		env[KeyForwarded] = strings.Join(values, ", ")
	}
	if values := r.Header.Values(HeaderForwardedProto); len(values) > 0 {
		env[KeyForwardedProto] = strings.Join(values, ", ")
	}

	return env
}

func remoteHost(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// Middleware resolves the forwarding chain of every request before calling
// next.
//
// Rejected requests get a 400 response with an empty body. Otherwise next
// receives a copy of the request with the consumed forwarding headers
// removed, RemoteAddr set to the resolved client (peer port kept), URL.Scheme
// set to https when the declared scheme was believed, and Info in its
// context. A repeated X-Forwarded-Proto header is never believed.
func (f *Filter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env := EnvFromRequest(r)
		result := f.resolve(r.Context(), env, len(r.Header.Values(HeaderForwardedProto)) > 1)
		if result.Outcome == Reject {
			writeRejection(w)
			return
		}

		next.ServeHTTP(w, f.applyResult(r, env, result))
	})
}

func writeRejection(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Length", "0")
	h.Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusBadRequest)
}

func (f *Filter) applyResult(r *http.Request, env Env, result Result) *http.Request {
	info := Info{
		ClientAddr:  parseHop(r.RemoteAddr),
		Status:      result.Status,
		Secure:      result.Secure,
		AuditFor:    env[KeyAuditFor],
		AuditRealIP: env[KeyAuditRealIP],
		AuditProto:  env[KeyAuditProto],
	}
	if result.Trusted() {
		info.ClientAddr = result.ClientAddr
	}

	out := r.Clone(context.WithValue(r.Context(), infoContextKey{}, info))
	if result.Status == StatusNoHeaders {
		return out
	}

	out.Header.Del(HeaderForwardedFor)
	out.Header.Del(HeaderRealIP)
	out.Header.Del(HeaderForwardedProto)
	if f.config.acceptForwarded {
		out.Header.Del(HeaderForwarded)
	}

	if result.Trusted() {
		if port := splitPort(r.RemoteAddr); port != "" {
			out.RemoteAddr = net.JoinHostPort(result.ClientAddr.String(), port)
		} else {
			out.RemoteAddr = result.ClientAddr.String()
		}
	}

	if result.Secure && out.URL != nil {
		out.URL.Scheme = SchemeHTTPS
	}

	return out
}
