package metadata

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"eventreg/pkg/requestcontext"
)

// ClientMetadata extracts client IP address and User-Agent from the request
// and adds them to the context for use by handlers and services.
// This middleware should be applied early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest extracts the real client IP from the request, handling proxies and load balancers.
// Returns an empty string when nothing usable is present. The forwarding
// headers are taken at face value; use Proxies.ClientIP where the address
// must not be client-controlled.
func ClientIPFromRequest(r *http.Request) string {
	if ip := forwardedIP(r); ip != "" {
		return ip
	}
	return PeerIP(r)
}

// PeerIP is the address of the directly connected peer.
func PeerIP(r *http.Request) string {
	if r.RemoteAddr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func forwardedIP(r *http.Request) string {
	// X-Forwarded-For is "client, proxy1, proxy2"; the first entry is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Real-IP"))
}

// Proxies lists the peers whose forwarding headers are believed.
type Proxies []netip.Prefix

// ParseProxies accepts IP addresses and CIDR ranges.
func ParseProxies(entries []string) (Proxies, error) {
	out := make(Proxies, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Trusts reports whether ip falls inside one of the ranges.
func (p Proxies) Trusts(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the forwarded client address when the peer is a trusted
// proxy and the peer address otherwise.
func (p Proxies) ClientIP(r *http.Request) string {
	peer := PeerIP(r)
	if !p.Trusts(peer) {
		return peer
	}
	if ip := forwardedIP(r); ip != "" {
		return ip
	}
	return peer
}
