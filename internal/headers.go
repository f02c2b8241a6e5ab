package internal

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gaissmai/bart"
	"github.com/sebest/xff"
)

// TrustedProxies is the set of networks whose X-Forwarded-For headers are
// believed. The zero value trusts nobody.
type TrustedProxies struct {
	table *bart.Table[struct{}]
}

// NewTrustedProxies builds a TrustedProxies from already validated prefixes.
func NewTrustedProxies(prefixes []netip.Prefix) *TrustedProxies {
	result := &TrustedProxies{table: &bart.Table[struct{}]{}}

	for _, pfx := range prefixes {
		result.table.Insert(pfx.Masked(), struct{}{})
	}

	return result
}

// Trusted reports whether addr belongs to a trusted proxy.
func (tp *TrustedProxies) Trusted(addr netip.Addr) bool {
	if tp == nil || tp.table == nil {
		return false
	}

	_, ok := tp.table.Lookup(addr.Unmap())
	return ok
}

// ClientFromXFF walks an X-Forwarded-For value from the nearest hop outwards
// and returns the first address that is not a trusted proxy. When every hop
// is trusted, it falls back to the first public address in the list.
func (tp *TrustedProxies) ClientFromXFF(header string) string {
	hops := strings.Split(header, ",")

	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}

		if !tp.Trusted(addr) {
			return addr.Unmap().String()
		}
	}

	return xff.Parse(header)
}

// RemoteXRealIP sets the X-Real-Ip header to the request's real IP if
// the setting is enabled by the user.
func RemoteXRealIP(useRemoteAddress bool, bindNetwork string, next http.Handler) http.Handler {
	if !useRemoteAddress {
		slog.Debug("skipping middleware, useRemoteAddress is empty")
		return next
	}

	if bindNetwork == "unix" {
		// For local sockets there is no real remote address but the localhost
		// address should be sensible.
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Set("X-Real-Ip", "127.0.0.1")
			next.ServeHTTP(w, r)
		})
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			panic(err) // this should never happen
		}
		r.Header.Set("X-Real-Ip", host)
		next.ServeHTTP(w, r)
	})
}

// XForwardedForToXRealIP sets the X-Real-Ip header based on the contents
// of the X-Forwarded-For header, but only for requests that arrive from a
// trusted proxy. Everyone else, and trusted proxies that forward no usable
// X-Forwarded-For, get their peer address whatever headers they sent.
func XForwardedForToXRealIP(trusted *TrustedProxies, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		peer, ok := peerAddr(r)

		var client string
		if !ok || trusted.Trusted(peer) {
			if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
				client = trusted.ClientFromXFF(fwd)
			}
		}

		switch {
		case client != "":
			r.Header.Set("X-Real-Ip", client)
		case ok:
			r.Header.Set("X-Real-Ip", peer.Unmap().String())
		}

		next.ServeHTTP(w, r)
	})
}

// peerAddr returns the address of the directly connected peer. Unix socket
// peers have none.
func peerAddr(r *http.Request) (netip.Addr, bool) {
	ap, err := netip.ParseAddrPort(r.RemoteAddr)
	if err != nil {
		return netip.Addr{}, false
	}
	return ap.Addr(), true
}

// NoStoreCache sets the Cache-Control header to no-store for the response.
// Pages carrying a submission token must never be served from a cache.
func NoStoreCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
