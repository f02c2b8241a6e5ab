package internal

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestXForwardedForToXRealIP(t *testing.T) {
	trusted := NewTrustedProxies([]netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("fd00::/8"),
	})

	for _, tt := range []struct {
		name       string
		remoteAddr string
		xff        string
		xRealIP    string
		want       string
	}{
		{
			name:       "direct client",
			remoteAddr: "1.2.3.4:5678",
			want:       "1.2.3.4",
		},
		{
			name:       "direct client spoofing headers",
			remoteAddr: "1.2.3.4:5678",
			xff:        "8.8.8.8",
			xRealIP:    "8.8.4.4",
			want:       "1.2.3.4",
		},
		{
			name:       "behind one trusted proxy",
			remoteAddr: "10.0.0.2:5678",
			xff:        "1.2.3.4",
			want:       "1.2.3.4",
		},
		{
			name:       "client-supplied hops are skipped",
			remoteAddr: "10.0.0.2:5678",
			xff:        "8.8.8.8, 1.2.3.4, 10.0.0.3",
			want:       "1.2.3.4",
		},
		{
			name:       "ipv6 proxy",
			remoteAddr: "[fd00::1]:5678",
			xff:        "2001:db8::1",
			want:       "2001:db8::1",
		},
		{
			name:       "trusted proxy without headers",
			remoteAddr: "10.0.0.2:5678",
			want:       "10.0.0.2",
		},
		{
			name:       "trusted proxy passing X-Real-Ip without X-Forwarded-For",
			remoteAddr: "10.0.0.2:5678",
			xRealIP:    "1.2.3.4",
			want:       "10.0.0.2",
		},
		{
			name:       "trusted proxy with unparseable X-Forwarded-For",
			remoteAddr: "10.0.0.2:5678",
			xff:        "unknown",
			xRealIP:    "1.2.3.4",
			want:       "10.0.0.2",
		},
		{
			name:       "unix socket keeps X-Real-Ip",
			remoteAddr: "@",
			xRealIP:    "1.2.3.4",
			want:       "1.2.3.4",
		},
		{
			name:       "unix socket",
			remoteAddr: "@",
			xff:        "1.2.3.4",
			want:       "1.2.3.4",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := XForwardedForToXRealIP(trusted, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("X-Real-Ip")
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-Ip", tt.xRealIP)
			}

			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Logf("want: %q", tt.want)
				t.Logf("got:  %q", got)
				t.Error("wrong X-Real-Ip")
			}
		})
	}
}

func TestTrustedProxiesZeroValue(t *testing.T) {
	var tp *TrustedProxies
	if tp.Trusted(netip.MustParseAddr("10.0.0.1")) {
		t.Error("nil TrustedProxies trusts an address")
	}

	if (&TrustedProxies{}).Trusted(netip.MustParseAddr("10.0.0.1")) {
		t.Error("zero TrustedProxies trusts an address")
	}
}

func TestRemoteXRealIP(t *testing.T) {
	for _, tt := range []struct {
		name        string
		useRemote   bool
		bindNetwork string
		want        string
	}{
		{name: "disabled", useRemote: false, bindNetwork: "tcp", want: "9.9.9.9"},
		{name: "tcp", useRemote: true, bindNetwork: "tcp", want: "1.2.3.4"},
		{name: "unix", useRemote: true, bindNetwork: "unix", want: "127.0.0.1"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := RemoteXRealIP(tt.useRemote, tt.bindNetwork, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("X-Real-Ip")
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "1.2.3.4:5678"
			req.Header.Set("X-Real-Ip", "9.9.9.9")
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("wanted %q, got: %q", tt.want, got)
			}
		})
	}
}

func TestNoStoreCache(t *testing.T) {
	rec := httptest.NewRecorder()
	NoStoreCache(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("wanted Cache-Control no-store, got: %q", got)
	}
}
