package internal

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGzipMiddleware(t *testing.T) {
	const page = "<p>No comments yet. Be the first!</p>"

	h := GzipMiddleware(gzip.BestSpeed, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "37")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, page)
	}))

	for _, tt := range []struct {
		name           string
		acceptEncoding string
		wantGzip       bool
	}{
		{name: "no header"},
		{name: "gzip", acceptEncoding: "gzip", wantGzip: true},
		{name: "browser list", acceptEncoding: "gzip, deflate, br, zstd", wantGzip: true},
		{name: "weighted", acceptEncoding: "br;q=1.0, gzip;q=0.8", wantGzip: true},
		{name: "refused", acceptEncoding: "gzip;q=0, br"},
		{name: "other codings only", acceptEncoding: "br, zstd"},
		{name: "x-gzip is not gzip", acceptEncoding: "x-gzip"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/threads/16", nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			resp := rec.Result()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("wanted status %d, got: %d", http.StatusBadRequest, resp.StatusCode)
			}

			if got := resp.Header.Get("Vary"); got != "Accept-Encoding" {
				t.Errorf("wanted Vary: Accept-Encoding, got: %q", got)
			}

			var body io.Reader = resp.Body
			if tt.wantGzip {
				if got := resp.Header.Get("Content-Encoding"); got != "gzip" {
					t.Fatalf("wanted gzip content encoding, got: %q", got)
				}
				if got := resp.Header.Get("Content-Length"); got != "" {
					t.Errorf("compressed response kept Content-Length %s", got)
				}

				gz, err := gzip.NewReader(resp.Body)
				if err != nil {
					t.Fatal(err)
				}
				body = gz
			} else if got := resp.Header.Get("Content-Encoding"); got != "" {
				t.Errorf("wanted no content encoding, got: %q", got)
			}

			got, err := io.ReadAll(body)
			if err != nil {
				t.Fatal(err)
			}

			if string(got) != page {
				t.Logf("want: %q", page)
				t.Logf("got:  %q", got)
				t.Error("wrong body")
			}
		})
	}
}
