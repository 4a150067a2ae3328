// Package testutil provides HTTP test servers for pipeline tests.
package testutil

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

// NewHTTPServerT starts an httptest server bound to IPv4 (avoids IPv6
// listener issues in sandboxed environments) and skips the test if
// binding fails.
func NewHTTPServerT(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("tcp4 listener unavailable: %v", err)
		return nil
	}

	srv := &httptest.Server{
		Listener: ln,
		Config: &http.Server{
			Handler: handler,
		},
	}
	srv.Start()
	return srv
}

// FileHandler serves `content` as a single downloadable file, with or
// without a Content-Length header.
func FileHandler(content []byte, withLength bool, filename string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if filename != "" {
			w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		}
		if withLength {
			w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		}
		w.WriteHeader(http.StatusOK)
		w.Write(content)
	}
}
