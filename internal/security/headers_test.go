package security_test

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvitka-ua/backend-kvitka/internal/security"
)

func runHeaders(h security.Headers, tlsConn bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if tlsConn {
		req.TLS = &tls.ConnectionState{}
	}
	rr := httptest.NewRecorder()
	h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, req)
	return rr
}

func TestHeadersApplied(t *testing.T) {
	rr := runHeaders(security.Headers{Enable: true}, false)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	require.Equal(t, "no-referrer", rr.Header().Get("Referrer-Policy"))
	require.Empty(t, rr.Header().Get("Strict-Transport-Security"))
}

func TestHeadersDisabled(t *testing.T) {
	rr := runHeaders(security.Headers{Enable: false}, false)
	require.Empty(t, rr.Header().Get("X-Content-Type-Options"))
}

func TestHSTSOnlyOverTLS(t *testing.T) {
	h := security.Headers{Enable: true, EnableHSTS: true, HSTSMaxAge: 600}
	require.Empty(t, runHeaders(h, false).Header().Get("Strict-Transport-Security"))
	require.Equal(t, "max-age=600", runHeaders(h, true).Header().Get("Strict-Transport-Security"))
}
