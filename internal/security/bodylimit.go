package security

import (
	"bytes"
	"errors"
	"io"
	"net/http"
)

// BodyLimit rejects request payloads above Max bytes before handlers run.
// Zero disables the check.
type BodyLimit struct {
	Max int64
}

// Middleware answers 413 for oversized payloads. Accepted bodies are buffered
// so handlers can read them as usual.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength != -1 && r.ContentLength > b.Max {
			http.Error(w, "request entity too large", http.StatusRequestEntityTooLarge)
			return
		}
		// read one byte past the cap to detect bodies that lied about length
		body, err := io.ReadAll(io.LimitReader(r.Body, b.Max+1))
		switch {
		case err != nil && !errors.Is(err, io.EOF):
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		case int64(len(body)) > b.Max:
			http.Error(w, "request entity too large", http.StatusRequestEntityTooLarge)
			return
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
		next.ServeHTTP(w, r)
	})
}
