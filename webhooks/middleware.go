package webhooks

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// MaxCallbackBodyBytes bounds the callback body buffered for verification.
const MaxCallbackBodyBytes = 1 << 20

// Middleware verifies the CB-SIGNATURE header of every request against the
// raw body before handing it to next. The body is restored for next.
func Middleware(verifier *CallbackVerifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if verifier == nil || next == nil {
			http.Error(w, "callback verification is not configured", http.StatusInternalServerError)
			return
		}
		body, err := readCallbackBody(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		if !verifier.Verify(body, r.Header.Get(SignatureHeader)) {
			http.Error(w, "invalid callback signature", http.StatusUnauthorized)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
		next.ServeHTTP(w, r)
	})
}

func readCallbackBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte{}, nil
	}
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxCallbackBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("webhooks: read callback body: %w", err)
	}
	if len(body) > MaxCallbackBodyBytes {
		return nil, fmt.Errorf("webhooks: callback body exceeds %d bytes", MaxCallbackBodyBytes)
	}
	return body, nil
}
