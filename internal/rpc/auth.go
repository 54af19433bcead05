package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// requireToken wraps next with Bearer token authentication. Failures get a
// JSON-RPC 2.0 error body rather than a plain HTTP error. An empty secret
// rejects every request.
func requireToken(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !validToken(secret, r.Header.Get("Authorization")) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0",
				"error": map[string]any{
					"code":    -32600,
					"message": "Unauthorized",
				},
				"id": nil,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func validToken(secret, authHeader string) bool {
	if secret == "" {
		return false
	}
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
