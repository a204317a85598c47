package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// APIKeyResolver maps an API key to a tenant id.
type APIKeyResolver func(ctx context.Context, apiKey string) (string, error)

// TenantAuth authenticates requests by API key, from the Authorization
// bearer token or the X-API-Key header, and stores the tenant id in the
// request context.
func TenantAuth(resolve APIKeyResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := apiKeyFrom(r)
			if key == "" {
				unauthorized(w, "missing api key")
				return
			}
			tenantID, err := resolve(r.Context(), key)
			if err != nil || tenantID == "" {
				unauthorized(w, "invalid api key")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithTenantID(r.Context(), tenantID)))
		})
	}
}

func apiKeyFrom(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
