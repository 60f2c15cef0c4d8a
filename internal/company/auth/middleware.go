package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

const companiesPath = "/api/companies"

// Middleware requires a valid bearer token on the mutating company routes.
// Reads stay public.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isWrite(r) {
			next.ServeHTTP(w, r)
			return
		}

		ctx, err := v.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			msg := err.Error()
			if errors.Is(err, ErrInvalidToken) {
				msg = "Invalid token"
			}
			unauthorized(w, msg)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}{false, msg})
}

func isWrite(r *http.Request) bool {
	path := strings.TrimRight(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPost:
		return path == companiesPath
	case http.MethodPut, http.MethodDelete:
		return strings.HasPrefix(path, companiesPath+"/")
	default:
		return false
	}
}
