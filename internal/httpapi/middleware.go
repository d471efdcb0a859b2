package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/healingherb/shifa/internal/auth"
)

type contextKey int

const claimsKey contextKey = iota

// requireAuth rejects requests without a valid bearer access token and
// stores the verified claims in the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			respondError(w, http.StatusUnauthorized, "التوكن مطلوب")
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(w, http.StatusUnauthorized, "صيغة التوكن غير صحيحة")
			return
		}
		claims, err := s.tokens.VerifyAccess(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFrom(r *http.Request) auth.Claims {
	claims, _ := r.Context().Value(claimsKey).(auth.Claims)
	return claims
}
