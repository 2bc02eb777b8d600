package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type key string

// SubjectKey holds the authenticated token subject in the request context.
const SubjectKey key = "subject"

// Subject returns the token subject stored by JWTMiddleware, or "".
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(SubjectKey).(string)
	return s
}

// JWTMiddleware requires an HS256 bearer token signed with secret. The token's
// sub claim (or legacy user_id claim) is stored under SubjectKey.
// An empty secret disables the check.
func JWTMiddleware(secret []byte) func(http.Handler) http.Handler {
	if len(secret) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "missing authorization header")
				return
			}
			tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				unauthorized(w, "authorization header must be a bearer token")
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				unauthorized(w, "invalid token")
				return
			}

			sub, _ := claims.GetSubject()
			if sub == "" {
				if id, ok := claims["user_id"].(float64); ok {
					sub = strconv.FormatFloat(id, 'f', -1, 64)
				}
			}
			ctx := context.WithValue(r.Context(), SubjectKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	jsonError(w, msg, http.StatusUnauthorized)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
