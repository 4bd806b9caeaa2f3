package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"inkwiki/config"
	"inkwiki/pkg/logger"
)

type contextKey string

// UserKey carries the authenticated username through the request context.
const UserKey contextKey = "user"

// Auth gates every route behind HTTP Basic credentials, with an HS256
// bearer-token alternative for scripted clients that cannot prompt. With
// nothing configured the server runs open.
func Auth(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Username == "" && cfg.TokenSecret == "" {
				next.ServeHTTP(w, r.WithContext(withUser(r.Context(), "anonymous")))
				return
			}

			if user, pass, ok := r.BasicAuth(); ok && cfg.Username != "" {
				userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.Username)) == 1
				passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(cfg.Password)) == 1
				if userOK && passOK {
					next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
					return
				}
			}

			if cfg.TokenSecret != "" {
				if user, ok := verifyToken(r, cfg.TokenSecret); ok {
					next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
					return
				}
			}

			logger.Sugar.Warnf("Unauthorized access attempt on %s", r.URL.Path)
			w.Header().Set("WWW-Authenticate", `Basic realm="Wiki Server"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
}

func withUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// verifyToken accepts an HS256 token from the Authorization header or, for
// WebSocket clients that cannot set headers, a token query parameter.
func verifyToken(r *http.Request, secret string) (string, bool) {
	tokenString := r.URL.Query().Get("token")
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		tokenString = strings.TrimPrefix(auth, "Bearer ")
	}
	if tokenString == "" {
		return "", false
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	user, _ := claims["sub"].(string)
	if user == "" {
		user = "token"
	}
	return user, true
}
