package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/fleetclock/fleetclock/internal/api/models"
)

// principalKey is the context key for the authenticated username.
type principalKey struct{}

// BasicAuthConfig holds the single set of credentials accepted by BasicAuth.
type BasicAuthConfig struct {
	Username string
	Realm    string

	// PasswordHash is a bcrypt hash of the password.
	PasswordHash string
}

// BasicAuth creates middleware that checks HTTP Basic credentials against a
// username and bcrypt password hash.
func BasicAuth(cfg BasicAuthConfig) func(http.Handler) http.Handler {
	realm := cfg.Realm
	if realm == "" {
		realm = "fleetclock"
	}
	challenge := `Basic realm="` + realm + `", charset="UTF-8"`
	hash := []byte(cfg.PasswordHash)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", challenge)
				writeUnauthorized(w, r, "missing basic credentials")
				return
			}

			userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(cfg.Username)) == 1
			// Always run bcrypt so a wrong username costs as much as a wrong password.
			passErr := bcrypt.CompareHashAndPassword(hash, []byte(password))
			if !userMatch || passErr != nil {
				w.Header().Set("WWW-Authenticate", challenge)
				writeUnauthorized(w, r, "invalid credentials")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey{}, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeUnauthorized writes a 401 Unauthorized response.
// This is implemented directly here to avoid import cycle with response package.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	problem := models.NewUnauthorized(GetRequestID(r.Context()), detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetPrincipal returns the authenticated username, or "" when the request
// did not pass through BasicAuth.
func GetPrincipal(ctx context.Context) string {
	if name, ok := ctx.Value(principalKey{}).(string); ok {
		return name
	}
	return ""
}
