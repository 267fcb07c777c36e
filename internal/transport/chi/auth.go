package chi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// apiKeyHeader is accepted for clients that cannot set Authorization.
const apiKeyHeader = "X-API-Key"

// publicPaths stay reachable for probes and scrapers when auth is on.
var publicPaths = map[string]bool{
	"/api/health": true,
	"/metrics":    true,
}

var (
	errNoCredentials = errors.New("missing api key: use Authorization: Bearer <key> or " + apiKeyHeader)
	errNotBearer     = errors.New("authorization header must use Bearer scheme")
	errBadKey        = errors.New("invalid api key")
)

// BearerAuthMiddleware checks the caller's key against apiKeys. Blank keys are
// ignored; with no keys left auth is off.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if err := authorize(keys, r); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="nlquery"`)
				writeError(w, http.StatusUnauthorized, codeUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authorize(keys [][]byte, r *http.Request) error {
	token, err := credentials(r)
	if err != nil {
		return err
	}
	if !knownKey(keys, []byte(token)) {
		return errBadKey
	}
	return nil
}

// credentials prefers Authorization over X-API-Key when both are sent.
func credentials(r *http.Request) (string, error) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", errNotBearer
		}
		return token, nil
	}
	if key := r.Header.Get(apiKeyHeader); key != "" {
		return key, nil
	}
	return "", errNoCredentials
}

// knownKey compares against every key so timing does not reveal which one matched.
func knownKey(keys [][]byte, token []byte) bool {
	match := 0
	for _, k := range keys {
		match |= subtle.ConstantTimeCompare(k, token)
	}
	return match == 1
}
