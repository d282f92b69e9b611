package admin

import (
	"crypto/subtle"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// idPattern bounds every path parameter accepted by the admin surface,
// rejecting path traversal and anything that isn't a plain identifier
// before it reaches a registry lookup.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func validID(s string) bool {
	return idPattern.MatchString(s)
}

// tokensEqual compares two tokens in constant time to avoid leaking
// timing information about how much of the token matched.
func tokensEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requireAdminToken enforces the HTTP admin auth matrix:
//
//	key set + valid bearer    → allow
//	key set + wrong/missing   → 401
//	key unset + debugOpen     → allow (local dev convenience)
//	key unset + !debugOpen    → 403 (locked down by default)
func requireAdminToken(apiKey string, debugOpen bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if apiKey == "" {
			if debugOpen {
				return c.Next()
			}
			return fiber.NewError(fiber.StatusForbidden, "admin API key not configured")
		}

		auth := c.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || !tokensEqual(token, apiKey) {
			c.Set("WWW-Authenticate", "Bearer")
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or missing admin token")
		}
		return c.Next()
	}
}

// requireAdminWS enforces the same matrix for the WS debug stream, where a
// browser client can't send an Authorization header and instead supplies
// ?token=. Close codes follow the admin surface's WS convention: 4003 for
// an unconfigured key in production, 4001 for a bad token.
func requireAdminWS(apiKey string, debugOpen bool, token string) (ok bool, closeCode int) {
	if apiKey == "" {
		if debugOpen {
			return true, 0
		}
		return false, 4003
	}
	if !tokensEqual(token, apiKey) {
		return false, 4001
	}
	return true, 0
}
