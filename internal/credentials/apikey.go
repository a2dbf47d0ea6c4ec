package credentials

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var platformRoles = map[string]bool{
	"anon":          true,
	"authenticated": true,
	"service_role":  true,
}

// ValidateAPIKey checks that a hosted-platform key is a well-formed JWT with
// a known role claim that has not expired. The signature is not verified;
// only the platform holds the signing secret.
func ValidateAPIKey(key string) Result {
	if key == "" {
		return invalid("API key is required")
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(key, claims); err != nil {
		return invalid(fmt.Sprintf("API key is not a valid token: %v", err))
	}
	role, _ := claims["role"].(string)
	if !platformRoles[role] {
		return invalid("API key has no recognised role claim")
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && exp.Before(time.Now()) {
		return invalid("API key has expired")
	}
	return valid(fmt.Sprintf("Valid API key (role %s)", role))
}

// APIKeyRole returns the role claim of a hosted-platform key, or "".
func APIKeyRole(key string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(key, claims); err != nil {
		return ""
	}
	role, _ := claims["role"].(string)
	return role
}
