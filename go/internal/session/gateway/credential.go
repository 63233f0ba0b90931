package gateway

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrCredentialExpired = errors.New("credential expired")

// Claims is what the client reads from its own bearer credential. The
// signature is not checked here; the server does that.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// inspectCredential reads claims from a JWT credential. Opaque (non-JWT)
// credentials pass through with empty claims.
func inspectCredential(credential string, now time.Time) (Claims, error) {
	if credential == "" || strings.Count(credential, ".") != 2 {
		return Claims{}, nil
	}

	token, _, err := jwt.NewParser().ParseUnverified(credential, jwt.MapClaims{})
	if err != nil {
		return Claims{}, nil
	}

	var c Claims
	if sub, err := token.Claims.GetSubject(); err == nil {
		c.Subject = sub
	}
	exp, err := token.Claims.GetExpirationTime()
	if err == nil && exp != nil {
		c.ExpiresAt = exp.Time
		if !now.Before(exp.Time) {
			return c, fmt.Errorf("%w at %s", ErrCredentialExpired, exp.Time.Format(time.RFC3339))
		}
	}
	return c, nil
}

// CredentialSubject returns the JWT subject of credential, or "".
func CredentialSubject(credential string) string {
	c, _ := inspectCredential(credential, time.Time{})
	return c.Subject
}
