package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Principal is the verified identity behind a request, shared verbatim by
// both REST and gRPC handlers so role checks never diverge across
// transports (spec.md §4.7).
type Principal struct {
	Subject string
	Roles   []string
}

// claims is the compact token payload: {kid, sub, roles, exp}.
type claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// Malformed means the token string itself could not be parsed as a JWT.
type Malformed struct{ Cause error }

func (e *Malformed) Error() string { return fmt.Sprintf("auth: malformed token: %v", e.Cause) }
func (e *Malformed) Unwrap() error { return e.Cause }

// InvalidSignature means the token parsed but its signature did not
// verify against the keystore entry for its kid.
type InvalidSignature struct{}

func (e *InvalidSignature) Error() string { return "auth: invalid token signature" }

// UnknownKey means the token's kid has no keystore entry (never issued,
// or retired by rotation).
type UnknownKey struct{ KeyID string }

func (e *UnknownKey) Error() string { return fmt.Sprintf("auth: unknown key id %q", e.KeyID) }

// Expired means the token's exp claim has passed.
type Expired struct{ At time.Time }

func (e *Expired) Error() string { return fmt.Sprintf("auth: token expired at %s", e.At) }

// RoleDenied means the token and keystore entry verified, but
// required_role isn't in their role intersection.
type RoleDenied struct{ Required string }

func (e *RoleDenied) Error() string { return fmt.Sprintf("auth: role %q denied", e.Required) }

// Verify implements spec.md §4.7: parse the token, resolve its kid against
// the keystore, check the signature, expiry, and the required_role
// assertion (required_role ∈ token.roles ∩ keystore[kid].roles).
func Verify(ks *Keystore, tokenString, requiredRole string) (Principal, error) {
	var entry KeyEntry
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		e, ok := ks.Lookup(kid)
		if !ok {
			return nil, &UnknownKey{KeyID: kid}
		}
		entry = e
		return []byte(e.Secret), nil
	})
	if err != nil {
		if unknown, ok := asUnknownKey(err); ok {
			return Principal{}, unknown
		}
		if ve, ok := err.(*jwt.ValidationError); ok && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return Principal{}, &Expired{}
		}
		if ve, ok := err.(*jwt.ValidationError); ok && ve.Errors&jwt.ValidationErrorSignatureInvalid != 0 {
			return Principal{}, &InvalidSignature{}
		}
		return Principal{}, &Malformed{Cause: err}
	}
	if !token.Valid {
		return Principal{}, &InvalidSignature{}
	}

	c := token.Claims.(*claims)
	if entry.ExpiresAt != nil && entry.ExpiresAt.Before(time.Now()) {
		return Principal{}, &Expired{At: *entry.ExpiresAt}
	}

	allowed := intersect(c.Roles, entry.Roles)
	if requiredRole != "" && !contains(allowed, requiredRole) {
		return Principal{}, &RoleDenied{Required: requiredRole}
	}
	return Principal{Subject: c.Subject, Roles: allowed}, nil
}

func asUnknownKey(err error) (*UnknownKey, bool) {
	for e := err; e != nil; {
		if uk, ok := e.(*UnknownKey); ok {
			return uk, true
		}
		unwrapper, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = unwrapper.Unwrap()
	}
	return nil, false
}

func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(a))
	for _, s := range a {
		if _, ok := set[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Sign issues a compact token for entry, used by tests and the
// service-account provisioning path; production callers mint tokens out
// of band and only ever call Verify.
func Sign(entry KeyEntry, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   entry.Principal,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Roles: roles,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	token.Header["kid"] = entry.KeyID
	return token.SignedString([]byte(entry.Secret))
}
