package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized covers missing, malformed, badly signed, and expired
// tokens. Verification fails closed: callers never learn which check failed.
var ErrUnauthorized = errors.New("invalid or expired token")

// ErrForbidden means the token verified but the role or identity is not
// allowed to perform the requested action.
var ErrForbidden = errors.New("forbidden")

// Claims represents the verified JWT payload carried by every
// authenticated request. Role is already validated into the closed set.
type Claims struct {
	Subject string
	Role    Role
}

type wireClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issue signs an access token embedding the student number and role.
func Issue(subject string, role Role, issuer, key string, ttl time.Duration) (string, time.Time, error) {
	exp := time.Now().Add(ttl)
	claims := wireClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// Parse validates signature, expiry, and issuer, and normalizes the role
// claim into the closed Role set. Every failure maps to ErrUnauthorized.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &wireClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, ErrUnauthorized
	}
	raw, ok := parsed.Claims.(*wireClaims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrUnauthorized
	}
	if issuer != "" && raw.Issuer != issuer {
		return Claims{}, ErrUnauthorized
	}
	role, err := ParseRole(raw.Role)
	if err != nil {
		return Claims{}, ErrUnauthorized
	}
	return Claims{Subject: raw.Subject, Role: role}, nil
}

// StripBearer removes an optional "Bearer " prefix from an Authorization
// header value. Tokens are opaque bearer credentials; the prefix is the
// only transport framing the core knows about.
func StripBearer(header string) string {
	h := strings.TrimSpace(header)
	if len(h) >= 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return h
}
