// Package utils holds small helpers shared by the CLI and tests.
package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// AccessToken is a signed HS256 JWT and its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// NewAccessToken signs a token in the shape the identity provider issues:
// sub is the requester id and role one of student, faculty or admin.  It
// backs the `token` command for local development.
func NewAccessToken(secret, subject, role string, ttl time.Duration, now time.Time) (AccessToken, error) {
	if subject == "" {
		return AccessToken{}, errors.New("subject is required")
	}
	now = now.UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, errors.Wrap(err, "sign token")
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
