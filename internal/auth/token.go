// Package auth provides bearer-token verification and the per-request
// identity it produces.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failures. They are distinct so logs and tests can tell
// them apart, but callers must present every one of them to clients as
// the same generic 401.
var (
	ErrMissingCredential    = errors.New("authorization header is missing")
	ErrMalformedCredential  = errors.New("authorization header is malformed")
	ErrInvalidCredential    = errors.New("token signature is invalid")
	ErrExpiredCredential    = errors.New("token is expired")
	ErrIncompleteCredential = errors.New("token is missing required claims")
)

// Identity is a validated caller identity, built fresh for each request
// from the token's claims. It is immutable for the request's lifetime.
type Identity struct {
	SubjectID string
	Email     string
}

// Claims is the expected JWT payload. Tokens are minted by an external
// identity provider sharing the HMAC secret with this service.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// hmacMethods restricts the algorithms a deployment may configure.
// Asymmetric families are not supported; the shared-secret contract
// with the identity provider is HMAC only.
var hmacMethods = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
}

// Verifier validates bearer tokens against a pre-shared secret.
// Verification is a pure function of the header value, the secret and
// the current clock; it has no side effects and keeps no state.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier builds a Verifier for the given secret and signing
// algorithm. Both must be valid up front: a service that cannot verify
// credentials must not start.
func NewVerifier(secret, algorithm string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("auth: signing secret must not be empty")
	}
	if !hmacMethods[algorithm] {
		return nil, fmt.Errorf("auth: unsupported signing algorithm %q", algorithm)
	}

	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{algorithm}),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

// Verify decodes and validates the literal Authorization header value
// and returns the caller's identity. rawHeader may be empty when the
// transport carried no header at all.
func (v *Verifier) Verify(rawHeader string) (*Identity, error) {
	if rawHeader == "" {
		return nil, ErrMissingCredential
	}

	parts := strings.Fields(rawHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, ErrMalformedCredential
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredCredential
		}
		return nil, ErrInvalidCredential
	}
	if !token.Valid {
		return nil, ErrInvalidCredential
	}

	if claims.Subject == "" || claims.Email == "" {
		return nil, ErrIncompleteCredential
	}

	return &Identity{
		SubjectID: claims.Subject,
		Email:     claims.Email,
	}, nil
}

// FailureReason maps a verification error to a short label suitable
// for structured logs. The label never reaches clients.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrMalformedCredential):
		return "malformed_credential"
	case errors.Is(err, ErrExpiredCredential):
		return "expired_credential"
	case errors.Is(err, ErrIncompleteCredential):
		return "incomplete_credential"
	case errors.Is(err, ErrInvalidCredential):
		return "invalid_credential"
	default:
		return "unknown"
	}
}
