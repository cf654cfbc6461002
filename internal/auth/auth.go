// Package auth verifies access tokens issued by the external auth
// collaborator. Token issuance, refresh, and account management live
// outside this process; the messaging subsystem only checks that a
// presented token is authentic, unexpired, and carries a known role.
package auth

import (
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aulalibre/go-aula-backend/internal/domain"
)

var (
	// ErrInvalidToken is returned for tokens that are missing, malformed,
	// wrongly signed, or carry unusable claims.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned for authentic tokens past their expiry.
	ErrExpiredToken = errors.New("token expired")
)

// Identity is the authenticated principal extracted from a token.
type Identity struct {
	UserID int64
	Role   domain.Role
}

// claims is the expected JWT payload: standard registered claims plus the
// role issued by the auth collaborator. The subject is the numeric user id.
type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 tokens against the shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a Verifier for the given shared HS256 secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// VerifyToken parses and validates token and returns the embedded
// identity. Expired tokens map to ErrExpiredToken; every other failure
// (bad signature, wrong algorithm, malformed subject or role) maps to
// ErrInvalidToken.
func (v *Verifier) VerifyToken(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, ErrInvalidToken
	}
	if !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	uid, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || uid <= 0 {
		return Identity{}, ErrInvalidToken
	}
	role, err := domain.ParseRole(c.Role)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: uid, Role: role}, nil
}
