// Package auth verifies connect-time bearer tokens for the tracking hub.
//
// Token issuance belongs to the REST layer; this package only checks an HMAC
// signature against the shared secret and extracts the subject identity.
// Callers treat any verification error as "connect anonymously" - real-time
// tracking is best-effort and never rejects a handshake over auth.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sivakumar999/village-eats/errors"
)

// Role is the marketplace role carried in the token.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
	RoleAdmin    Role = "admin"
)

// Identity is the authenticated peer attached to a connection. Nil identity
// means anonymous.
type Identity struct {
	SubjectID string
	Role      Role
}

// Verifier validates HS256 tokens signed with the shared marketplace secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for the given shared secret.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

// Verify parses and validates the token, returning the embedded identity.
// The claim names (userId, role) match the tokens the REST layer issues.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, errors.WrapInvalid(errors.ErrTokenInvalid, "Verifier", "Verify", "empty token")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, errors.WrapInvalid(err, "Verifier", "Verify", "parse token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.WrapInvalid(errors.ErrTokenInvalid, "Verifier", "Verify", "validate claims")
	}

	subjectID, ok := claims["userId"].(string)
	if !ok || subjectID == "" {
		return nil, errors.WrapInvalid(errors.ErrTokenInvalid, "Verifier", "Verify", "extract userId claim")
	}

	role, _ := claims["role"].(string)

	return &Identity{SubjectID: subjectID, Role: Role(role)}, nil
}
