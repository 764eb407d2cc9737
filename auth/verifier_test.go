package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sivakumar999/village-eats/errors"
)

var testSecret = []byte("village-eats-test-secret")

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestVerify_ValidToken(t *testing.T) {
	v := NewVerifier(testSecret)

	token := signToken(t, testSecret, jwt.MapClaims{
		"userId": "agent-7",
		"role":   "agent",
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	identity, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "agent-7", identity.SubjectID)
	assert.Equal(t, RoleAgent, identity.Role)
}

func TestVerify_WrongSecret(t *testing.T) {
	v := NewVerifier(testSecret)

	token := signToken(t, []byte("some-other-secret"), jwt.MapClaims{
		"userId": "agent-7",
		"role":   "agent",
	})

	identity, err := v.Verify(token)
	require.Error(t, err)
	assert.Nil(t, identity)
	assert.True(t, errors.IsInvalid(err))
}

func TestVerify_ExpiredToken(t *testing.T) {
	v := NewVerifier(testSecret)

	token := signToken(t, testSecret, jwt.MapClaims{
		"userId": "cust-1",
		"role":   "customer",
		"exp":    time.Now().Add(-time.Hour).Unix(),
	})

	identity, err := v.Verify(token)
	require.Error(t, err)
	assert.Nil(t, identity)
}

func TestVerify_MissingUserID(t *testing.T) {
	v := NewVerifier(testSecret)

	token := signToken(t, testSecret, jwt.MapClaims{"role": "customer"})

	identity, err := v.Verify(token)
	require.Error(t, err)
	assert.Nil(t, identity)
}

func TestVerify_EmptyToken(t *testing.T) {
	v := NewVerifier(testSecret)

	identity, err := v.Verify("")
	require.Error(t, err)
	assert.Nil(t, identity)
}

func TestVerify_MissingRoleStillAuthenticates(t *testing.T) {
	v := NewVerifier(testSecret)

	token := signToken(t, testSecret, jwt.MapClaims{"userId": "cust-2"})

	identity, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "cust-2", identity.SubjectID)
	assert.Equal(t, Role(""), identity.Role)
}
