package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wasla-delivery/orderchat/internal/auth"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerify(t *testing.T) {
	verifier := auth.NewVerifier("test-secret")

	token := signToken(t, "test-secret", jwt.MapClaims{
		"user_id":   "customer-1",
		"user_name": "Sara",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	identity, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "customer-1", identity.UserID)
	assert.Equal(t, "Sara", identity.Name)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	verifier := auth.NewVerifier("test-secret")

	token := signToken(t, "other-secret", jwt.MapClaims{
		"user_id": "customer-1",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	_, err := verifier.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	verifier := auth.NewVerifier("test-secret")

	token := signToken(t, "test-secret", jwt.MapClaims{
		"user_id": "customer-1",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})

	_, err := verifier.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsMissingUserID(t *testing.T) {
	verifier := auth.NewVerifier("test-secret")

	token := signToken(t, "test-secret", jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := verifier.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	verifier := auth.NewVerifier("test-secret")

	_, err := verifier.Verify("not-a-token")
	assert.Error(t, err)
}

func TestIdentityContext(t *testing.T) {
	id := &auth.Identity{UserID: "u1"}
	ctx := auth.WithIdentity(context.Background(), id)

	got, ok := auth.IdentityFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = auth.IdentityFrom(context.Background())
	assert.False(t, ok)
}
