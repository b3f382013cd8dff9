package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	id := uuid.New()
	token, err := GenerateToken(id, "ada@example.com", "s3cret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, Issuer, claims.Issuer)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken(uuid.New(), "ada@example.com", "s3cret", time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, "other")
	assert.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	token, err := GenerateToken(uuid.New(), "ada@example.com", "s3cret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, "s3cret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseTokenRejectsNone(t *testing.T) {
	claims := Claims{
		UserID: uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseToken(unsigned, "s3cret")
	assert.Error(t, err)
}

func TestGenerateTokenNeedsSecret(t *testing.T) {
	_, err := GenerateToken(uuid.New(), "a@b.c", "", time.Hour)
	assert.Error(t, err)
}
