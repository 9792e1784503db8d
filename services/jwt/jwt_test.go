package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestGenerateTokenPairRoundTrip(t *testing.T) {
	access, refresh, err := GenerateTokenPair("ada@uni.edu", testSecret, 7)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	claims, err := ValidateAndGetClaims(access, testSecret)
	require.NoError(t, err)
	assert.Equal(t, float64(7), claims["id"])
	assert.Equal(t, "ada@uni.edu", claims["email"])
	assert.Equal(t, "access", claims["type"])

	refreshClaims, err := ValidateAndGetClaims(refresh, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "refresh", refreshClaims["type"])
	assert.NotEmpty(t, refreshClaims["jti"])
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	access, _, err := GenerateTokenPair("ada@uni.edu", testSecret, 7)
	require.NoError(t, err)

	_, err = ValidateAndGetClaims(access, "some-other-secret")
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := ValidateAndGetClaims("not-a-token", testSecret)
	assert.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	claims := jwt.MapClaims{
		"id":    uint(7),
		"email": "ada@uni.edu",
		"type":  "access",
		"exp":   time.Now().Add(-time.Minute).Unix(),
		"iat":   time.Now().Add(-time.Hour).Unix(),
	}
	token, err := signClaims(claims, testSecret)
	require.NoError(t, err)

	_, err = ValidateAndGetClaims(token, testSecret)
	assert.Error(t, err)
}

func TestValidateRejectsWrongSigningMethod(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"id": 7})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateAndGetClaims(signed, testSecret)
	assert.Error(t, err)
}
