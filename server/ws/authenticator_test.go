package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dormside/dormside/models"
	"github.com/dormside/dormside/services/jwt"
)

func TestAuthenticateValidToken(t *testing.T) {
	ada := &models.User{Model: models.Model{ID: 1}, Fullname: "Ada", Email: "ada@uni.edu", IsActive: true}
	auth := NewAuthenticator(testSecret, newFakeAuthRepo(ada))

	token, _, err := jwt.GenerateTokenPair(ada.Email, testSecret, ada.ID)
	require.NoError(t, err)

	identity := auth.Authenticate(token)
	require.False(t, identity.Anonymous())
	assert.Equal(t, uint(1), identity.User.ID)
}

func TestAuthenticateEmptyToken(t *testing.T) {
	auth := NewAuthenticator(testSecret, newFakeAuthRepo())

	assert.True(t, auth.Authenticate("").Anonymous())
}

func TestAuthenticateGarbageToken(t *testing.T) {
	auth := NewAuthenticator(testSecret, newFakeAuthRepo())

	assert.True(t, auth.Authenticate("not-a-token").Anonymous())
}

func TestAuthenticateWrongSecret(t *testing.T) {
	ada := &models.User{Model: models.Model{ID: 1}, Email: "ada@uni.edu", IsActive: true}
	auth := NewAuthenticator(testSecret, newFakeAuthRepo(ada))

	token, _, err := jwt.GenerateTokenPair(ada.Email, "other-secret", ada.ID)
	require.NoError(t, err)

	assert.True(t, auth.Authenticate(token).Anonymous())
}

func TestAuthenticateBlacklistedToken(t *testing.T) {
	ada := &models.User{Model: models.Model{ID: 1}, Email: "ada@uni.edu", IsActive: true}
	repo := newFakeAuthRepo(ada)
	auth := NewAuthenticator(testSecret, repo)

	token, _, err := jwt.GenerateTokenPair(ada.Email, testSecret, ada.ID)
	require.NoError(t, err)
	repo.AddToBlackList(&models.Blacklist{Email: ada.Email, Token: token})

	assert.True(t, auth.Authenticate(token).Anonymous())
}

func TestAuthenticateUnknownUser(t *testing.T) {
	auth := NewAuthenticator(testSecret, newFakeAuthRepo())

	token, _, err := jwt.GenerateTokenPair("ghost@uni.edu", testSecret, 99)
	require.NoError(t, err)

	assert.True(t, auth.Authenticate(token).Anonymous())
}

func TestAuthenticateInactiveUser(t *testing.T) {
	dormant := &models.User{Model: models.Model{ID: 5}, Email: "gone@uni.edu", IsActive: false}
	auth := NewAuthenticator(testSecret, newFakeAuthRepo(dormant))

	token, _, err := jwt.GenerateTokenPair(dormant.Email, testSecret, dormant.ID)
	require.NoError(t, err)

	// Deactivated accounts look exactly like bad tokens from the outside.
	assert.True(t, auth.Authenticate(token).Anonymous())
}
