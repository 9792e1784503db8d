package ws

import (
	"log"

	"github.com/dormside/dormside/db"
	"github.com/dormside/dormside/models"
	"github.com/dormside/dormside/services/jwt"
)

// Identity is the outcome of connection authentication. A nil User means
// anonymous; callers never learn why authentication failed.
type Identity struct {
	User *models.User
}

func (i Identity) Anonymous() bool {
	return i.User == nil
}

// Authenticator validates bearer tokens for websocket connections. Every
// failure mode collapses to the anonymous identity so that probing a token
// reveals nothing.
type Authenticator struct {
	secret   string
	authRepo db.AuthRepository
}

func NewAuthenticator(secret string, authRepo db.AuthRepository) *Authenticator {
	return &Authenticator{secret: secret, authRepo: authRepo}
}

func (a *Authenticator) Authenticate(token string) Identity {
	if token == "" {
		return Identity{}
	}

	if a.authRepo.IsTokenInBlacklist(token) {
		log.Println("Rejected blacklisted token on websocket connect")
		return Identity{}
	}

	claims, err := jwt.ValidateAndGetClaims(token, a.secret)
	if err != nil {
		return Identity{}
	}

	id, ok := claims["id"].(float64)
	if !ok || id <= 0 {
		return Identity{}
	}

	user, err := a.authRepo.FindUserByID(uint(id))
	if err != nil {
		return Identity{}
	}
	return Identity{User: user}
}
