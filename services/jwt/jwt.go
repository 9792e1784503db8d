package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

const (
	// AccessTokenValidity is how long an access token stays valid
	AccessTokenValidity = 24 * time.Hour
	// RefreshTokenValidity is how long a refresh token stays valid
	RefreshTokenValidity = 7 * 24 * time.Hour
)

// GenerateTokenPair returns a signed access and refresh token for the user
func GenerateTokenPair(email, secret string, userID uint) (string, string, error) {
	accessClaims := jwt.MapClaims{
		"id":    userID,
		"email": email,
		"type":  "access",
		"exp":   time.Now().Add(AccessTokenValidity).Unix(),
		"iat":   time.Now().Unix(),
	}
	accessToken, err := signClaims(accessClaims, secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshClaims := jwt.MapClaims{
		"id":    userID,
		"email": email,
		"type":  "refresh",
		"jti":   uuid.New().String(),
		"exp":   time.Now().Add(RefreshTokenValidity).Unix(),
		"iat":   time.Now().Unix(),
	}
	refreshToken, err := signClaims(refreshClaims, secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}

func signClaims(claims jwt.MapClaims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateAndGetClaims parses the token, checks the signature and expiry and
// returns the claims
func ValidateAndGetClaims(tokenString, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
