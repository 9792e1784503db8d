package server

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	errs "github.com/dormside/dormside/errors"
	"github.com/dormside/dormside/models"
	"github.com/dormside/dormside/server/response"
)

// decode reads the request body into v, preferring the validator tags
func decode(c *gin.Context, v interface{}) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleSignup() gin.HandlerFunc {
	return func(c *gin.Context) {
		var user models.User
		if err := decode(c, &user); err != nil {
			if verrs, ok := err.(validator.ValidationErrors); ok {
				response.JSON(c, "validation failed", http.StatusBadRequest, nil, verrs)
				return
			}
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		created, err := s.AuthService.SignupUser(&user)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}

		response.JSON(c, "signup successful", http.StatusCreated, models.UserResponse{
			ID:         created.ID,
			Fullname:   created.Fullname,
			Username:   created.Username,
			Telephone:  created.Telephone,
			Email:      created.Email,
			University: created.University,
		}, nil)
	}
}

func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var loginRequest models.LoginRequest
		if err := decode(c, &loginRequest); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		userResponse, err := s.AuthService.LoginUser(&loginRequest)
		if err != nil {
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "login successful", http.StatusOK, userResponse, nil)
	}
}

func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := c.MustGet("user").(*models.User)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}
		accessToken := c.GetString("access_token")

		if err := s.AuthService.LogoutUser(accessToken, user.Email); err != nil {
			log.Printf("logout error: %v", err)
			response.JSON(c, "", err.Status, nil, err)
			return
		}
		response.JSON(c, "logout successful", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleShowProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userID")
		user, err := s.AuthService.GetUserProfile(userID)
		if err != nil {
			response.HandleErrors(c, err)
			return
		}
		response.JSON(c, "", http.StatusOK, models.UserResponse{
			ID:         user.ID,
			Fullname:   user.Fullname,
			Username:   user.Username,
			Telephone:  user.Telephone,
			Email:      user.Email,
			University: user.University,
		}, nil)
	}
}
