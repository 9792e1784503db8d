package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
)

// Error is the api error type with an http status attached
type Error struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

var (
	ErrInternalServerError = New("internal server error", http.StatusInternalServerError)
	ErrBadRequest          = New("bad request", http.StatusBadRequest)
	ErrNotFound            = New("record not found", http.StatusNotFound)
	ErrUnauthorized        = New("unauthorized", http.StatusUnauthorized)
	ErrInvalidPassword     = New("invalid email or password", http.StatusUnprocessableEntity)
	InActiveUserError      = errors.New("user is inactive")
)

func New(message string, status int) *Error {
	return &Error{
		Message: message,
		Status:  status,
	}
}

func (e *Error) Error() string {
	return e.Message
}

// GetUniqueContraintError maps a postgres unique violation to a friendly message
func GetUniqueContraintError(err error) *Error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "email"):
		return New("email already exists", http.StatusConflict)
	case strings.Contains(msg, "username"):
		return New("username already exists", http.StatusConflict)
	default:
		return New(msg, http.StatusConflict)
	}
}

// ErrorHandler is used by the gin rate limit middleware
func ErrorHandler(c *gin.Context, info ratelimit.Info) {
	c.JSON(http.StatusTooManyRequests, gin.H{
		"errors": fmt.Sprintf("Too many requests. Try again in %s", time.Until(info.ResetTime).String()),
	})
	c.Abort()
}
