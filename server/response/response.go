package response

import (
	"errors"
	"net/http"

	apiError "github.com/dormside/dormside/errors"
	"github.com/gin-gonic/gin"
)

// JSON writes the standard response envelope
func JSON(c *gin.Context, message string, status int, data interface{}, err error) {
	errMessage := ""
	if err != nil {
		errMessage = err.Error()
	}
	c.JSON(status, gin.H{
		"message": message,
		"data":    data,
		"errors":  errMessage,
		"status":  http.StatusText(status),
	})
}

// HandleErrors writes a response matching the error type
func HandleErrors(c *gin.Context, err error) {
	var apiErr *apiError.Error
	if errors.As(err, &apiErr) {
		JSON(c, "", apiErr.Status, nil, apiErr)
		return
	}
	JSON(c, "", http.StatusInternalServerError, nil, err)
}
