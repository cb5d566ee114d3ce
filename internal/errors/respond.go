package errors

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the standardized error envelope returned by every endpoint.
type Response struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// Respond classifies err and sends the matching status code and envelope.
func Respond(c *gin.Context, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = Wrap(KindInternal, "Something went wrong", err)
	}

	c.JSON(HTTPStatus(e.Kind), Response{
		Success:    false,
		Error:      label(e.Kind),
		Message:    e.Message,
		RetryAfter: e.RetryAfter,
	})
}

// AbortWithBadRequest sends a 400 Bad Request envelope and aborts the request.
func AbortWithBadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   label(KindInvalidInput),
		Message: message,
	})
}

// AbortWithNotFound sends a 404 Not Found envelope and aborts the request.
func AbortWithNotFound(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusNotFound, Response{
		Success: false,
		Error:   label(KindNotFound),
		Message: message,
	})
}

// AbortWithInternal sends a 500 Internal Server Error envelope and aborts the request.
func AbortWithInternal(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
		Success: false,
		Error:   label(KindInternal),
		Message: message,
	})
}
