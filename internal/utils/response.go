package utils

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
)

// Envelope is the uniform body of every JSON response.
type Envelope struct {
	Success    bool     `json:"success"`
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Data       any      `json:"data,omitempty"`
	Errors     []string `json:"errors"`
	Timestamp  string   `json:"timestamp"`
}

func Success(c *gin.Context, status int, data any, message string) {
	if message == "" {
		message = "Success"
	}
	c.JSON(status, Envelope{
		Success:    status < 400,
		StatusCode: status,
		Message:    message,
		Data:       data,
		Errors:     []string{},
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Fail renders err. Unclassified errors are reported as a generic 500 so
// driver messages do not leak to clients.
func Fail(c *gin.Context, err error) {
	status := StatusOf(err)
	msg := "Internal server error"
	errs := []string{}
	var ae *AppError
	if errors.As(err, &ae) {
		msg = ae.Message
		if ae.Kind == KindGateway && ae.Err != nil {
			errs = append(errs, ae.Err.Error())
		}
		errs = append(errs, ae.Errors...)
	}
	c.Error(err)
	c.AbortWithStatusJSON(status, Envelope{
		Success:    false,
		StatusCode: status,
		Message:    msg,
		Errors:     errs,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
	})
}
