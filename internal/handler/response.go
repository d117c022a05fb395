package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewMessageResponse(message string, data interface{}) *Response {
	return &Response{
		Status:  "success",
		Message: message,
		Data:    data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondError writes err using the status of its AppError code. Anything
// else is reported as a 500 without leaking details; the error itself is
// attached to the context for the request logger.
func RespondError(c *gin.Context, err error) {
	_ = c.Error(err)

	if appErr, ok := apperrors.As(err); ok {
		c.AbortWithStatusJSON(appErr.StatusCode(), NewErrorResponse(appErr.Message))
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, NewErrorResponse("Server error"))
}

// RespondBindError reports a request body that failed to decode or validate.
func RespondBindError(c *gin.Context, err error) {
	_ = c.Error(err).SetType(gin.ErrorTypeBind)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse(strings.Join(msgs, "; ")))
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse("Invalid request body"))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "booking_status":
		return fmt.Sprintf("Invalid booking status: %q", fmt.Sprint(fe.Value()))
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
