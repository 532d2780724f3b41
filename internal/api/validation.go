package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

type ValidationErrorResponse struct {
	Error   string            `json:"error" example:"validation failed"`
	Code    string            `json:"code" example:"validation_failed"`
	Details []ValidationError `json:"details"`
}

// ValidationErrors flattens binding errors into per-field messages. It
// returns nil for errors that are not validator errors, e.g. bad JSON.
func ValidationErrors(err error) []ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: fieldMessage(fe),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "max":
		return fe.Field() + " must be at most " + fe.Param()
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	case "gte":
		return fe.Field() + " must be greater than or equal to " + fe.Param()
	case "lte":
		return fe.Field() + " must be less than or equal to " + fe.Param()
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}

// RespondBindError answers a failed ShouldBindJSON with 400.
func RespondBindError(c *gin.Context, err error) {
	if details := ValidationErrors(err); details != nil {
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Error:   "validation failed",
			Code:    "validation_failed",
			Details: details,
		})
		return
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "bad_request"})
}
