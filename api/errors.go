package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Domenick1991/tablebooking/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const (
	msgInvalidJSON   = "Invalid JSON body"
	msgBotDetected   = "bot detected"
	msgValidation    = "validation failed"
	msgCaptcha       = "Security check failed. Please try again."
	msgSlotTaken     = "This time slot is no longer available. Please choose another time."
	msgInvalidToken  = "Invalid or expired cancellation link."
	msgNotFound      = "Reservation not found."
	msgInternalError = "An unexpected error occurred. Please try again."
)

// Rate-limit messages per policy scope.
var rateLimitMessages = map[string]string{
	"ip":      "Too many requests. Please try again later.",
	"phone":   "Too many reservations from this phone number. Please call us directly.",
	"contact": "Too many messages sent. Please wait a few minutes before trying again.",
}

type errorResponse struct {
	Error      string              `json:"error"`
	Issues     []domain.FieldError `json:"issues,omitempty"`
	RetryAfter int                 `json:"retryAfter,omitempty"`
}

// writeError maps service errors onto HTTP responses. Anything unrecognised
// is logged and reported as a generic 500.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	var (
		verr *domain.ValidationError
		rl   *domain.RateLimitedError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: msgValidation, Issues: verr.Fields})
	case errors.As(err, &rl):
		msg, ok := rateLimitMessages[rl.Scope]
		if !ok {
			msg = rateLimitMessages["ip"]
		}
		c.Header("Retry-After", strconv.Itoa(rl.RetryAfter))
		c.JSON(http.StatusTooManyRequests, errorResponse{Error: msg, RetryAfter: rl.RetryAfter})
	case errors.Is(err, domain.ErrCaptchaFailed):
		c.JSON(http.StatusForbidden, errorResponse{Error: msgCaptcha})
	case errors.Is(err, domain.ErrSlotTaken):
		c.JSON(http.StatusConflict, errorResponse{Error: msgSlotTaken})
	case errors.Is(err, domain.ErrInvalidToken):
		c.JSON(http.StatusForbidden, errorResponse{Error: msgInvalidToken})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: msgNotFound})
	default:
		logger.ErrorContext(c.Request.Context(), "request failed",
			"request_id", requestID(c), "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: msgInternalError})
	}
}

// bindJSON decodes the body into dst. A body that is not JSON yields 400; a
// value of the wrong type yields a 422 issue for that field.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		c.JSON(http.StatusUnprocessableEntity, errorResponse{
			Error:  msgValidation,
			Issues: []domain.FieldError{{Field: typeErr.Field, Message: issueMessage(typeErr.Field, "type")}},
		})
		return false
	}
	c.JSON(http.StatusBadRequest, errorResponse{Error: msgInvalidJSON})
	return false
}

// validateRequest runs the validate tags on req and writes a 422 on failure.
func validateRequest(c *gin.Context, req any) bool {
	err := validate.Struct(req)
	if err == nil {
		return true
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: msgInvalidJSON})
		return false
	}
	issues := make([]domain.FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		issues = append(issues, domain.FieldError{Field: fe.Field(), Message: issueMessage(fe.Field(), fe.Tag())})
	}
	c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: msgValidation, Issues: issues})
	return false
}
