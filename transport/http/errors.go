package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/layer-3/scryptex/core"
)

// ErrorBody is the JSON error envelope returned by every route
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type errorResponse struct {
	Error ErrorBody `json:"error"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{core.ErrInvalidNonce, http.StatusBadRequest, "INVALID_NONCE", "Invalid nonce, request a new challenge"},
	{core.ErrNonceExpired, http.StatusBadRequest, "NONCE_EXPIRED", "Nonce expired, request a new challenge"},
	{core.ErrSignatureVerificationFailed, http.StatusBadRequest, "SIGNATURE_VERIFICATION_FAILED", "Malformed signature"},
	{core.ErrInvalidSignature, http.StatusUnauthorized, "INVALID_SIGNATURE", "Invalid signature"},
	{core.ErrInvalidRefreshToken, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Invalid or expired refresh token"},
	{core.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required"},
	{core.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions"},
	{core.ErrUserNotFound, http.StatusNotFound, "NOT_FOUND", "User not found"},
}

// abortWithError maps err onto a status code and error envelope.
// Unknown errors are logged and reported as a generic 500.
func abortWithError(c *gin.Context, logger *slog.Logger, err error) {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{ErrorBody{
			Code:    "VALIDATION_ERROR",
			Message: verr.Message,
			Field:   verr.Field,
		}})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.AbortWithStatusJSON(m.status, errorResponse{ErrorBody{Code: m.code, Message: m.message}})
			return
		}
	}

	logger.Error("request failed",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{ErrorBody{
		Code:    "INTERNAL",
		Message: "Internal server error",
	}})
}

// bindingError turns a gin binding failure into a field-level validation error
func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &core.ValidationError{Field: lowerFirst(verrs[0].Field()), Message: "is " + verrs[0].Tag()}
	}
	return &core.ValidationError{Field: "body", Message: "invalid request body"}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
