package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rentflow/pkg/apperr"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = apperr.Validation("invalid_request", "invalid request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidField(code, message string) error {
	return apperr.Validation(code, message)
}

func mapError(err error) (int, errorPayload) {
	if errors.Is(err, ErrRateLimited) {
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Code:    "rate_limited",
			Message: "too many requests, retry later",
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return http.StatusNotFound, errorPayload{
			Type:    string(apperr.KindNotFound),
			Code:    "not_found",
			Message: "not found",
		}
	}

	switch kind := apperr.KindOf(err); kind {
	case apperr.KindValidation:
		return http.StatusBadRequest, classified(kind, err)
	case apperr.KindNotFound:
		return http.StatusNotFound, classified(kind, err)
	case apperr.KindConflict:
		return http.StatusConflict, classified(kind, err)
	case apperr.KindStoreUnavailable:
		return http.StatusServiceUnavailable, errorPayload{
			Type:    string(kind),
			Code:    "store_unavailable",
			Message: "the store is temporarily unavailable, try again",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    string(apperr.KindInternal),
			Code:    "internal_error",
			Message: "internal server error",
		}
	}
}

func classified(kind apperr.Kind, err error) errorPayload {
	return errorPayload{
		Type:    string(kind),
		Code:    apperr.Code(err),
		Message: apperr.Message(err),
	}
}

func classifyErrorForLog(err error) (string, string) {
	if errors.Is(err, ErrRateLimited) {
		return "rate_limited", "rate_limited"
	}
	kind := apperr.KindOf(err)
	code := apperr.Code(err)
	if code == "" {
		code = string(kind)
	}
	return string(kind), code
}
