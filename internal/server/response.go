package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	paymentdomain "github.com/middleworldfarms/soilsync/internal/payment/domain"
	plandomain "github.com/middleworldfarms/soilsync/internal/plan/domain"
	subscriptiondomain "github.com/middleworldfarms/soilsync/internal/subscription/domain"
)

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *apiError) Error() string { return e.Message }

func invalidRequestError() *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "malformed request body"}
}

func newValidationError(field, code, message string) *apiError {
	return &apiError{Status: http.StatusUnprocessableEntity, Code: code, Message: message, Field: field}
}

func respondData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// AbortWithError translates domain errors into the wire shape. Unknown
// errors become an opaque 500 so internals never leak to callers.
func AbortWithError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
		return
	}

	status := http.StatusInternalServerError
	code := "internal_error"
	message := "internal error"

	switch {
	case errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, plandomain.ErrPlanNotFound):
		status, code, message = http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, subscriptiondomain.ErrAlreadyCanceled),
		errors.Is(err, subscriptiondomain.ErrNotPaused),
		errors.Is(err, subscriptiondomain.ErrSamePlan):
		status, code, message = http.StatusConflict, "conflict", err.Error()
	case errors.Is(err, subscriptiondomain.ErrPauseDateNotFuture),
		errors.Is(err, subscriptiondomain.ErrInvalidSubscription),
		errors.Is(err, plandomain.ErrInvalidFulfillmentMethod),
		errors.Is(err, plandomain.ErrInvalidFrequency):
		status, code, message = http.StatusUnprocessableEntity, "validation_failed", err.Error()
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		status, code, message = http.StatusUnauthorized, "invalid_signature", err.Error()
	case errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent):
		status, code, message = http.StatusBadRequest, "invalid_payload", err.Error()
	}

	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}
