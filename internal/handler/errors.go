package handler

import (
	"errors"
	"net/http"

	"farmlink/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domain.ErrInvalidCode, http.StatusBadRequest, "invalid_code"},
	{domain.ErrSelfReferral, http.StatusBadRequest, "self_referral"},
	{domain.ErrAlreadyReferred, http.StatusConflict, "already_referred"},
	{domain.ErrUnsupportedRoleCombination, http.StatusUnprocessableEntity, "unsupported_role_combination"},
	{domain.ErrNotReferred, http.StatusUnprocessableEntity, "not_referred"},
	{domain.ErrProfileBlocked, http.StatusForbidden, "profile_blocked"},
	{domain.ErrOrderMismatch, http.StatusForbidden, "order_mismatch"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{domain.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
}

// noRewardErrors are outcomes, not failures: the caller gets 200 with
// rewarded=false.
var noRewardErrors = []errorMapping{
	{domain.ErrAlreadyCompleted, http.StatusOK, "already_completed"},
	{domain.ErrCapReached, http.StatusOK, "cap_reached"},
}

// respondError writes the JSON error body for err. Infrastructure failures
// are reported as an opaque 500.
func respondError(c *gin.Context, err error) {
	for _, m := range noRewardErrors {
		if errors.Is(err, m.target) {
			c.JSON(m.status, gin.H{"rewarded": false, "code": m.code, "message": m.target.Error()})
			return
		}
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, gin.H{"error": m.target.Error(), "code": m.code})
			return
		}
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "code": "internal"})
}

// uuidParam parses the named path parameter, writing a 400 on failure.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name, "code": "bad_request"})
		return uuid.Nil, false
	}
	return id, true
}
