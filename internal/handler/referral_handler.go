package handler

import (
	"net/http"
	"strconv"

	"farmlink/internal/domain"
	"farmlink/internal/middleware"
	"farmlink/internal/service"

	"github.com/gin-gonic/gin"
)

type ReferralHandler struct {
	referralSvc *service.ReferralService
}

func NewReferralHandler(referralSvc *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{referralSvc: referralSvc}
}

// Apply attributes the authenticated (newly registered) user to the owner of
// the submitted code.
// POST /referrals/apply
func (h *ReferralHandler) Apply(c *gin.Context) {
	var req struct {
		Code string      `json:"code" binding:"required"`
		Role domain.Role `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "bad_request"})
		return
	}
	res, err := h.referralSvc.ApplyReferralCode(c.Request.Context(), req.Code, middleware.GetUserID(c), req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Validate checks a code before signup. Unknown codes are 200 with valid=false.
// GET /referrals/validate/:code
func (h *ReferralHandler) Validate(c *gin.Context) {
	res, err := h.referralSvc.ValidateReferralCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetMyCodes returns the user's farmer and customer codes, creating them on
// first use.
// GET /me/referral-codes
func (h *ReferralHandler) GetMyCodes(c *gin.Context) {
	codes, err := h.referralSvc.GenerateReferralCode(c.Request.Context(), middleware.GetUserID(c), middleware.GetRole(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, codes)
}

// GET /me/referrals/stats
func (h *ReferralHandler) GetMyStats(c *gin.Context) {
	stats, err := h.referralSvc.GetReferralStats(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetMyHistory lists the users the caller has referred, newest first.
// GET /me/referrals/history?limit=&offset=
func (h *ReferralHandler) GetMyHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	page, err := h.referralSvc.ListReferralHistory(c.Request.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GET /me/free-deliveries
func (h *ReferralHandler) GetMyFreeDeliveries(c *gin.Context) {
	res, err := h.referralSvc.CheckFreeDeliveries(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
