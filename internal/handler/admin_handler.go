package handler

import (
	"net/http"

	"farmlink/internal/middleware"
	"farmlink/internal/models"
	"farmlink/internal/repository"
	"farmlink/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AdminHandler struct {
	referralSvc *service.ReferralService
	auditRepo   *repository.AuditLogRepository
}

func NewAdminHandler(referralSvc *service.ReferralService, auditRepo *repository.AuditLogRepository) *AdminHandler {
	return &AdminHandler{referralSvc: referralSvc, auditRepo: auditRepo}
}

// ApplyFarmerCashback handles POST /admin/referrals/:user_id/cashback, the
// first-sale trigger for a referred farmer.
func (h *AdminHandler) ApplyFarmerCashback(c *gin.Context) {
	farmerID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	res, err := h.referralSvc.ApplyFarmerReferralCashback(c.Request.Context(), farmerID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.auditLog(c, "referral.cashback", farmerID, res.CashbackAmount)
	c.JSON(http.StatusOK, gin.H{
		"rewarded":                true,
		"cashback_amount":         res.CashbackAmount,
		"cashback_amount_cents":   res.CashbackAmountCents,
		"referrer_id":             res.ReferrerID,
		"referrer_cashback":       res.ReferrerCashback,
		"referrer_cashback_cents": res.ReferrerCashbackCents,
		"history_id":              res.HistoryID,
		"qualified_at":            res.QualifiedAt,
	})
}

// BlockProfile handles POST /admin/referrals/:user_id/block.
func (h *AdminHandler) BlockProfile(c *gin.Context) {
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	if err := h.referralSvc.BlockProfile(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	h.auditLog(c, "referral.block", userID, "")
	c.JSON(http.StatusOK, gin.H{"message": "referral profile blocked", "user_id": userID})
}

// auditLog is best effort: the ledger change has already committed.
func (h *AdminHandler) auditLog(c *gin.Context, action string, target uuid.UUID, metadata string) {
	if h.auditRepo == nil {
		return
	}
	actor := middleware.GetUserID(c)
	_ = h.auditRepo.Create(&models.AuditLog{
		ActorID:    &actor,
		Action:     action,
		Resource:   "referral_profile",
		ResourceID: target.String(),
		IP:         c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
		Metadata:   metadata,
	})
}
