package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SscSPs/ledger_balances/internal/core/domain"
	portssvc "github.com/SscSPs/ledger_balances/internal/core/ports/services"
	"github.com/SscSPs/ledger_balances/internal/middleware"
)

// adminHandler exposes balance maintenance operations.
type adminHandler struct {
	balanceService portssvc.BalanceSvcFacade
}

func newAdminHandler(bs portssvc.BalanceSvcFacade) *adminHandler {
	return &adminHandler{balanceService: bs}
}

// PartitionQuery selects one (account, counterparty) partition. A missing partnerID selects the
// lines without a counterparty.
type PartitionQuery struct {
	AccountID int64 `form:"accountID" binding:"required,gt=0"`
	PartnerID int64 `form:"partnerID" binding:"gte=0"`
}

// RegisterAdminRoutes registers the balance maintenance routes.
func RegisterAdminRoutes(rg *gin.RouterGroup, balanceService portssvc.BalanceSvcFacade) {
	h := newAdminHandler(balanceService)

	balances := rg.Group("/admin/balances")
	{
		balances.POST("/reset", h.resetBalances)
		balances.GET("/verify", h.verifyPartition)
		balances.POST("/repair", h.repairPartition)
	}
}

// resetBalances godoc
// @Summary Rebuild every running balance
// @Description Truncates and recomputes all balances in stages. The stage report is returned in both outcomes.
// @Tags admin
// @Produce  json
// @Success 200 {object} domain.ResetReport
// @Failure 500 {object} domain.ResetReport "A stage failed"
// @Router /admin/balances/reset [post]
func (h *adminHandler) resetBalances(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)

	report, ok := h.balanceService.ResetAndRecompute(c.Request.Context())
	if !ok {
		if failed, found := report.FailedStage(); found {
			logger.Error("Balance reset failed", slog.String("stage", string(failed.Stage)), slog.String("error", failed.Error))
		}
		c.JSON(http.StatusInternalServerError, report)
		return
	}
	c.JSON(http.StatusOK, report)
}

// verifyPartition godoc
// @Summary Verify the stored balances of one partition
// @Tags admin
// @Produce  json
// @Param   accountID query int true "Account ID"
// @Param   partnerID query int false "Counterparty ID, 0 for none"
// @Success 200 {object} domain.VerifyReport
// @Failure 400 {object} map[string]string "Invalid partition"
// @Router /admin/balances/verify [get]
func (h *adminHandler) verifyPartition(c *gin.Context) {
	h.checkPartition(c, false)
}

// repairPartition godoc
// @Summary Verify and repair the stored balances of one partition
// @Tags admin
// @Produce  json
// @Param   accountID query int true "Account ID"
// @Param   partnerID query int false "Counterparty ID, 0 for none"
// @Success 200 {object} domain.VerifyReport
// @Failure 400 {object} map[string]string "Invalid partition"
// @Failure 409 {object} map[string]string "Concurrent modification"
// @Router /admin/balances/repair [post]
func (h *adminHandler) repairPartition(c *gin.Context) {
	h.checkPartition(c, true)
}

func (h *adminHandler) checkPartition(c *gin.Context, repair bool) {
	logger := middleware.GetLoggerFromContext(c)
	var q PartitionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		logger.Warn("Invalid partition query", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid partition: " + err.Error()})
		return
	}
	key := domain.PartitionKey{AccountID: q.AccountID, PartnerKey: q.PartnerID}

	report, err := h.balanceService.VerifyPartition(c.Request.Context(), key, repair)
	if err != nil {
		respondError(c, logger.With(slog.String("partition", key.String())), err, "Failed to verify balances")
		return
	}
	c.JSON(http.StatusOK, report)
}
