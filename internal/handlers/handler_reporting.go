package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/ledger_balances/internal/core/domain"
	portssvc "github.com/SscSPs/ledger_balances/internal/core/ports/services"
	"github.com/SscSPs/ledger_balances/internal/dto"
	"github.com/SscSPs/ledger_balances/internal/filter"
	"github.com/SscSPs/ledger_balances/internal/middleware"
)

type balanceTotalFunc func(ctx context.Context, pred filter.Predicate, granularity domain.Granularity) (decimal.Decimal, error)

// reportingHandler handles aggregate balance reports.
type reportingHandler struct {
	reportingService portssvc.ReportingSvcFacade
}

func newReportingHandler(rs portssvc.ReportingSvcFacade) *reportingHandler {
	return &reportingHandler{reportingService: rs}
}

// RegisterReportingRoutes registers the aggregate report routes.
func RegisterReportingRoutes(rg *gin.RouterGroup, reportingService portssvc.ReportingSvcFacade) {
	h := newReportingHandler(reportingService)

	reports := rg.Group("/reports")
	{
		reports.POST("/aggregate", h.aggregate)
		reports.POST("/opening", h.openingBalance)
		reports.POST("/closing", h.closingBalance)
	}
}

// aggregate godoc
// @Summary Aggregate balances over a filtered set of lines
// @Description Groups the filtered posted lines by account and/or counterparty and returns opening, closing and movement per group
// @Tags reports
// @Accept  json
// @Produce  json
// @Param   request body dto.AggregateRequest true "Filter, granularity and fields"
// @Success 200 {object} dto.AggregateResponse
// @Failure 400 {object} map[string]string "Invalid filter, granularity or field"
// @Failure 500 {object} map[string]string "Failed to aggregate balances"
// @Router /reports/aggregate [post]
func (h *reportingHandler) aggregate(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	var req dto.AggregateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for Aggregate", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	domainReq, err := req.ToDomain()
	if err != nil {
		respondError(c, logger, err, "Failed to aggregate balances")
		return
	}

	rows, err := h.reportingService.AggregateGroups(c.Request.Context(), domainReq)
	if err != nil {
		respondError(c, logger, err, "Failed to aggregate balances")
		return
	}
	c.JSON(http.StatusOK, dto.ToAggregateResponse(domainReq.Granularity, rows))
}

// openingBalance godoc
// @Summary Opening balance of a filtered set of lines
// @Description Sums the initial balance of the first filtered line of every group
// @Tags reports
// @Accept  json
// @Produce  json
// @Param   request body dto.BalanceTotalRequest true "Filter and granularity"
// @Success 200 {object} dto.BalanceTotalResponse
// @Failure 400 {object} map[string]string "Invalid filter or granularity"
// @Router /reports/opening [post]
func (h *reportingHandler) openingBalance(c *gin.Context) {
	h.balanceTotal(c, "opening", h.reportingService.OpeningBalance)
}

// closingBalance godoc
// @Summary Closing balance of a filtered set of lines
// @Description Sums the end balance of the last filtered line of every group
// @Tags reports
// @Accept  json
// @Produce  json
// @Param   request body dto.BalanceTotalRequest true "Filter and granularity"
// @Success 200 {object} dto.BalanceTotalResponse
// @Failure 400 {object} map[string]string "Invalid filter or granularity"
// @Router /reports/closing [post]
func (h *reportingHandler) closingBalance(c *gin.Context) {
	h.balanceTotal(c, "closing", h.reportingService.ClosingBalance)
}

func (h *reportingHandler) balanceTotal(c *gin.Context, name string, compute balanceTotalFunc) {
	logger := middleware.GetLoggerFromContext(c)
	var req dto.BalanceTotalRequest
	// An empty body is a valid request for the total over every posted line.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("Failed to bind JSON for balance total", slog.String("kind", name), slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
			return
		}
	}
	pred, granularity, err := req.ToDomain()
	if err != nil {
		respondError(c, logger, err, "Failed to compute "+name+" balance")
		return
	}

	amount, err := compute(c.Request.Context(), pred, granularity)
	if err != nil {
		respondError(c, logger, err, "Failed to compute "+name+" balance")
		return
	}
	c.JSON(http.StatusOK, dto.BalanceTotalResponse{Granularity: string(granularity), Amount: amount})
}
