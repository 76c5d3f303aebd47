package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SscSPs/ledger_balances/internal/core/domain"
	portssvc "github.com/SscSPs/ledger_balances/internal/core/ports/services"
	"github.com/SscSPs/ledger_balances/internal/dto"
	"github.com/SscSPs/ledger_balances/internal/filter"
	"github.com/SscSPs/ledger_balances/internal/middleware"
)

// ledgerHandler handles HTTP requests related to ledger lines and their balances.
type ledgerHandler struct {
	ledgerService  portssvc.LedgerSvcFacade
	balanceService portssvc.BalanceSvcFacade
}

// newLedgerHandler creates a new ledgerHandler.
func newLedgerHandler(ls portssvc.LedgerSvcFacade, bs portssvc.BalanceSvcFacade) *ledgerHandler {
	return &ledgerHandler{
		ledgerService:  ls,
		balanceService: bs,
	}
}

// RegisterLedgerRoutes registers routes related to ledger lines.
func RegisterLedgerRoutes(rg *gin.RouterGroup, ledgerService portssvc.LedgerSvcFacade, balanceService portssvc.BalanceSvcFacade) {
	h := newLedgerHandler(ledgerService, balanceService)

	lines := rg.Group("/lines", middleware.SkipRecomputeFromQuery())
	{
		lines.POST("", h.createLines)
		lines.PATCH("", h.updateLines)
		lines.DELETE("", h.deleteLines)
		lines.GET("", h.listLines)
		lines.POST("/recompute", h.recomputeLines)
		lines.GET("/:id", h.getLine)
		lines.GET("/:id/balance", h.getLineBalance)
	}
}

func parseLineID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid line ID"})
		return 0, false
	}
	return id, true
}

// createLines godoc
// @Summary Create ledger lines
// @Description Inserts lines and recomputes the running balances of the affected partitions
// @Tags lines
// @Accept  json
// @Produce  json
// @Param   lines body dto.CreateLinesRequest true "Lines to create"
// @Param   skipRecompute query bool false "Leave balances untouched (bulk load)"
// @Success 201 {array} dto.LineResponse
// @Failure 400 {object} map[string]string "Invalid input format or validation error"
// @Failure 409 {object} map[string]string "Concurrent modification"
// @Failure 500 {object} map[string]string "Failed to create lines"
// @Router /lines [post]
func (h *ledgerHandler) createLines(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	var req dto.CreateLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreateLines", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	inputs, err := req.ToLineInputs()
	if err != nil {
		respondError(c, logger, err, "Failed to create lines")
		return
	}

	opts := domain.MutationOptions{SkipRecompute: req.SkipRecompute || middleware.GetSkipRecompute(c)}
	lines, err := h.ledgerService.CreateLines(c.Request.Context(), inputs, opts)
	if err != nil {
		respondError(c, logger, err, "Failed to create lines")
		return
	}
	c.JSON(http.StatusCreated, dto.ToLineResponses(lines))
}

// updateLines godoc
// @Summary Update ledger lines
// @Description Applies partial updates and recomputes both the partitions lines leave and enter
// @Tags lines
// @Accept  json
// @Produce  json
// @Param   updates body dto.UpdateLinesRequest true "Partial updates"
// @Success 200 {array} dto.LineResponse
// @Failure 400 {object} map[string]string "Invalid input format or validation error"
// @Failure 404 {object} map[string]string "Line not found"
// @Failure 409 {object} map[string]string "Concurrent modification"
// @Router /lines [patch]
func (h *ledgerHandler) updateLines(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	var req dto.UpdateLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for UpdateLines", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	updates, err := req.ToLineUpdates()
	if err != nil {
		respondError(c, logger, err, "Failed to update lines")
		return
	}

	opts := domain.MutationOptions{SkipRecompute: req.SkipRecompute || middleware.GetSkipRecompute(c)}
	lines, err := h.ledgerService.UpdateLines(c.Request.Context(), updates, opts)
	if err != nil {
		respondError(c, logger, err, "Failed to update lines")
		return
	}
	c.JSON(http.StatusOK, dto.ToLineResponses(lines))
}

// deleteLines godoc
// @Summary Delete ledger lines
// @Tags lines
// @Accept  json
// @Produce  json
// @Param   ids body dto.DeleteLinesRequest true "Line IDs"
// @Success 200 {object} dto.DeleteLinesResponse
// @Failure 404 {object} map[string]string "Line not found"
// @Router /lines [delete]
func (h *ledgerHandler) deleteLines(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	var req dto.DeleteLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for DeleteLines", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	opts := domain.MutationOptions{SkipRecompute: req.SkipRecompute || middleware.GetSkipRecompute(c)}
	n, err := h.ledgerService.DeleteLines(c.Request.Context(), req.IDs, opts)
	if err != nil {
		respondError(c, logger, err, "Failed to delete lines")
		return
	}
	c.JSON(http.StatusOK, dto.DeleteLinesResponse{Deleted: n})
}

// recomputeLines godoc
// @Summary Recompute balances around lines changed outside the service
// @Tags lines
// @Accept  json
// @Produce  json
// @Param   ids body dto.RecomputeLinesRequest true "Line IDs"
// @Success 200 {object} domain.RecomputeStats
// @Router /lines/recompute [post]
func (h *ledgerHandler) recomputeLines(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	var req dto.RecomputeLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for RecomputeLines", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	stats, err := h.ledgerService.RecomputeLines(c.Request.Context(), req.IDs)
	if err != nil {
		respondError(c, logger, err, "Failed to recompute lines")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// getLine godoc
// @Summary Get a ledger line by ID
// @Tags lines
// @Produce  json
// @Param   id path int true "Line ID"
// @Success 200 {object} dto.LineResponse
// @Failure 404 {object} map[string]string "Line not found"
// @Router /lines/{id} [get]
func (h *ledgerHandler) getLine(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	id, ok := parseLineID(c)
	if !ok {
		return
	}

	line, err := h.ledgerService.GetLine(c.Request.Context(), id)
	if err != nil {
		respondError(c, logger.With(slog.Int64("line_id", id)), err, "Failed to retrieve line")
		return
	}
	c.JSON(http.StatusOK, dto.ToLineResponse(*line))
}

// listLines godoc
// @Summary List ledger lines
// @Description Lists lines in (date, id) order. The filter parameter is a JSON predicate document.
// @Tags lines
// @Produce  json
// @Param   filter query string false "JSON filter"
// @Param   limit query int false "Page size" default(100)
// @Param   nextToken query string false "Pagination token"
// @Success 200 {object} dto.ListLinesResponse
// @Failure 400 {object} map[string]string "Invalid filter"
// @Router /lines [get]
func (h *ledgerHandler) listLines(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)

	pred, err := filter.Parse([]byte(c.Query("filter")))
	if err != nil {
		respondError(c, logger, err, "Failed to list lines")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	var nextToken *string
	if token := c.Query("nextToken"); token != "" {
		nextToken = &token
	}

	lines, next, err := h.ledgerService.ListLines(c.Request.Context(), pred, limit, nextToken)
	if err != nil {
		respondError(c, logger, err, "Failed to list lines")
		return
	}
	c.JSON(http.StatusOK, dto.ListLinesResponse{Lines: dto.ToLineResponses(lines), NextToken: next})
}

// getLineBalance godoc
// @Summary Get the running balance of a line
// @Description Returns initial and end balance; computed is false when no balance is stored yet
// @Tags lines
// @Produce  json
// @Param   id path int true "Line ID"
// @Success 200 {object} dto.BalanceResponse
// @Failure 404 {object} map[string]string "Line not found"
// @Router /lines/{id}/balance [get]
func (h *ledgerHandler) getLineBalance(c *gin.Context) {
	logger := middleware.GetLoggerFromContext(c)
	id, ok := parseLineID(c)
	if !ok {
		return
	}

	view, err := h.balanceService.GetBalance(c.Request.Context(), id)
	if err != nil {
		respondError(c, logger.With(slog.Int64("line_id", id)), err, "Failed to retrieve balance")
		return
	}
	c.JSON(http.StatusOK, dto.ToBalanceResponse(*view))
}
