package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jmliu/cb-tracker/internal/application"
	"github.com/jmliu/cb-tracker/internal/domain"
)

// ReconcileService defines the operations the HTTP layer exposes.
type ReconcileService interface {
	Run(ctx context.Context) (*application.RunSummary, error)
	Correct(ctx context.Context, stockID, bondID string, fields map[string]string) error
	ListBonds(ctx context.Context) ([]domain.BondRecord, error)
	ListPending(ctx context.Context) ([]application.PendingBond, error)
	LastUpdate(ctx context.Context) (string, error)
	HasUpdatedToday(ctx context.Context) (bool, error)
}

type Handler struct {
	service ReconcileService
}

func NewHandler(service ReconcileService) *Handler {
	return &Handler{
		service: service,
	}
}

type CorrectionRequest struct {
	StockID string            `json:"stock_id" binding:"required"`
	BondID  string            `json:"bond_id"`
	Fields  map[string]string `json:"fields" binding:"required"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Reconcile triggers a full run. The summary is returned even when the run
// failed, with a 502 status, since the usual cause is the upstream feed.
func (h *Handler) Reconcile(c *gin.Context) {
	summary, err := h.service.Run(c.Request.Context())
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "Reconciliation failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "summary": summary})
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *Handler) ApplyCorrection(c *gin.Context) {
	var req CorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.ErrorContext(c.Request.Context(), "Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	err := h.service.Correct(c.Request.Context(), req.StockID, req.BondID, req.Fields)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrUnknownColumn):
			status = http.StatusBadRequest
		case errors.Is(err, domain.ErrBondNotFound):
			status = http.StatusNotFound
		}
		slog.ErrorContext(c.Request.Context(), "Failed to apply correction",
			"stock_id", req.StockID, "bond_id", req.BondID, "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "correction applied"})
}

func (h *Handler) ListBonds(c *gin.Context) {
	bonds, err := h.service.ListBonds(c.Request.Context())
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "Failed to list bonds", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, bonds)
}

func (h *Handler) ListPending(c *gin.Context) {
	pending, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "Failed to list pending bonds", "error", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, pending)
}

func (h *Handler) Status(c *gin.Context) {
	ts, err := h.service.LastUpdate(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	today, err := h.service.HasUpdatedToday(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"last_update": ts, "updated_today": today})
}
