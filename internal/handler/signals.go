package handler

import (
	"errors"
	"net/http"
	"strconv"

	"forex-signal-engine/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > maxListLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
		return 0, false
	}
	return n, true
}

// ListSignals supports ?symbol=&status=&direction=&limit=.
func (h *Handler) ListSignals(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-signals")
	defer span.End()

	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	filter := domain.SignalFilter{Symbol: domain.NormalizeSymbol(c.Query("symbol")), Limit: limit}
	if raw := c.Query("status"); raw != "" {
		st, err := domain.ParseSignalStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Status = &st
	}
	if raw := c.Query("direction"); raw != "" {
		dir, err := domain.ParseDirection(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Direction = &dir
	}

	signals, err := h.signals.Query(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(attribute.Int("count", len(signals)))
	c.JSON(http.StatusOK, gin.H{"signals": signals, "count": len(signals)})
}

func (h *Handler) GetSignal(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-signal")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("signal_id", id))

	sig, err := h.signals.Get(ctx, id)
	if errors.Is(err, domain.ErrSignalNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "signal not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sig)
}

func (h *Handler) GetSignalOutcome(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-signal-outcome")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("signal_id", id))

	if _, err := h.signals.Get(ctx, id); err != nil {
		if errors.Is(err, domain.ErrSignalNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "signal not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.outcomes.GetBySignalID(ctx, id)
	if errors.Is(err, domain.ErrOutcomeNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "signal has no outcome yet"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *Handler) ListOutcomes(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-outcomes")
	defer span.End()

	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	outcomes, err := h.outcomes.List(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes, "count": len(outcomes)})
}
