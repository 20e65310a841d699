package handler

import (
	"net/http"
	"time"

	"forex-signal-engine/internal/domain"
	"forex-signal-engine/internal/job"
	"forex-signal-engine/internal/monitor"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// AnalyzeSymbol runs the generator for one pair without storing anything.
func (h *Handler) AnalyzeSymbol(c *gin.Context) {
	if h.analyzer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.analyze-symbol")
	defer span.End()

	symbol := domain.NormalizeSymbol(c.Param("symbol"))
	span.SetAttributes(attribute.String("symbol", symbol))
	if !h.prices.Supported(symbol) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "unsupported symbol: " + symbol,
			"supported_symbols": h.prices.Symbols(),
		})
		return
	}

	report, err := h.analyzer.Analyze(ctx, symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) RunAnalysis(c *gin.Context) {
	if h.analyzer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.run-analysis")
	defer span.End()

	res, err := h.analyzer.Run(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "result": res})
}

// RunMonitor executes a manual pass over the full price snapshot.
func (h *Handler) RunMonitor(c *gin.Context) {
	if h.monitor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "monitor unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.run-monitor")
	defer span.End()

	res, err := h.monitor.RunOnce(ctx, job.Tick{Trigger: monitor.TriggerManual, At: time.Now().UTC()})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "result": res})
}
