package handler

import (
	"net/http"
	"strconv"
	"time"

	"forex-signal-engine/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type priceRequest struct {
	Symbol    string    `json:"symbol" binding:"required"`
	Price     float64   `json:"price" binding:"required,gt=0"`
	Timestamp time.Time `json:"timestamp"`
}

type candleRequest struct {
	Symbol    string    `json:"symbol" binding:"required"`
	Timeframe string    `json:"timeframe" binding:"required"`
	OpenTime  time.Time `json:"open_time" binding:"required"`
	Open      float64   `json:"open" binding:"required,gt=0"`
	High      float64   `json:"high" binding:"required,gt=0,gtefield=Low"`
	Low       float64   `json:"low" binding:"required,gt=0"`
	Close     float64   `json:"close" binding:"required,gt=0"`
	Volume    float64   `json:"volume" binding:"gte=0"`
}

type candlesRequest struct {
	Candles []candleRequest `json:"candles" binding:"required,min=1,max=5000,dive"`
}

func (h *Handler) GetPrices(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-prices")
	defer span.End()

	snap, err := h.prices.Snapshot(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"prices": snap})
}

// PostPrice stores a quote and triggers a price-event monitor pass.
func (h *Handler) PostPrice(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.post-price")
	defer span.End()

	var req priceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	symbol := domain.NormalizeSymbol(req.Symbol)
	span.SetAttributes(attribute.String("symbol", symbol))
	if !h.prices.Supported(symbol) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "unsupported symbol: " + symbol,
			"supported_symbols": h.prices.Symbols(),
		})
		return
	}

	u := domain.PriceUpdate{Symbol: symbol, Price: req.Price, Timestamp: req.Timestamp}
	if err := h.prices.Ingest(ctx, u); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "symbol": symbol})
}

func (h *Handler) GetCandles(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-candles")
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

	tf, err := domain.ParseTimeframe(c.DefaultQuery("timeframe", string(domain.TimeframeFourHour)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit := 100
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= maxListLimit {
			limit = n
		}
	}

	candles, err := h.prices.GetCandles(ctx, symbol, tf, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":    symbol,
		"timeframe": tf,
		"candles":   candles,
	})
}

func (h *Handler) PostCandles(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.post-candles")
	defer span.End()

	var req candlesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candles := make([]domain.Candle, 0, len(req.Candles))
	for _, in := range req.Candles {
		tf, err := domain.ParseTimeframe(in.Timeframe)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		symbol := domain.NormalizeSymbol(in.Symbol)
		if !h.prices.Supported(symbol) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported symbol: " + symbol})
			return
		}
		candles = append(candles, domain.Candle{
			Symbol:    symbol,
			Timeframe: tf,
			OpenTime:  in.OpenTime.UTC(),
			Open:      in.Open,
			High:      in.High,
			Low:       in.Low,
			Close:     in.Close,
			Volume:    in.Volume,
		})
	}
	span.SetAttributes(attribute.Int("candles", len(candles)))

	if err := h.prices.IngestCandles(ctx, candles); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "stored": len(candles)})
}
