package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Backends names the storage each dependency resolved to at startup.
type Backends struct {
	Signals string `json:"signals"`
	Prices  string `json:"prices"`
}

func (h *Handler) Health(c *gin.Context) {
	body := gin.H{"status": "healthy"}
	if h.backends != (Backends{}) {
		body["backends"] = h.backends
	}
	if h.prices != nil {
		body["symbols"] = len(h.prices.Symbols())
	}
	c.JSON(http.StatusOK, body)
}
