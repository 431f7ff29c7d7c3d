package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Readiness reports whether the process can serve order views.
type Readiness interface {
	Ready() bool
}

type Handler struct {
	readiness Readiness
}

func NewHandler(readiness Readiness) *Handler {
	return &Handler{
		readiness: readiness,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	if !h.readiness.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "DOWN",
			"reason": "Permission code not resolved",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}
