package prometheus

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves a registry; New adds the process and Go collectors to it.
type Handler struct {
	registry *prometheus.Registry
}

func New(registry *prometheus.Registry) *Handler {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Handler{registry: registry}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/metrics", h.Handler())
}

func (h *Handler) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
}
