package nav

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/library-admin/internal/handler"
	"github.com/jwalitptl/library-admin/internal/service/permission"
)

type Navigator interface {
	Nav() []permission.NavItem
	Grant() (permission.Grant, error)
	Catalog(ctx context.Context, name string, query url.Values) (interface{}, error)
}

type Handler struct {
	nav Navigator
}

func NewHandler(nav Navigator) *Handler {
	return &Handler{nav: nav}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/nav", h.ListNav)
	r.GET("/permission", h.GetPermission)
	r.GET("/catalog/:resource", h.ListCatalog)
}

func (h *Handler) ListNav(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.nav.Nav()))
}

type permissionResponse struct {
	Resolved bool     `json:"resolved"`
	Code     string   `json:"code,omitempty"`
	Roles    []string `json:"roles"`
	Tables   []string `json:"tables"`
	Reason   string   `json:"reason,omitempty"`
}

// GetPermission shows what the session resolved to; an unresolved grant is
// still a 200 so the UI can render the reason.
func (h *Handler) GetPermission(c *gin.Context) {
	g, err := h.nav.Grant()
	resp := permissionResponse{
		Resolved: err == nil && g.Resolved(),
		Code:     g.Code,
		Roles:    g.Session.Roles,
		Tables:   g.Set.Tables(),
	}
	if resp.Roles == nil {
		resp.Roles = []string{}
	}
	if err != nil {
		resp.Reason = err.Error()
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func (h *Handler) ListCatalog(c *gin.Context) {
	items, err := h.nav.Catalog(c.Request.Context(), c.Param("resource"), c.Request.URL.Query())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(items))
}
