package order

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/library-admin/internal/handler"
	"github.com/jwalitptl/library-admin/internal/middleware"
	"github.com/jwalitptl/library-admin/internal/model"
	orderService "github.com/jwalitptl/library-admin/internal/service/order"
	apperrors "github.com/jwalitptl/library-admin/pkg/errors"
)

const defaultView = "active"

// Views hands out the controller behind each order view.
type Views interface {
	Controller(view string) (*orderService.Controller, error)
	History(ctx context.Context, view string) ([]orderService.WithHistory, error)
}

type Handler struct {
	views Views
	feed  *orderService.Feed
}

func NewHandler(views Views, feed *orderService.Feed) *Handler {
	return &Handler{views: views, feed: feed}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	orders := r.Group("/orders")
	{
		orders.GET("", h.ListOrders)
		orders.POST("/refresh", h.RefreshOrders)
		orders.GET("/history", h.ListHistory)
		orders.POST("/:id/confirm", h.transition(orderService.KindConfirm))
		orders.POST("/:id/cancel", h.transition(orderService.KindCancel))
		orders.POST("/:id/checkout", h.transition(orderService.KindCheckout))
		orders.POST("/:id/return", h.transition(orderService.KindAcceptReturn))
	}
	r.GET("/notifications", h.ListNotifications)
}

func (h *Handler) controller(c *gin.Context) (*orderService.Controller, bool) {
	ctrl, err := h.views.Controller(c.DefaultQuery("view", defaultView))
	if err != nil {
		handler.RespondError(c, err)
		return nil, false
	}
	return ctrl, true
}

func (h *Handler) ListOrders(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(ctrl.Snapshot()))
}

func (h *Handler) RefreshOrders(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	if err := ctrl.Refresh(c.Request.Context()); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(ctrl.Snapshot()))
}

func (h *Handler) ListHistory(c *gin.Context) {
	rows, err := h.views.History(c.Request.Context(), c.DefaultQuery("view", defaultView))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(rows))
}

func (h *Handler) transition(kind orderService.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			handler.RespondError(c, apperrors.InvalidRequest("invalid order id"))
			return
		}

		var bookCode string
		if kind.NeedsBookCode() {
			var req model.BookCodeRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondBindError(c, err)
				return
			}
			bookCode = req.BookCode
		}

		ctrl, ok := h.controller(c)
		if !ok {
			return
		}
		if err := ctrl.Do(c.Request.Context(), id, kind, bookCode); err != nil {
			handler.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, handler.NewSuccessResponse(ctrl.Snapshot()))
	}
}

func respondBindError(c *gin.Context, err error) {
	fields, ok := middleware.ValidationErrors(err)
	if !ok {
		handler.RespondError(c, apperrors.InvalidRequest("invalid request body"))
		return
	}
	handler.RespondErrorWithData(c, apperrors.TransitionPrecondition("book code is required"), fields)
}

// ListNotifications drains the transition notifications since the last call.
func (h *Handler) ListNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.feed.Drain()))
}
