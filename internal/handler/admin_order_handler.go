package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"thekua/internal/repository"
	"thekua/internal/usecase"
)

type AdminOrderHandler struct {
	uc *usecase.AdminOrderUsecase
}

func NewAdminOrderHandler(uc *usecase.AdminOrderUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{uc: uc}
}

type OrderStatusUpdateRequest struct {
	Status string `json:"status"`
}

// adminはAuthJWT + AdminRoleGuard 済みのグループ
func (h *AdminOrderHandler) RegisterRoutes(admin *echo.Group) {
	admin.GET("/orders", h.list)
	admin.GET("/orders/:id", h.get)
	admin.PUT("/orders/:id/status", h.updateStatus)
	admin.DELETE("/orders/:id", h.delete)
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	page, limit, ok := parsePaging(c, 50)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorBody("invalid paging"))
	}

	var fromPtr *time.Time
	if v := c.QueryParam("from"); v != "" {
		tm, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody("invalid from"))
		}
		fromPtr = &tm
	}

	var toPtr *time.Time
	if v := c.QueryParam("to"); v != "" {
		tm, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody("invalid to"))
		}
		toPtr = &tm
	}

	out, err := h.uc.List(c.Request().Context(), repository.AdminOrderListFilter{
		Page:          page,
		Limit:         limit,
		OrderStatus:   c.QueryParam("orderStatus"),
		PaymentStatus: c.QueryParam("paymentStatus"),
		UserID:        c.QueryParam("userId"),
		From:          fromPtr,
		To:            toPtr,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, DataResponse{Success: true, Data: out})
}

func (h *AdminOrderHandler) get(c echo.Context) error {
	out, err := h.uc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, DataResponse{Success: true, Data: out})
}

func (h *AdminOrderHandler) updateStatus(c echo.Context) error {
	var req OrderStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}

	//操作した管理者IDを取得（監査ログ用）
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorBody("unauthorized"))
	}

	if err := h.uc.UpdateStatus(
		c.Request().Context(),
		adminID,
		c.Param("id"),
		usecase.AdminUpdateOrderStatusInput{Status: req.Status},
	); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "updated"})
}

func (h *AdminOrderHandler) delete(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorBody("unauthorized"))
	}

	if err := h.uc.Delete(c.Request().Context(), adminID, c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "deleted"})
}
