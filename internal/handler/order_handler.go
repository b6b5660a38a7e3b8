package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"thekua/internal/domain/model"
	"thekua/internal/usecase"
)

// /api/shop/order
type OrderHandler struct {
	orders   *usecase.OrderUsecase
	payments *usecase.PaymentUsecase
}

func NewOrderHandler(orders *usecase.OrderUsecase, payments *usecase.PaymentUsecase) *OrderHandler {
	return &OrderHandler{orders: orders, payments: payments}
}

func (h *OrderHandler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/shop/order")

	g.POST("/create", h.create)
	g.POST("/capture", h.capture)
	g.GET("/payment-status/:merchantTransactionId", h.paymentStatus)
	g.GET("/list/:userId", h.list)
	g.GET("/details/:id", h.details)
}

func (h *OrderHandler) create(c echo.Context) error {
	var req usecase.CreateOrderInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}

	out, err := h.orders.CreateOrder(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) capture(c echo.Context) error {
	var req usecase.CaptureInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}

	out, err := h.payments.Capture(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}

	switch model.PaymentStatus(out.Order.PaymentStatus) {
	case model.PaymentStatusPaid:
		return c.JSON(http.StatusOK, out)
	case model.PaymentStatusFailed:
		return c.JSON(http.StatusBadRequest, out)
	default:
		return c.JSON(http.StatusAccepted, out)
	}
}

// ゲートウェイの応答をそのまま返す
func (h *OrderHandler) paymentStatus(c echo.Context) error {
	raw, err := h.payments.PaymentStatus(c.Request().Context(), c.Param("merchantTransactionId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func (h *OrderHandler) list(c echo.Context) error {
	page, limit, ok := parsePaging(c, 20)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorBody("invalid paging"))
	}

	out, err := h.orders.ListUserOrders(c.Request().Context(), c.Param("userId"), page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, DataResponse{Success: true, Data: out})
}

func (h *OrderHandler) details(c echo.Context) error {
	out, err := h.orders.GetOrder(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, DataResponse{Success: true, Data: out})
}

// page/limitのクエリ。未指定ならデフォルト
func parsePaging(c echo.Context, defaultLimit int) (int, int, bool) {
	page := 1
	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, false
		}
		page = p
	}

	limit := defaultLimit
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, false
		}
		limit = l
	}
	return page, limit, true
}
