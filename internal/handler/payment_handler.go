package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"thekua/internal/usecase"
)

// webhookボディの上限
const maxWebhookBody = 1 << 20

// /api/shop/payment/phonepe
type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

type InitiateRequest struct {
	OrderID string `json:"orderId"`
}

// 返金は管理者だけ
func (h *PaymentHandler) RegisterRoutes(api *echo.Group, adminMW ...echo.MiddlewareFunc) {
	g := api.Group("/shop/payment/phonepe")

	g.POST("/initiate", h.initiate)
	g.GET("/status/:merchantOrderId", h.status)
	g.POST("/webhook", h.webhook)

	g.POST("/refund", h.refund, adminMW...)
	g.GET("/refund/:merchantRefundId/status", h.refundStatus, adminMW...)
}

func (h *PaymentHandler) initiate(c echo.Context) error {
	var req InitiateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}

	out, err := h.uc.Initiate(c.Request().Context(), req.OrderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) status(c echo.Context) error {
	raw, err := h.uc.PaymentStatus(c.Request().Context(), c.Param("merchantOrderId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSONBlob(http.StatusOK, raw)
}

// 署名検証のため生のボディを読む（Bindは使わない）
func (h *PaymentHandler) webhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}

	if err := h.uc.Webhook(c.Request().Context(), c.Request().Header.Get("Authorization"), body); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "ok"})
}

func (h *PaymentHandler) refund(c echo.Context) error {
	var req usecase.RefundInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorBody("unauthorized"))
	}

	out, err := h.uc.Refund(c.Request().Context(), adminID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, DataResponse{Success: true, Data: out})
}

func (h *PaymentHandler) refundStatus(c echo.Context) error {
	out, err := h.uc.RefundStatus(c.Request().Context(), c.Param("merchantRefundId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, DataResponse{Success: true, Data: out})
}
