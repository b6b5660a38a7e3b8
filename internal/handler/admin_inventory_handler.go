package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"thekua/internal/usecase"
)

// InventoryUpdateRequest は在庫更新の入力です。
type InventoryUpdateRequest struct {
	Stock  int64  `json:"stock"`
	Reason string `json:"reason"`
}

type AdminInventoryHandler struct {
	uc *usecase.InventoryUsecase
}

func NewAdminInventoryHandler(uc *usecase.InventoryUsecase) *AdminInventoryHandler {
	return &AdminInventoryHandler{uc: uc}
}

func (h *AdminInventoryHandler) RegisterRoutes(admin *echo.Group) {
	admin.GET("/products/:id/stock", h.history)
	admin.PUT("/products/:id/stock", h.setStock)
}

func (h *AdminInventoryHandler) history(c echo.Context) error {
	_, limit, ok := parsePaging(c, 20)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorBody("invalid limit"))
	}

	out, err := h.uc.History(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, DataResponse{Success: true, Data: out})
}

func (h *AdminInventoryHandler) setStock(c echo.Context) error {
	var req InventoryUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorBody("unauthorized"))
	}

	if err := h.uc.SetStock(c.Request().Context(), adminID, c.Param("id"), usecase.SetStockInput{
		Stock:  req.Stock,
		Reason: req.Reason,
	}); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "updated"})
}
