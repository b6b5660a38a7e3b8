package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"thekua/internal/config"
	"thekua/internal/handler"
	"thekua/internal/middleware"
)

type Handlers struct {
	Orders    *handler.OrderHandler
	Payments  *handler.PaymentHandler
	Admin     *handler.AdminOrderHandler
	Inventory *handler.AdminInventoryHandler
	Audit     *handler.AdminAuditHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api")
	adminMW := []echo.MiddlewareFunc{middleware.AuthJWT(cfg.JWTSecret), middleware.AdminRoleGuard()}

	h.Orders.RegisterRoutes(api)
	h.Payments.RegisterRoutes(api, adminMW...)

	admin := api.Group("/admin", adminMW...)
	h.Admin.RegisterRoutes(admin)
	h.Inventory.RegisterRoutes(admin)
	h.Audit.RegisterRoutes(admin)
}
