package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"thekua/internal/domain/model"
	"thekua/internal/repository"
	"thekua/internal/usecase"
)

type AdminAuditHandler struct {
	uc *usecase.AdminAuditUsecase
}

func NewAdminAuditHandler(uc *usecase.AdminAuditUsecase) *AdminAuditHandler {
	return &AdminAuditHandler{uc: uc}
}

func (h *AdminAuditHandler) RegisterRoutes(admin *echo.Group) {
	admin.GET("/audit-logs", h.list)
}

// GET /admin/audit-logs?action=&resourceType=&resourceId=&actorUserId=&from=&to=&page=&limit=
func (h *AdminAuditHandler) list(c echo.Context) error {
	page, limit, ok := parsePaging(c, 50)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorBody("invalid paging"))
	}

	f := repository.AuditLogFilter{
		Action:       model.AuditAction(c.QueryParam("action")),
		ResourceType: model.AuditResourceType(c.QueryParam("resourceType")),
		ResourceID:   c.QueryParam("resourceId"),
		Page:         page,
		Limit:        limit,
	}

	if v := c.QueryParam("actorUserId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return c.JSON(http.StatusBadRequest, errorBody("invalid actorUserId"))
		}
		f.ActorUserID = id
	}
	for key, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		v := c.QueryParam(key)
		if v == "" {
			continue
		}
		tm, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody("invalid "+key))
		}
		*dst = &tm
	}

	out, err := h.uc.List(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, DataResponse{Success: true, Data: out})
}
