package handler

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"thekua/internal/middleware"
	"thekua/internal/usecase"
)

type ErrorResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type DataResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

func errorBody(msg string) ErrorResponse {
	return ErrorResponse{Success: false, Message: msg}
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Success: false, Message: he.Message, Details: he.Details})
	}

	//500
	return c.JSON(http.StatusInternalServerError, errorBody("internal error"))
}

// AuthJWTが入れた管理者ID
func getUserIDFromContext(c echo.Context) (int64, bool) {
	v := c.Get(middleware.CtxUserIDKey)
	if v == nil {
		return 0, false
	}

	id, ok := v.(int64)
	if !ok {
		return 0, false
	}

	return id, true
}
