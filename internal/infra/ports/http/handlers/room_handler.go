package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/GiorgioBrux/raimu-sub001/internal/infra/adapters/memory"
)

// RoomHandler serves the REST mirror of room status so pre-join pages can
// poll a PIN without holding a signaling connection.
type RoomHandler struct {
	registry memory.RoomRegistry
}

func NewRoomHandler(registry memory.RoomRegistry) *RoomHandler {
	return &RoomHandler{registry: registry}
}

func (h *RoomHandler) StatusByPIN(c echo.Context) error {
	status, ok := h.registry.StatusByPIN(c.Param("pin"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "room not found"})
	}

	return c.JSON(http.StatusOK, status)
}

func (h *RoomHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
