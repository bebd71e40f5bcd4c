package server

import (
	"github.com/labstack/echo/v4"

	"github.com/GiorgioBrux/raimu-sub001/internal/application/config"
	"github.com/GiorgioBrux/raimu-sub001/internal/infra/ports/http/handlers"
	"github.com/GiorgioBrux/raimu-sub001/internal/infra/ports/http/middleware"
)

func New(
	cfg *config.Config,
	roomHandler *handlers.RoomHandler,
	sampleHandler *handlers.VoiceSampleHandler,
	wsHandler *handlers.WebSocketHandler,
) *echo.Echo {
	e := echo.New()

	e.HideBanner = true

	e.Use(middleware.SlogLogger())
	e.Use(middleware.PrometheusMiddleware())

	e.GET("/health", roomHandler.Health)

	api := e.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ws", wsHandler.Handle)

			v1.GET("/rooms/:pin/status", roomHandler.StatusByPIN)

			if sampleHandler != nil {
				v1.POST("/voice-samples", sampleHandler.Upload)
				v1.GET("/voice-samples/:id", sampleHandler.Get)
				v1.DELETE("/voice-samples/user/:userId", sampleHandler.DeleteByUser)
			}
		}
	}

	e.Static("/", cfg.StaticDir)

	return e
}
