// Package httpapi wires the HTTP surface: the WebSocket upgrade endpoint,
// a health check, and the Prometheus metrics endpoint (spec §4.2, §6.2),
// grounded on the same echo + gorilla/websocket shape the carrier itself
// is modelled after.
package httpapi

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rustyguts/kazahane/internal/connection"
	"github.com/rustyguts/kazahane/internal/logging"
	"github.com/rustyguts/kazahane/internal/transport"
)

// Handler upgrades incoming requests to the carrier and feeds the
// resulting connections to the server task.
type Handler struct {
	upgrader websocket.Upgrader
	accepted chan<- connection.Carrier
}

// New returns a Handler that pushes every upgraded connection onto accepted.
func New(accepted chan<- connection.Carrier) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		accepted: accepted,
	}
}

// Register binds the routes on an Echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.Use(middleware.Recover())
	e.GET("/ws", h.handleWebSocket)
	e.GET("/healthz", h.handleHealthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

func (h *Handler) handleWebSocket(c echo.Context) error {
	log := logging.Component("httpapi")
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Debug().Err(err).Str("remote", c.RealIP()).Msg("websocket upgrade failed")
		return err
	}
	h.accepted <- transport.New(conn)
	return nil
}

func (h *Handler) handleHealthz(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
