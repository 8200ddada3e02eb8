// Package api exposes a small local HTTP status surface: health, metrics,
// offline store state, and an on-demand redaction endpoint. It binds to
// loopback by default and carries no authentication; it is a clinic-machine
// diagnostic surface, not a public API.
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medecho/internal/logging"
	"medecho/internal/offline"
	"medecho/internal/redact"
)

// ConnectivitySource reports current connectivity state.
type ConnectivitySource interface {
	Online() bool
}

// Server is the local status HTTP server.
type Server struct {
	echo  *echo.Echo
	store *offline.Store
	conn  ConnectivitySource
}

// New builds the server around an offline store and a connectivity source.
// conn may be nil when no monitor is running.
func New(store *offline.Store, conn ConnectivitySource) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, store: store, conn: conn}

	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/v1/store/stats", s.storeStats)
	e.GET("/v1/store/pending", s.storePending)
	e.POST("/v1/redact", s.redactText)

	return s
}

// Start listens on addr until the context is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		errc <- s.echo.Start(addr)
	}()
	lg := logging.WithComponent("api")
	lg.Info().Str("addr", addr).Msg("status server listening")

	select {
	case <-ctx.Done():
		return s.echo.Shutdown(context.Background())
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler { return s.echo }

type healthResponse struct {
	Status string `json:"status"`
	Online bool   `json:"online"`
}

func (s *Server) health(c echo.Context) error {
	online := false
	if s.conn != nil {
		online = s.conn.Online()
	}
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Online: online})
}

func (s *Server) storeStats(c echo.Context) error {
	stats, err := s.store.GetStats()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) storePending(c echo.Context) error {
	pending, err := s.store.ListPending()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pending)
}

type redactRequest struct {
	Text string `json:"text"`
}

type redactResponse struct {
	Redacted string   `json:"redacted"`
	Labels   []string `json:"labels"`
}

func (s *Server) redactText(c echo.Context) error {
	var req redactRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	redacted, labels := redact.Redact(req.Text)
	return c.JSON(http.StatusOK, redactResponse{Redacted: redacted, Labels: labels})
}
