// Package control implements the Control Service: the HTTP frontend
// that exposes read-only liveness summaries and the synchronous
// push/ack broker described in spec §4.3-§4.4.
package control

import (
	"context"
	"fmt"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/iotgw/device-gateway/internal/kvs"
	"github.com/iotgw/device-gateway/internal/relay"
)

// maxPushBodyBytes is the hard cap on a push request body (spec §4.3
// step 1, §9).
const maxPushBodyBytes = 262144

// uplinkPollInterval and uplinkPollAttempts bound the push broker's
// wait for a device ack (spec §4.3 step 6): 50 * 100ms ~= 5s.
const (
	uplinkPollInterval = 100 * time.Millisecond
	uplinkPollAttempts = 50
)

// Server is the Control Service's HTTP API.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
	kv         *kvs.Client
	relay      *relay.Hub
}

// NewServer wires every route the Control Service exposes except
// /ws/events, which SetRelay adds.
func NewServer(kv *kvs.Client) *Server {
	e := echo.New()
	e.Use(middleware.BodyLimit(maxPushBodyBytes + 4096))

	s := &Server{echo: e, kv: kv}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/query/service_version", s.serviceVersionHandler)
	s.echo.GET("/query/devices_num", s.devicesNumHandler)
	s.echo.GET("/query/devices_alive_num", s.devicesAliveNumHandler)
	s.echo.GET("/query/device_is_alive/:sn", s.deviceIsAliveHandler)
	s.echo.GET("/query/device_status/:sn", s.deviceStatusHandler)
	s.echo.POST("/push/push_msg", s.pushMsgHandler)
}

// Start starts the HTTP server on the given address (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.echo,
	}
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("control: serve %s: %w", addr, err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
