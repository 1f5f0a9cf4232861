package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/iotgw/device-gateway/internal/device"
	"github.com/iotgw/device-gateway/internal/gwerr"
	"github.com/iotgw/device-gateway/pkg/version"
)

// serviceVersionHandler handles GET /query/service_version.
func (s *Server) serviceVersionHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, envelope{
		Namespace: "/query/http_service_version",
		Value:     version.Full(),
	})
}

// devicesNumHandler handles GET /query/devices_num.
func (s *Server) devicesNumHandler(c *echo.Context) error {
	n, err := s.kv.BornCount(c.Request().Context())
	if err != nil {
		return s.unavailable(c, "/query/devices_num", err)
	}
	return c.JSON(http.StatusOK, envelope{
		Namespace: "/query/devices_num",
		Status:    statusOK,
		Value:     fmt.Sprintf("%d", n),
	})
}

// devicesAliveNumHandler handles GET /query/devices_alive_num.
func (s *Server) devicesAliveNumHandler(c *echo.Context) error {
	n, err := s.kv.AliveCount(c.Request().Context())
	if err != nil {
		return s.unavailable(c, "/query/devices_alive_num", err)
	}
	return c.JSON(http.StatusOK, envelope{
		Namespace: "/query/devices_alive_num",
		Status:    statusOK,
		Value:     fmt.Sprintf("%d", n),
	})
}

// deviceIsAliveHandler handles GET /query/device_is_alive/:sn.
func (s *Server) deviceIsAliveHandler(c *echo.Context) error {
	sn := c.Param("sn")
	alive, err := s.kv.IsAlive(c.Request().Context(), sn)
	if err != nil {
		return s.unavailable(c, "/query/device_is_alive", err)
	}
	value := "offline"
	if alive {
		value = "online"
	}
	return c.JSON(http.StatusOK, envelope{
		Namespace: "/query/device_is_alive",
		Status:    statusOK,
		SN:        sn,
		Value:     value,
	})
}

// deviceStatusHandler handles GET /query/device_status/:sn, a debug
// endpoint supplementing the spec with the full status hash (grounded
// on the original implementation's query_redis.rs; see SPEC_FULL §3.3).
func (s *Server) deviceStatusHandler(c *echo.Context) error {
	sn := c.Param("sn")
	status, err := s.kv.Status(c.Request().Context(), sn)
	if err != nil {
		return s.unavailable(c, "/query/device_status", err)
	}
	if len(status) == 0 {
		return c.JSON(http.StatusOK, envelope{
			Namespace: "/query/device_status",
			Status:    statusNotFound,
			SN:        sn,
			Error:     "no value",
		})
	}
	return c.JSON(http.StatusOK, envelope{
		Namespace: "/query/device_status",
		Status:    statusOK,
		SN:        sn,
		Value:     status,
	})
}

// pushMsgHandler handles POST /push/push_msg, the synchronous
// request/response broker (spec §4.3).
func (s *Server) pushMsgHandler(c *echo.Context) error {
	ctx := c.Request().Context()

	body, err := readLimited(c.Request().Body, maxPushBodyBytes)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			return s.pushError(c, http.StatusBadRequest, statusRequestFail, gwerr.ReasonOverflow)
		}
		return s.pushError(c, http.StatusBadRequest, statusRequestFail, gwerr.ReasonInvalidData)
	}

	sn, ok := device.ExtractSN(body)
	if !ok {
		return s.pushError(c, http.StatusBadRequest, statusRequestFail, gwerr.ReasonNoSN)
	}

	alive, err := s.kv.IsAlive(ctx, sn)
	if err != nil {
		slog.Error("push: alive check failed", "sn", sn, "error", err)
		return s.pushError(c, http.StatusBadRequest, statusRequestFail, gwerr.ReasonSendFail(err.Error()))
	}
	if !alive {
		return s.pushError(c, http.StatusBadRequest, statusRequestFail, gwerr.ReasonOffline)
	}

	if err := s.kv.ClearUplink(ctx, sn); err != nil {
		slog.Error("push: uplink preflight clear failed", "sn", sn, "error", err)
		return s.pushError(c, http.StatusBadRequest, statusRequestFail, gwerr.ReasonSendFail(err.Error()))
	}
	if err := s.kv.SetDownlink(ctx, sn, string(body)); err != nil {
		slog.Error("push: downlink write failed", "sn", sn, "error", err)
		return s.pushError(c, http.StatusBadRequest, statusRequestFail, gwerr.ReasonSendFail(err.Error()))
	}

	ack, err := s.awaitUplink(ctx, sn)
	if err != nil {
		return s.pushError(c, http.StatusBadRequest, statusRequestFail, gwerr.ReasonNoResponse)
	}

	return c.JSON(http.StatusOK, envelope{
		Namespace: "/push/push_msg",
		Status:    statusOK,
		Value:     ack,
	})
}

// awaitUplink polls the uplink field every uplinkPollInterval, up to
// uplinkPollAttempts times (spec §4.3 step 6).
func (s *Server) awaitUplink(ctx context.Context, sn string) (string, error) {
	ticker := time.NewTicker(uplinkPollInterval)
	defer ticker.Stop()

	for i := 0; i < uplinkPollAttempts; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		value, ok, err := s.kv.TakeUplink(ctx, sn)
		if err != nil {
			return "", err
		}
		if ok {
			return value, nil
		}
	}
	return "", gwerr.ErrTimeout
}

func (s *Server) pushError(c *echo.Context, httpStatus int, status string, reason gwerr.PushReason) error {
	return c.JSON(httpStatus, envelope{
		Namespace: "/push/push_msg",
		Status:    status,
		Error:     string(reason),
	})
}

func (s *Server) unavailable(c *echo.Context, namespace string, err error) error {
	slog.Error("control: kvs unavailable", "namespace", namespace, "error", err)
	return c.JSON(http.StatusOK, envelope{
		Namespace: namespace,
		Status:    statusNotFound,
		Error:     "no value",
	})
}

var errBodyTooLarge = errors.New("control: request body exceeds limit")

// readLimited reads up to limit+1 bytes to detect an oversize body
// without buffering an unbounded payload.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, errBodyTooLarge
	}
	return body, nil
}
