package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicemesh/internal/app"
	"github.com/dkeye/voicemesh/internal/core"
	"github.com/dkeye/voicemesh/internal/domain"
	"github.com/dkeye/voicemesh/internal/mesh"
	"github.com/dkeye/voicemesh/internal/signaling"
)

// Controller is the agent surface the control API drives. *app.Agent
// satisfies it.
type Controller interface {
	Join(ctx context.Context, room domain.RoomID) error
	Leave(ctx context.Context) error
	SetMuted(ctx context.Context, muted bool) error
	SetGain(ctx context.Context, sid domain.SessionID, g float64) (float64, error)
	Participants(ctx context.Context) ([]mesh.Participant, error)
	Status(ctx context.Context) (mesh.Status, error)
	StartScreenShare(ctx context.Context) error
	StopScreenShare(ctx context.Context) error
}

var _ Controller = (*app.Agent)(nil)

type JoinRequest struct {
	Room string `json:"room" binding:"required,max=64"`
}

type MuteRequest struct {
	Muted *bool `json:"muted" binding:"required"`
}

type GainRequest struct {
	Gain *float64 `json:"gain" binding:"required"`
}

type GainResponse struct {
	SessionID domain.SessionID `json:"sessionId"`
	Gain      float64          `json:"gain"`
}

// SetupControlRouter serves the local agent's control API.
func SetupControlRouter(mode string, ctl Controller) *gin.Engine {
	r := newEngine(mode)
	api := r.Group("/api")

	api.GET("/status", func(c *gin.Context) {
		st, err := ctl.Status(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	})

	api.GET("/participants", func(c *gin.Context) {
		ps, err := ctl.Participants(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"participants": ps})
	})

	api.PUT("/participants/:sid/gain", func(c *gin.Context) {
		var req GainRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid gain"})
			return
		}
		sid := domain.SessionID(c.Param("sid"))
		g, err := ctl.SetGain(c.Request.Context(), sid, *req.Gain)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, GainResponse{SessionID: sid, Gain: g})
	})

	api.POST("/mute", func(c *gin.Context) {
		var req MuteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid muted"})
			return
		}
		if err := ctl.SetMuted(c.Request.Context(), *req.Muted); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"muted": *req.Muted})
	})

	api.POST("/screenshare", func(c *gin.Context) {
		if err := ctl.StartScreenShare(c.Request.Context()); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"screenSharing": true})
	})

	api.DELETE("/screenshare", func(c *gin.Context) {
		if err := ctl.StopScreenShare(c.Request.Context()); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	api.POST("/room/join", func(c *gin.Context) {
		var req JoinRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid room"})
			return
		}
		if err := ctl.Join(c.Request.Context(), domain.RoomID(req.Room)); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"room": req.Room})
	})

	api.POST("/room/leave", func(c *gin.Context) {
		if err := ctl.Leave(c.Request.Context()); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	return r
}

func fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("control request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	var capErr *core.CaptureError
	switch {
	case errors.Is(err, signaling.ErrMissingRoom):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnknownPeer):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNotInRoom),
		errors.Is(err, mesh.ErrAlreadyJoined),
		errors.Is(err, app.ErrAlreadySharing),
		errors.Is(err, app.ErrNotSharing):
		return http.StatusConflict
	case errors.As(err, &capErr):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
