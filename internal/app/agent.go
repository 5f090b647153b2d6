// Package app wires the mesh coordinator to the outside world. Agent
// methods are safe to call from any goroutine; they hop onto the event loop.
package app

//go:generate mockgen -source=agent.go -destination=mock_agent_test.go -package=app

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicemesh/internal/domain"
	"github.com/dkeye/voicemesh/internal/mesh"
)

var (
	ErrAlreadySharing = errors.New("screen share already active")
	ErrNotSharing     = errors.New("screen share not active")
)

// Mesh is the part of *mesh.Coordinator the agent drives.
type Mesh interface {
	Join(ctx context.Context, room domain.RoomID) error
	Leave() error
	SetMuted(muted bool)
	StartScreenShare(track webrtc.TrackLocal) error
	StopScreenShare()
	SetGain(sid domain.SessionID, g float64) (float64, error)
	Participants() []mesh.Participant
	Status() mesh.Status
	Subscribe(l mesh.Listener)
}

// Loop is the event loop the mesh runs on.
type Loop interface {
	Call(ctx context.Context, fn func()) error
	Go(work func(), done func())
}

type ScreenSource interface {
	Track() webrtc.TrackLocal
	Close() error
}

type ScreenOpener func() (ScreenSource, error)

type Agent struct {
	loop       Loop
	mesh       Mesh
	openScreen ScreenOpener
	log        zerolog.Logger

	mu      sync.Mutex
	screen  ScreenSource
	opening bool
}

// NewAgent must be called on the loop, or before it runs, since it
// subscribes to mesh notifications.
func NewAgent(loop Loop, m Mesh, openScreen ScreenOpener) *Agent {
	a := &Agent{
		loop:       loop,
		mesh:       m,
		openScreen: openScreen,
		log:        log.With().Str("module", "app").Logger(),
	}
	m.Subscribe(a.onNotification)
	return a
}

func (a *Agent) onNotification(n mesh.Notification) {
	switch n.Kind {
	case mesh.KindLeft, mesh.KindRelayTerminal:
		// the coordinator already forgot the track
		a.loop.Go(a.releaseScreen, nil)
	}
}

func (a *Agent) Join(ctx context.Context, room domain.RoomID) error {
	var err error
	if cerr := a.loop.Call(ctx, func() { err = a.mesh.Join(ctx, room) }); cerr != nil {
		return cerr
	}
	return err
}

func (a *Agent) Leave(ctx context.Context) error {
	var err error
	if cerr := a.loop.Call(ctx, func() { err = a.mesh.Leave() }); cerr != nil {
		return cerr
	}
	return err
}

func (a *Agent) SetMuted(ctx context.Context, muted bool) error {
	return a.loop.Call(ctx, func() { a.mesh.SetMuted(muted) })
}

func (a *Agent) SetGain(ctx context.Context, sid domain.SessionID, g float64) (float64, error) {
	var (
		v   float64
		err error
	)
	if cerr := a.loop.Call(ctx, func() { v, err = a.mesh.SetGain(sid, g) }); cerr != nil {
		return 0, cerr
	}
	return v, err
}

func (a *Agent) Participants(ctx context.Context) ([]mesh.Participant, error) {
	var out []mesh.Participant
	err := a.loop.Call(ctx, func() { out = a.mesh.Participants() })
	return out, err
}

func (a *Agent) Status(ctx context.Context) (mesh.Status, error) {
	var st mesh.Status
	err := a.loop.Call(ctx, func() { st = a.mesh.Status() })
	return st, err
}

// StartScreenShare opens the display off the loop, then hands the track to
// every session.
func (a *Agent) StartScreenShare(ctx context.Context) error {
	a.mu.Lock()
	if a.screen != nil || a.opening {
		a.mu.Unlock()
		return ErrAlreadySharing
	}
	a.opening = true
	a.mu.Unlock()

	src, err := a.openScreen()
	if err != nil {
		a.finishOpening(nil)
		return err
	}

	var meshErr error
	if cerr := a.loop.Call(ctx, func() { meshErr = a.mesh.StartScreenShare(src.Track()) }); cerr != nil {
		meshErr = cerr
	}
	if meshErr != nil {
		a.finishOpening(nil)
		if err := src.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close screen source")
		}
		return meshErr
	}
	a.finishOpening(src)
	a.log.Info().Msg("screen share started")
	return nil
}

func (a *Agent) finishOpening(src ScreenSource) {
	a.mu.Lock()
	a.opening = false
	a.screen = src
	a.mu.Unlock()
}

func (a *Agent) StopScreenShare(ctx context.Context) error {
	a.mu.Lock()
	sharing := a.screen != nil
	a.mu.Unlock()
	if !sharing {
		return ErrNotSharing
	}
	if err := a.loop.Call(ctx, a.mesh.StopScreenShare); err != nil {
		return err
	}
	a.releaseScreen()
	a.log.Info().Msg("screen share stopped")
	return nil
}

func (a *Agent) releaseScreen() {
	a.mu.Lock()
	src := a.screen
	a.screen = nil
	a.mu.Unlock()
	if src == nil {
		return
	}
	if err := src.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close screen source")
	}
}

// Sharing reports whether a screen source is open.
func (a *Agent) Sharing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.screen != nil
}
