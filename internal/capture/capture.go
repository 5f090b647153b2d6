// Package capture owns the local microphone and its activity detector.
package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/voicemesh/internal/activity"
	"github.com/dkeye/voicemesh/internal/core"
)

// LocalCapture is the only component allowed to start, stop or mute the
// microphone. Sessions read its track but never mutate it.
type LocalCapture struct {
	source      Source
	constraints Constraints
	detector    *activity.Detector
	now         func() time.Time
	log         zerolog.Logger

	mu       sync.Mutex
	stream   Stream
	cancel   context.CancelFunc
	workers  conc.WaitGroup
	onChange func(speaking bool)

	muted atomic.Bool
}

type Option func(*LocalCapture)

// WithClock replaces time.Now for the analysis loop.
func WithClock(now func() time.Time) Option {
	return func(c *LocalCapture) { c.now = now }
}

func WithConstraints(cs Constraints) Option {
	return func(c *LocalCapture) { c.constraints = cs }
}

func New(src Source, cfg activity.Config, opts ...Option) *LocalCapture {
	c := &LocalCapture{
		source:      src,
		constraints: DefaultConstraints(),
		detector:    activity.NewDetector(cfg),
		now:         time.Now,
		log:         log.With().Str("module", "capture").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnSpeakingChanged registers fn; it runs on the capture goroutine.
func (c *LocalCapture) OnSpeakingChanged(fn func(speaking bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Start acquires the microphone. Calling it again while running returns the
// open stream. Failures are reported as *core.CaptureError and never retried.
func (c *LocalCapture) Start(ctx context.Context) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return c.stream, nil
	}

	stream, err := c.source.Open(ctx, c.constraints)
	if err != nil {
		c.log.Error().Err(err).Msg("microphone open failed")
		var ce *core.CaptureError
		if errors.As(err, &ce) {
			return nil, ce
		}
		return nil, &core.CaptureError{Err: err}
	}

	stream.SetEnabled(!c.muted.Load())
	runCtx, cancel := context.WithCancel(context.Background())
	c.stream = stream
	c.cancel = cancel
	c.detector.Start(c.now())
	c.workers.Go(func() { c.analyze(runCtx, stream) })

	c.log.Info().
		Bool("echo_cancellation", c.constraints.EchoCancellation).
		Bool("noise_suppression", c.constraints.NoiseSuppression).
		Bool("auto_gain", c.constraints.AutoGainControl).
		Msg("capture started")
	return stream, nil
}

func (c *LocalCapture) analyze(ctx context.Context, stream Stream) {
	for {
		pcm, err := stream.ReadPCM()
		if err != nil {
			if ctx.Err() == nil {
				c.log.Error().Err(err).Msg("capture read error, stopping analysis")
			}
			return
		}
		u := c.detector.Update(activity.RMSInt16(pcm), c.muted.Load(), c.now())
		if !u.Changed {
			continue
		}
		c.mu.Lock()
		fn := c.onChange
		c.mu.Unlock()
		if fn != nil {
			fn(u.Speaking)
		}
	}
}

// SetMuted toggles transmission; capture and calibration keep running.
func (c *LocalCapture) SetMuted(muted bool) {
	c.muted.Store(muted)
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream != nil {
		stream.SetEnabled(!muted)
	}
	c.log.Info().Bool("muted", muted).Msg("mute changed")
}

func (c *LocalCapture) Muted() bool { return c.muted.Load() }

// Running reports whether the microphone is open.
func (c *LocalCapture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// Track returns the outgoing audio track, or nil when stopped.
func (c *LocalCapture) Track() webrtc.TrackLocal {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return nil
	}
	return c.stream.Track()
}

func (c *LocalCapture) Activity() activity.State { return c.detector.Snapshot() }

// SetActivityConfig applies new detector thresholds to the running capture.
func (c *LocalCapture) SetActivityConfig(cfg activity.Config) { c.detector.SetConfig(cfg) }

// Stop releases the microphone and the analysis loop. It is idempotent.
func (c *LocalCapture) Stop() {
	c.mu.Lock()
	stream, cancel := c.stream, c.cancel
	c.stream, c.cancel = nil, nil
	c.mu.Unlock()
	if stream == nil {
		return
	}
	cancel()
	if err := stream.Close(); err != nil {
		c.log.Error().Err(err).Msg("capture close error")
	}
	c.workers.Wait()
	c.detector.Reset()
	c.log.Info().Msg("capture stopped")
}
