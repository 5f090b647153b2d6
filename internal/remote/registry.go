package remote

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/voicemesh/internal/activity"
	"github.com/dkeye/voicemesh/internal/core"
	"github.com/dkeye/voicemesh/internal/domain"
)

// Registry owns one Analyzer per remote session and the shared playback
// context, which lives exactly as long as at least one analyzer does.
type Registry struct {
	newDecoder  DecoderFactory
	newPlayback PlaybackFactory
	cfg         activity.Config
	now         func() time.Time

	mu         sync.Mutex
	analyzers  map[domain.SessionID]*Analyzer
	gains      map[domain.SessionID]float64
	playback   Playback
	onSpeaking func(peer domain.SessionID, speaking bool)
	workers    conc.WaitGroup
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(dec DecoderFactory, pb PlaybackFactory, cfg activity.Config, opts ...Option) *Registry {
	r := &Registry{
		newDecoder:  dec,
		newPlayback: pb,
		cfg:         cfg,
		now:         time.Now,
		analyzers:   make(map[domain.SessionID]*Analyzer),
		gains:       make(map[domain.SessionID]float64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnSpeakingChanged registers fn; it runs on analyzer goroutines.
func (r *Registry) OnSpeakingChanged(fn func(peer domain.SessionID, speaking bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSpeaking = fn
}

// Attach starts analysis of a remote audio track. Non-audio tracks are
// ignored. A second audio track for the same peer replaces the first.
func (r *Registry) Attach(peer domain.SessionID, track core.RemoteTrack) error {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return nil
	}
	dec, err := r.newDecoder()
	if err != nil {
		return fmt.Errorf("remote decoder for %s: %w", peer, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.playback == nil {
		pb, err := r.newPlayback()
		if err != nil {
			return fmt.Errorf("open playback: %w", err)
		}
		r.playback = pb
		log.Debug().Str("module", "remote").Msg("playback context opened")
	}
	if old, ok := r.analyzers[peer]; ok {
		old.stop()
	}

	gain, ok := r.gains[peer]
	if !ok {
		gain = DefaultGain
	}
	a := newAnalyzer(peer, track, dec, r.playback, r.cfg, r.now, gain)
	if fn := r.onSpeaking; fn != nil {
		a.onChange = func(speaking bool) { fn(peer, speaking) }
	}
	r.analyzers[peer] = a
	r.workers.Go(a.run)

	log.Info().Str("module", "remote").Str("sid", string(peer)).Str("track", track.ID()).Msg("analyzer attached")
	return nil
}

// SetActivityConfig applies new thresholds to every analyzer, current and
// future.
func (r *Registry) SetActivityConfig(cfg activity.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
	for _, a := range r.analyzers {
		a.detector.SetConfig(cfg)
	}
}

// SetGain clamps g to [0, 5] and keeps it for peer until Detach, applying it
// to the current analyzer if any. It returns the stored value.
func (r *Registry) SetGain(peer domain.SessionID, g float64) float64 {
	g = ClampGain(g)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gains[peer] = g
	if a, ok := r.analyzers[peer]; ok {
		a.SetGain(g)
	}
	return g
}

func (r *Registry) Gain(peer domain.SessionID) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gains[peer]; ok {
		return g
	}
	return DefaultGain
}

// Activity returns the analyzer state for peer.
func (r *Registry) Activity(peer domain.SessionID) (activity.State, bool) {
	r.mu.Lock()
	a, ok := r.analyzers[peer]
	r.mu.Unlock()
	if !ok {
		return activity.State{}, false
	}
	return a.Activity(), true
}

// Attached reports how many analyzers are live.
func (r *Registry) Attached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.analyzers)
}

// Detach stops the analyzer for peer and forgets its gain. The playback
// context is released with the last analyzer.
func (r *Registry) Detach(peer domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.gains, peer)
	a, ok := r.analyzers[peer]
	if !ok {
		return
	}
	a.stop()
	delete(r.analyzers, peer)
	r.playback.Remove(peer)
	log.Info().Str("module", "remote").Str("sid", string(peer)).Msg("analyzer detached")

	if len(r.analyzers) == 0 {
		if err := r.playback.Close(); err != nil {
			log.Error().Err(err).Str("module", "remote").Msg("playback close error")
		}
		r.playback = nil
		log.Debug().Str("module", "remote").Msg("playback context released")
	}
}

// Close detaches every analyzer.
func (r *Registry) Close() {
	r.mu.Lock()
	peers := make([]domain.SessionID, 0, len(r.analyzers))
	for sid := range r.analyzers {
		peers = append(peers, sid)
	}
	r.mu.Unlock()
	for _, sid := range peers {
		r.Detach(sid)
	}
}

// Wait blocks until every analyzer goroutine has returned. Tracks must have
// ended for this to complete.
func (r *Registry) Wait() { r.workers.Wait() }
