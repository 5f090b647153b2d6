// Package remote decodes incoming peer audio, decides who is speaking and
// feeds a gained copy to playback.
package remote

import (
	"errors"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicemesh/internal/activity"
	"github.com/dkeye/voicemesh/internal/core"
	"github.com/dkeye/voicemesh/internal/domain"
)

const (
	MinGain     = 0.0
	MaxGain     = 5.0
	DefaultGain = 1.0

	// 120 ms of 48 kHz mono, the longest Opus frame.
	maxFrameSamples = 5760
)

// ClampGain limits g to [MinGain, MaxGain]. NaN maps to DefaultGain.
func ClampGain(g float64) float64 {
	if math.IsNaN(g) {
		return DefaultGain
	}
	return min(max(g, MinGain), MaxGain)
}

// Analyzer owns one remote audio track. The analysis branch sees the raw
// decoded signal; only the gained copy reaches playback.
type Analyzer struct {
	peer     domain.SessionID
	track    core.RemoteTrack
	decoder  Decoder
	detector *activity.Detector
	playback Playback
	now      func() time.Time
	onChange func(speaking bool)
	log      zerolog.Logger

	gain atomic.Uint64

	mu      sync.Mutex
	stopped bool
}

func newAnalyzer(peer domain.SessionID, track core.RemoteTrack, dec Decoder, pb Playback, cfg activity.Config, now func() time.Time, gain float64) *Analyzer {
	a := &Analyzer{
		peer:     peer,
		track:    track,
		decoder:  dec,
		detector: activity.NewDetector(cfg),
		playback: pb,
		now:      now,
		log: log.With().
			Str("module", "remote").
			Str("sid", string(peer)).
			Str("track", track.ID()).
			Logger(),
	}
	a.SetGain(gain)
	return a
}

// SetGain stores the clamped playback gain and returns it.
func (a *Analyzer) SetGain(g float64) float64 {
	g = ClampGain(g)
	a.gain.Store(math.Float64bits(g))
	return g
}

func (a *Analyzer) Gain() float64 { return math.Float64frombits(a.gain.Load()) }

func (a *Analyzer) Activity() activity.State { return a.detector.Snapshot() }

func (a *Analyzer) run() {
	a.detector.Start(a.now())
	pcm := make([]int16, maxFrameSamples)
	for {
		pkt, _, err := a.track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				a.log.Debug().Err(err).Msg("remote track read ended")
			}
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		n, err := a.decoder.Decode(pkt.Payload, pcm)
		if err != nil {
			a.log.Debug().Err(err).Uint16("seq", pkt.SequenceNumber).Msg("decode failed, dropping packet")
			continue
		}
		if !a.process(pcm[:n]) {
			return
		}
	}
}

// process runs one tick and reports whether the analyzer is still attached.
func (a *Analyzer) process(frame []int16) bool {
	u := a.detector.Update(activity.RMSInt16(frame), false, a.now())

	out := make([]int16, len(frame))
	copy(out, frame)
	activity.ApplyGain(out, a.Gain())

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return false
	}
	a.playback.Write(a.peer, out)
	if u.Changed && a.onChange != nil {
		a.onChange(u.Speaking)
	}
	return true
}

// stop detaches the analyzer. No playback write or speaking change happens
// after it returns; the read goroutine exits when the track ends.
func (a *Analyzer) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
}
