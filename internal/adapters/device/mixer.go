package device

import (
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/voicemesh/internal/domain"
	"github.com/dkeye/voicemesh/internal/remote"
)

const (
	frameSamples   = SampleRate / 50 // 20 ms
	maxQueuedFrame = 10
)

// Mixer sums every peer's gained audio into one 48 kHz mono s16le stream.
// It is the shared playback context handed to remote.Registry.
type Mixer struct {
	out  io.Writer
	tick time.Duration

	mu     sync.Mutex
	queues map[domain.SessionID][][]int16

	stop    chan struct{}
	once    sync.Once
	workers conc.WaitGroup
}

var _ remote.Playback = (*Mixer)(nil)

// NewMixer starts a mixer writing to out every 20 ms.
func NewMixer(out io.Writer) *Mixer {
	return newMixer(out, 20*time.Millisecond)
}

func newMixer(out io.Writer, tick time.Duration) *Mixer {
	m := &Mixer{
		out:    out,
		tick:   tick,
		queues: make(map[domain.SessionID][][]int16),
		stop:   make(chan struct{}),
	}
	if tick > 0 {
		m.workers.Go(m.run)
	}
	return m
}

// MixerFactory adapts NewMixer to remote.PlaybackFactory.
func MixerFactory(out io.Writer) remote.PlaybackFactory {
	return func() (remote.Playback, error) { return NewMixer(out), nil }
}

func (m *Mixer) Write(peer domain.SessionID, pcm []int16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := append(m.queues[peer], pcm)
	if len(q) > maxQueuedFrame {
		q = q[len(q)-maxQueuedFrame:]
	}
	m.queues[peer] = q
}

func (m *Mixer) Remove(peer domain.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.queues, peer)
}

// mix pops one frame per peer and sums them with saturation.
func (m *Mixer) mix() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := make([]int32, frameSamples)
	for peer, q := range m.queues {
		if len(q) == 0 {
			continue
		}
		frame := q[0]
		m.queues[peer] = q[1:]
		for i := 0; i < len(frame) && i < frameSamples; i++ {
			acc[i] += int32(frame[i])
		}
	}
	out := make([]int16, frameSamples)
	for i, v := range acc {
		out[i] = int16(min(max(v, -32768), 32767))
	}
	return out
}

func (m *Mixer) run() {
	t := time.NewTicker(m.tick)
	defer t.Stop()
	buf := make([]byte, frameSamples*2)
	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			for i, s := range m.mix() {
				binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
			}
			if _, err := m.out.Write(buf); err != nil {
				log.Error().Err(err).Str("module", "device").Msg("playback write failed, stopping mixer")
				return
			}
		}
	}
}

func (m *Mixer) Close() error {
	m.once.Do(func() { close(m.stop) })
	m.workers.Wait()
	return nil
}
