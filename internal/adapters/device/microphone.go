package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/io/audio"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/mediadevices/pkg/wave"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	// registers the microphone driver
	_ "github.com/pion/mediadevices/pkg/driver/microphone"

	"github.com/dkeye/voicemesh/internal/capture"
	"github.com/dkeye/voicemesh/internal/core"
)

const rtpMTU = 1200

var errUnsupportedChunk = errors.New("unsupported audio chunk format")

// Microphone opens the system default input.
type Microphone struct {
	selector *mediadevices.CodecSelector
}

var _ capture.Source = (*Microphone)(nil)

func NewMicrophone(sel *mediadevices.CodecSelector) *Microphone {
	return &Microphone{selector: sel}
}

func (m *Microphone) Open(ctx context.Context, c capture.Constraints) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := log.With().Str("module", "device").Logger()
	if c.EchoCancellation {
		l.Warn().Msg("echo cancellation is not available from the microphone driver")
	}

	ms, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(mc *mediadevices.MediaTrackConstraints) {
			mc.SampleRate = prop.Int(c.SampleRate)
			mc.ChannelCount = prop.Int(c.Channels)
			mc.SampleSize = prop.Int(16)
			mc.IsFloat = prop.BoolExact(false)
			mc.IsBigEndian = prop.BoolExact(false)
			mc.IsInterleaved = prop.BoolExact(true)
			mc.Latency = prop.Duration(20 * time.Millisecond)
		},
		Codec: m.selector,
	})
	if err != nil {
		return nil, &core.CaptureError{Err: fmt.Errorf("%w: %v", core.ErrDeviceUnavailable, err)}
	}
	tracks := ms.GetAudioTracks()
	if len(tracks) == 0 {
		return nil, &core.CaptureError{Err: core.ErrDeviceUnavailable}
	}
	at, ok := tracks[0].(*mediadevices.AudioTrack)
	if !ok {
		_ = tracks[0].Close()
		return nil, &core.CaptureError{Err: fmt.Errorf("%w: unexpected track type %T", core.ErrDeviceUnavailable, tracks[0])}
	}

	local, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{
		MimeType:    webrtc.MimeTypeOpus,
		ClockRate:   SampleRate,
		Channels:    2,
		SDPFmtpLine: "minptime=10;useinbandfec=1",
	}, "audio", "voicemesh")
	if err != nil {
		_ = at.Close()
		return nil, fmt.Errorf("local audio track: %w", err)
	}

	s := &micStream{
		track: at,
		local: local,
		proc:  newProcessor(c.NoiseSuppression, c.AutoGainControl),
		log:   l,
	}
	s.enabled.Store(true)
	at.Transform(s.gate)
	s.reader = at.NewReader(false)

	rtpReader, err := at.NewRTPReader(codecName(local), 0, rtpMTU)
	if err != nil {
		_ = at.Close()
		return nil, fmt.Errorf("rtp reader: %w", err)
	}
	s.workers.Go(func() { s.pump(rtpReader) })

	l.Info().Str("track_id", at.ID()).Msg("microphone opened")
	return s, nil
}

func codecName(t *webrtc.TrackLocalStaticRTP) string {
	_, name, _ := strings.Cut(t.Codec().MimeType, "/")
	return strings.ToLower(name)
}

type micStream struct {
	track   *mediadevices.AudioTrack
	local   *webrtc.TrackLocalStaticRTP
	reader  audio.Reader
	proc    *processor
	enabled atomic.Bool
	closed  atomic.Bool
	workers conc.WaitGroup
	log     zerolog.Logger
}

// gate runs voice processing and silences the encoder input while muted.
func (s *micStream) gate(r audio.Reader) audio.Reader {
	return audio.ReaderFunc(func() (wave.Audio, func(), error) {
		chunk, release, err := r.Read()
		if err != nil {
			return chunk, release, err
		}
		if a, ok := chunk.(*wave.Int16Interleaved); ok {
			if s.enabled.Load() {
				s.proc.apply(a.Data)
			} else {
				clear(a.Data)
			}
		}
		return chunk, release, nil
	})
}

func (s *micStream) pump(r mediadevices.RTPReadCloser) {
	defer r.Close()
	for {
		pkts, release, err := r.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.closed.Load() {
				s.log.Error().Err(err).Msg("microphone rtp read error")
			}
			return
		}
		for _, pkt := range pkts {
			if err := s.local.WriteRTP(pkt); err != nil && !errors.Is(err, io.ErrClosedPipe) {
				s.log.Debug().Err(err).Msg("WriteRTP error")
			}
		}
		if release != nil {
			release()
		}
	}
}

func (s *micStream) Track() webrtc.TrackLocal { return s.local }

func (s *micStream) ReadPCM() ([]int16, error) {
	chunk, release, err := s.reader.Read()
	if err != nil {
		return nil, err
	}
	defer release()
	return toMono(chunk)
}

func (s *micStream) SetEnabled(enabled bool) { s.enabled.Store(enabled) }

func (s *micStream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.track.Close()
	s.workers.Wait()
	return err
}

// toMono copies chunk into a fresh mono int16 buffer.
func toMono(chunk wave.Audio) ([]int16, error) {
	switch a := chunk.(type) {
	case *wave.Int16Interleaved:
		ch := max(a.Size.Channels, 1)
		out := make([]int16, a.Size.Len)
		for i := range out {
			var sum int
			for c := range ch {
				sum += int(a.Data[i*ch+c])
			}
			out[i] = int16(sum / ch)
		}
		return out, nil
	case *wave.Float32Interleaved:
		ch := max(a.Size.Channels, 1)
		out := make([]int16, a.Size.Len)
		for i := range out {
			var sum float32
			for c := range ch {
				sum += a.Data[i*ch+c]
			}
			v := sum / float32(ch)
			out[i] = int16(max(-1, min(1, v)) * 32767)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", errUnsupportedChunk, chunk)
	}
}
