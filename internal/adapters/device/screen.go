package device

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	// registers the screen capture driver
	_ "github.com/pion/mediadevices/pkg/driver/screen"

	"github.com/dkeye/voicemesh/internal/core"
)

// ScreenShare is an open display capture encoded as VP8.
type ScreenShare struct {
	track   mediadevices.Track
	local   *webrtc.TrackLocalStaticRTP
	closed  atomic.Bool
	workers conc.WaitGroup
	log     zerolog.Logger
}

// OpenScreen starts capturing the primary display at frameRate.
func OpenScreen(sel *mediadevices.CodecSelector, frameRate float32) (*ScreenShare, error) {
	ms, err := mediadevices.GetDisplayMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.FrameRate = prop.Float(frameRate)
		},
		Codec: sel,
	})
	if err != nil {
		return nil, &core.CaptureError{Err: fmt.Errorf("%w: %v", core.ErrDeviceUnavailable, err)}
	}
	tracks := ms.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, &core.CaptureError{Err: core.ErrDeviceUnavailable}
	}

	local, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeVP8,
		ClockRate: 90000,
	}, "screen", "voicemesh-screen")
	if err != nil {
		_ = tracks[0].Close()
		return nil, fmt.Errorf("local screen track: %w", err)
	}
	rtpReader, err := tracks[0].NewRTPReader(codecName(local), 0, rtpMTU)
	if err != nil {
		_ = tracks[0].Close()
		return nil, fmt.Errorf("rtp reader: %w", err)
	}

	s := &ScreenShare{
		track: tracks[0],
		local: local,
		log:   log.With().Str("module", "device").Str("track_id", tracks[0].ID()).Logger(),
	}
	s.workers.Go(func() { s.pump(rtpReader) })
	s.log.Info().Msg("screen capture started")
	return s, nil
}

func (s *ScreenShare) pump(r mediadevices.RTPReadCloser) {
	defer r.Close()
	for {
		pkts, release, err := r.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.closed.Load() {
				s.log.Error().Err(err).Msg("screen rtp read error")
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

func (s *ScreenShare) Track() webrtc.TrackLocal { return s.local }

func (s *ScreenShare) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.track.Close()
	s.workers.Wait()
	s.log.Info().Msg("screen capture stopped")
	return err
}
