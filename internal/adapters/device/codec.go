// Package device binds the capture and playback interfaces to real
// hardware through pion/mediadevices and libopus.
package device

import (
	"fmt"

	"github.com/hraban/opus"
	"github.com/pion/mediadevices"
	mdopus "github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"

	"github.com/dkeye/voicemesh/internal/remote"
)

const (
	SampleRate = 48000
	Channels   = 1
)

type CodecConfig struct {
	AudioBitRate int `mapstructure:"audio_bitrate"`
	VideoBitRate int `mapstructure:"video_bitrate"`
}

func DefaultCodecConfig() CodecConfig {
	return CodecConfig{AudioBitRate: 32_000, VideoBitRate: 1_000_000}
}

// NewCodecSelector configures Opus for voice and VP8 for screen share. The
// same selector must populate the pion MediaEngine.
func NewCodecSelector(cfg CodecConfig) (*mediadevices.CodecSelector, error) {
	opusParams, err := mdopus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}
	opusParams.BitRate = cfg.AudioBitRate
	opusParams.Latency = mdopus.Latency20ms

	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = cfg.VideoBitRate
	vpxParams.KeyFrameInterval = 60

	return mediadevices.NewCodecSelector(
		mediadevices.WithAudioEncoders(&opusParams),
		mediadevices.WithVideoEncoders(&vpxParams),
	), nil
}

// NewOpusDecoder is a remote.DecoderFactory for 48 kHz mono Opus.
func NewOpusDecoder() (remote.Decoder, error) {
	dec, err := opus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, fmt.Errorf("opus decoder: %w", err)
	}
	return dec, nil
}
