package capture

//go:generate mockgen -source=source.go -destination=mock_source_test.go -package=capture

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// Constraints are requested from the capture device. Processing flags are
// applied at the source so every peer receives the same cleaned signal.
type Constraints struct {
	EchoCancellation bool `mapstructure:"echo_cancellation"`
	NoiseSuppression bool `mapstructure:"noise_suppression"`
	AutoGainControl  bool `mapstructure:"auto_gain_control"`
	SampleRate       int  `mapstructure:"sample_rate"`
	Channels         int  `mapstructure:"channels"`
}

func DefaultConstraints() Constraints {
	return Constraints{
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
		SampleRate:       48000,
		Channels:         1,
	}
}

// Source opens the local microphone.
type Source interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an open microphone.
type Stream interface {
	// Track is sent to every peer.
	Track() webrtc.TrackLocal
	// ReadPCM blocks until the next captured chunk is available.
	ReadPCM() ([]int16, error)
	// SetEnabled gates transmission without stopping capture.
	SetEnabled(enabled bool)
	Close() error
}
