package mesh

//go:generate mockgen -source=iface.go -destination=mock_iface_test.go -package=mesh

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/voicemesh/internal/capture"
	"github.com/dkeye/voicemesh/internal/core"
	"github.com/dkeye/voicemesh/internal/domain"
)

// LocalMedia is the microphone as the coordinator sees it.
// *capture.LocalCapture satisfies it.
type LocalMedia interface {
	Start(ctx context.Context) (capture.Stream, error)
	Track() webrtc.TrackLocal
	SetMuted(muted bool)
	Stop()
	OnSpeakingChanged(fn func(speaking bool))
}

// RemoteAudio owns the per-peer analyzers. *remote.Registry satisfies it.
type RemoteAudio interface {
	Attach(peer domain.SessionID, track core.RemoteTrack) error
	Detach(peer domain.SessionID)
	SetGain(peer domain.SessionID, g float64) float64
	OnSpeakingChanged(fn func(peer domain.SessionID, speaking bool))
}
