package remote

//go:generate mockgen -source=iface.go -destination=mock_iface_test.go -package=remote

import "github.com/dkeye/voicemesh/internal/domain"

// Decoder turns one encoded audio payload into mono PCM.
// *opus.Decoder satisfies it.
type Decoder interface {
	Decode(data []byte, pcm []int16) (int, error)
}

type DecoderFactory func() (Decoder, error)

// Playback is the shared output context every analyzer renders into.
type Playback interface {
	Write(peer domain.SessionID, pcm []int16)
	Remove(peer domain.SessionID)
	Close() error
}

type PlaybackFactory func() (Playback, error)
