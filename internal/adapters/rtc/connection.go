package rtc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicemesh/internal/core"
	"github.com/dkeye/voicemesh/internal/domain"
)

var ErrNoSender = errors.New("no sender for track kind")

// Connection is a pion PeerConnection to one remote session.
type Connection struct {
	pc  *webrtc.PeerConnection
	sid domain.SessionID
	log zerolog.Logger

	mu      sync.Mutex
	senders map[domain.TrackKind]*webrtc.RTPSender
}

var _ core.MediaTransport = (*Connection)(nil)

func NewConnection(api *webrtc.API, cfg webrtc.Configuration, sid domain.SessionID) (*Connection, error) {
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	return &Connection{
		pc:      pc,
		sid:     sid,
		senders: make(map[domain.TrackKind]*webrtc.RTPSender),
		log:     log.With().Str("module", "webrtc").Str("sid", string(sid)).Logger(),
	}, nil
}

// NewFactory returns a TransportFactory backed by api.
func NewFactory(api *webrtc.API, cfg Config) core.TransportFactory {
	pcCfg := cfg.Configuration()
	return func(remote domain.SessionID) (core.MediaTransport, error) {
		return NewConnection(api, pcCfg, remote)
	}
}

func (c *Connection) CreateOffer(iceRestart bool) (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(&webrtc.OfferOptions{ICERestart: iceRestart})
}

func (c *Connection) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *Connection) SetLocalDescription(d webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(d)
}

func (c *Connection) SetRemoteDescription(d webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(d)
}

func (c *Connection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

// AddTrack attaches a local track, replacing any earlier track of the same kind.
func (c *Connection) AddTrack(kind domain.TrackKind, track webrtc.TrackLocal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sender, ok := c.senders[kind]; ok {
		return sender.ReplaceTrack(track)
	}
	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return err
	}
	c.senders[kind] = sender
	go c.drainRTCP(kind, sender)
	c.log.Info().Str("kind", string(kind)).Str("track_id", track.ID()).Msg("local track added")
	return nil
}

// drainRTCP reads RTCP so interceptors keep running.
func (c *Connection) drainRTCP(kind domain.TrackKind, sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			c.log.Debug().Err(err).Str("kind", string(kind)).Msg("rtcp reader stopped")
			return
		}
	}
}

func (c *Connection) RemoveTrack(kind domain.TrackKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sender, ok := c.senders[kind]
	if !ok {
		return ErrNoSender
	}
	delete(c.senders, kind)
	if err := c.pc.RemoveTrack(sender); err != nil {
		return err
	}
	c.log.Info().Str("kind", string(kind)).Msg("local track removed")
	return nil
}

func (c *Connection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil {
			fn(cand.ToJSON())
		}
	})
}

func (c *Connection) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.log.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
		fn(s)
	})
}

func (c *Connection) OnTrack(fn func(core.RemoteTrack)) {
	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.log.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		fn(track)
	})
}

func (c *Connection) Close() error {
	if err := c.pc.Close(); err != nil {
		c.log.Error().Err(err).Msg("close error")
		return err
	}
	c.log.Info().Msg("closed")
	return nil
}
