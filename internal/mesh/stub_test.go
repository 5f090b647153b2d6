package mesh

import (
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

type stubTrack struct {
	id   string
	kind webrtc.RTPCodecType
}

func (s *stubTrack) ID() string                { return s.id }
func (s *stubTrack) Kind() webrtc.RTPCodecType { return s.kind }
func (s *stubTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	return nil, nil, nil
}
