package rtc

import (
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type Config struct {
	ICEServers []ICEServer `mapstructure:"ice_servers"`
	PortMin    uint16      `mapstructure:"port_min"`
	PortMax    uint16      `mapstructure:"port_max"`
	LogLevel   string      `mapstructure:"log_level"`
}

func DefaultConfig() Config {
	return Config{
		ICEServers: []ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
		LogLevel:   "warn",
	}
}

// Configuration is the per-connection pion configuration.
func (c Config) Configuration() webrtc.Configuration {
	servers := make([]webrtc.ICEServer, 0, len(c.ICEServers))
	for _, s := range c.ICEServers {
		servers = append(servers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return webrtc.Configuration{ICEServers: servers}
}

// NewAPI builds a pion API. populate registers the codecs the local media
// pipeline produces; when nil the pion defaults are used.
func NewAPI(cfg Config, populate func(*webrtc.MediaEngine)) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if populate != nil {
		populate(m)
	} else if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.WarnLevel
	}
	se := webrtc.SettingEngine{LoggerFactory: LoggerFactory{Level: level}}
	if cfg.PortMin > 0 && cfg.PortMax > 0 {
		if err := se.SetEphemeralUDPPortRange(cfg.PortMin, cfg.PortMax); err != nil {
			return nil, fmt.Errorf("udp port range: %w", err)
		}
	}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(se),
	), nil
}
