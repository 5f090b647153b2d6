package config

import (
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/dkeye/voicemesh/internal/activity"
	"github.com/dkeye/voicemesh/internal/adapters/device"
	"github.com/dkeye/voicemesh/internal/adapters/relayclient"
	"github.com/dkeye/voicemesh/internal/adapters/rtc"
	"github.com/dkeye/voicemesh/internal/capture"
	"github.com/dkeye/voicemesh/internal/peer"
	"github.com/dkeye/voicemesh/internal/relay"
)

type Config struct {
	Mode   string       `mapstructure:"mode"`
	Port   int          `mapstructure:"port"`
	Secret string       `mapstructure:"secret"`
	Relay  relay.Config `mapstructure:"relay"`
	Agent  AgentConfig  `mapstructure:"agent"`

	v *viper.Viper
}

type AgentConfig struct {
	ControlAddr     string              `mapstructure:"control_addr"`
	Username        string              `mapstructure:"username"`
	AvatarRef       string              `mapstructure:"avatar_ref"`
	Room            string              `mapstructure:"room"`
	PlaybackOutput  string              `mapstructure:"playback_output"`
	ScreenFrameRate float32             `mapstructure:"screen_frame_rate"`
	Client          relayclient.Config  `mapstructure:"relay_client"`
	RTC             rtc.Config          `mapstructure:"rtc"`
	Activity        activity.Config     `mapstructure:"activity"`
	Peer            peer.Config         `mapstructure:"peer"`
	Capture         capture.Constraints `mapstructure:"capture"`
	Codec           device.CodecConfig  `mapstructure:"codec"`
}

// Default is the configuration used for every key the file leaves out.
func Default() Config {
	return Config{
		Mode:   "release",
		Port:   8080,
		Secret: "change-me",
		Relay:  relay.DefaultConfig(),
		Agent: AgentConfig{
			ControlAddr:     "127.0.0.1:7070",
			Username:        "guest",
			ScreenFrameRate: 15,
			Client:          relayclient.DefaultConfig(),
			RTC:             rtc.DefaultConfig(),
			Activity:        activity.DefaultConfig(),
			Peer:            peer.DefaultConfig(),
			Capture:         capture.DefaultConstraints(),
			Codec:           device.DefaultCodecConfig(),
		},
	}
}

// FileName is config/config.<CONFIG_ENV>.yaml, dev when unset.
func FileName() string {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return fmt.Sprintf("config/config.%s.yaml", env)
}

func Load() (*Config, error) {
	return LoadFile(FileName())
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("VOICEMESH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.v = v
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Msg("config ready")
	return &cfg, nil
}

// WatchActivity re-reads the file on change and reports the new activity
// thresholds. Other keys need a restart.
func (c *Config) WatchActivity(fn func(activity.Config)) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}
	var last time.Time
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		// editors often emit several writes per save
		now := time.Now()
		if now.Sub(last) < 100*time.Millisecond {
			return
		}
		last = now
		next := c.Agent.Activity
		if err := c.v.UnmarshalKey("agent.activity", &next); err != nil {
			log.Error().Err(err).Str("module", "config").Msg("reload activity config")
			return
		}
		log.Info().Str("module", "config").Str("file", e.Name).Msg("activity config reloaded")
		fn(next)
	})
	c.v.WatchConfig()
}
