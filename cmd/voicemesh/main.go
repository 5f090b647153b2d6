package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/voicemesh/internal/activity"
	"github.com/dkeye/voicemesh/internal/adapters/device"
	router "github.com/dkeye/voicemesh/internal/adapters/http"
	"github.com/dkeye/voicemesh/internal/adapters/relayclient"
	"github.com/dkeye/voicemesh/internal/adapters/rtc"
	"github.com/dkeye/voicemesh/internal/app"
	"github.com/dkeye/voicemesh/internal/capture"
	"github.com/dkeye/voicemesh/internal/config"
	"github.com/dkeye/voicemesh/internal/domain"
	"github.com/dkeye/voicemesh/internal/eventloop"
	"github.com/dkeye/voicemesh/internal/mesh"
	"github.com/dkeye/voicemesh/internal/remote"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("agent stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("agent exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	ac := cfg.Agent

	user, err := domain.NewUser(ac.Username)
	if err != nil {
		return err
	}
	if err := user.SetAvatar(ac.AvatarRef); err != nil {
		return err
	}

	sel, err := device.NewCodecSelector(ac.Codec)
	if err != nil {
		return err
	}
	api, err := rtc.NewAPI(ac.RTC, sel.Populate)
	if err != nil {
		return err
	}

	out, closeOut, err := playbackOutput(ac.PlaybackOutput)
	if err != nil {
		return err
	}
	defer closeOut()

	loop := eventloop.New()
	client := relayclient.New(ac.Client, loop)
	capt := capture.New(device.NewMicrophone(sel), ac.Activity, capture.WithConstraints(ac.Capture))
	remoteAudio := remote.NewRegistry(device.NewOpusDecoder, device.MixerFactory(out), ac.Activity)
	defer func() {
		capt.Stop()
		remoteAudio.Close()
	}()

	coord := mesh.New(mesh.Deps{
		Scheduler:  loop,
		Relay:      client,
		Transports: rtc.NewFactory(api, ac.RTC),
		Capture:    capt,
		Remote:     remoteAudio,
		User:       user,
		Peer:       ac.Peer,
	})
	coord.Subscribe(logNotification)
	client.SetHandler(coord)

	agent := app.NewAgent(loop, coord, func() (app.ScreenSource, error) {
		s, err := device.OpenScreen(sel, ac.ScreenFrameRate)
		if err != nil {
			return nil, err
		}
		return s, nil
	})

	cfg.WatchActivity(func(a activity.Config) {
		capt.SetActivityConfig(a)
		remoteAudio.SetActivityConfig(a)
	})

	srv := &http.Server{
		Addr:              ac.ControlAddr,
		Handler:           router.SetupControlRouter(cfg.Mode, agent),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return client.Run(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", ac.ControlAddr).Msg("control api started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})
	if ac.Room != "" {
		g.Go(func() error {
			if err := agent.Join(gctx, domain.RoomID(ac.Room)); err != nil {
				log.Error().Err(err).Str("room", ac.Room).Msg("auto-join failed")
			}
			return nil
		})
	}
	return g.Wait()
}

// playbackOutput maps "" to a sink, "-" to stdout and anything else to a file
// of raw 48 kHz mono s16le.
func playbackOutput(target string) (io.Writer, func(), error) {
	switch target {
	case "":
		return io.Discard, func() {}, nil
	case "-":
		return os.Stdout, func() {}, nil
	default:
		f, err := os.Create(target)
		if err != nil {
			return nil, nil, err
		}
		return f, func() { _ = f.Close() }, nil
	}
}

func logNotification(n mesh.Notification) {
	ev := log.Info()
	switch {
	case n.Kind == mesh.KindSpeaking || n.Kind == mesh.KindLocalSpeaking:
		ev = log.Debug()
	case n.Err != nil:
		ev = log.Warn().Err(n.Err)
	}
	ev.Str("module", "agent").Str("kind", string(n.Kind)).Str("sid", string(n.Peer)).Bool("value", n.Value).Msg("mesh")
}
