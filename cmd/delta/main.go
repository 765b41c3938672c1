package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/lmittmann/tint"
	log "log/slog"

	"delta/internal/admission"
	"delta/internal/assistant"
	"delta/internal/audio"
	"delta/internal/backend"
	"delta/internal/bus"
	"delta/internal/capture"
	"delta/internal/config"
	"delta/internal/duck"
	"delta/internal/ipc"
	"delta/internal/notify"
	"delta/internal/router"
	"delta/internal/tts"
	"delta/internal/tts/espeak"
	"delta/internal/ui"
	"delta/pkg/audioconv"
	"delta/pkg/audioconv/decode"
	"delta/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	configPath := cli.StringP("config", "c", config.DefaultPath, "Settings file path")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	logFile := cli.String("log-file", "delta.log", "Log file used while the TUI owns the terminal")
	headless := cli.Bool("headless", false, "Use the line console instead of the TUI")
	transcribe := cli.StringP("transcribe", "t", "", "Transcribe an audio file and exit")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks Proxy Address (overrides settings)")
	cli.Parse()

	var logOut io.Writer = os.Stderr
	tui := !*headless && *transcribe == ""
	if tui {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open log file:", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}

	log.SetDefault(log.New(tint.NewHandler(logOut, &tint.Options{
		Level:   logLevelMap[*logLevel],
		NoColor: tui,
	})))

	log.Info("Booting up")

	if err := godotenv.Load(*envFile); err != nil {
		log.Debug("No env file loaded", "path", *envFile, "err", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Debug("Using default settings", "err", err)
	}
	if *proxyAddr != "" {
		cfg.Proxy = *proxyAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *transcribe != "" {
		if err := runTranscribe(ctx, cfg, *transcribe); err != nil {
			log.Error("Failed to transcribe", "file", *transcribe, "err", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg, tui); err != nil {
		log.Error("Assistant stopped", "err", err)
		os.Exit(1)
	}
}

func runTranscribe(ctx context.Context, cfg *config.Config, path string) error {
	hc, err := backend.HTTPClient(cfg)
	if err != nil {
		return err
	}

	rec, closer, err := backend.Recognizer(ctx, cfg, hc)
	if err != nil {
		return err
	}
	defer closer.Close()

	const rate = 16000
	clip, err := decode.DecodeFile(path, decode.Options{Rate: rate})
	if err != nil {
		return err
	}
	log.Debug("Decoded", "file", path, "samples", len(clip.Samples))

	pcm := audioconv.Int16ToPCM16(audioconv.Float32ToInt16(clip.Samples))
	text, err := rec.Recognize(ctx, pcm, rate, 2)
	if errors.Is(err, stt.ErrUnrecognized) {
		return errors.New("no speech recognized")
	}
	if err != nil {
		return err
	}

	fmt.Println(text)
	return nil
}

func run(parent context.Context, cfg *config.Config, tui bool) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	hc, err := backend.HTTPClient(cfg)
	if err != nil {
		return err
	}

	chatBackend, err := backend.Chat(cfg, hc)
	if err != nil {
		log.Warn("Chat backend unavailable, only canned commands will work", "err", err)
		chatBackend = nil
	}
	rt := router.New(chatBackend, router.WithSystemPrompt(cfg.Chat.SystemPrompt))

	rec, closer, err := backend.Recognizer(ctx, cfg, hc)
	if err != nil {
		log.Warn("Speech recognizer unavailable", "provider", cfg.Speech.Provider, "err", err)
		rec = stt.RecognizerFunc(func(context.Context, []byte, int, int) (string, error) {
			return "", stt.ErrServiceUnavailable
		})
	} else {
		defer closer.Close()
	}

	if err := audio.Init(); err != nil {
		return fmt.Errorf("init audio: %w", err)
	}
	defer audio.Terminate()

	mic := audio.NewMicrophone(cfg.Audio.SampleRate, cfg.Audio.ChunkSize, log.Default())
	capt := capture.New(mic, rec, capture.Options{
		PollTimeout:  cfg.Audio.PollTimeout,
		SilenceLimit: cfg.Audio.SilenceLimit,
		QueueSize:    cfg.Audio.QueueSize,
	})

	g, gctx := errgroup.WithContext(ctx)

	var speaker admission.Speaker
	if cfg.TTS.Enabled {
		q := tts.NewQueue(espeak.New(cfg.TTS.Voice), log.Default())
		speaker = q
		g.Go(func() error { return q.Run(gctx) })
	}

	dispatcher := ui.NewDispatcher()
	sinks := ui.Fanout{dispatcher}

	var hub *bus.Bus
	if cfg.Bus.URL != "" {
		hub, err = bus.Dial(ctx, cfg.Bus.URL, cfg.Bus.Shard)
		if err != nil {
			log.Warn("Bus disabled", "err", err)
		} else {
			hub.Reconnect = cfg.Bus.Reconnect
			sinks = append(sinks, hub)
		}
	}

	ctl := admission.New(gctx, admission.Config{
		Responder: rt,
		Sink:      sinks,
		Speaker:   speaker,
		OnExit:    cancel,
		ExitDelay: cfg.Exit.Delay,
	})

	acfg := assistant.Config{
		Capturer:  capt,
		Submitter: ctl,
		Sink:      sinks,
		MaxListen: time.Duration(cfg.Audio.MaxSeconds * float64(time.Second)),
	}
	if cfg.Notify.Chime != "" {
		acfg.Chime = notify.NewChime(cfg.Notify.Chime)
	}
	if cfg.Audio.Duck {
		acfg.Ducker = duck.New(cfg.Audio.DuckFactor, cfg.Audio.DuckMinVolume, 150*time.Millisecond, "delta")
	}
	asst := assistant.New(acfg)

	actions := ui.Actions{
		Submit:  ctl.Submit,
		Listen:  func() { asst.Listen(gctx) },
		MicTest: func() { asst.TestMicrophone(gctx) },
	}

	log.Info("Boot up - successful", "screen", cfg.DefaultScreenIndex, "chat", cfg.Chat.Provider, "speech", cfg.Speech.Provider)

	if tui {
		front := ui.NewTUI(actions, cfg.DefaultScreenIndex)
		g.Go(func() error {
			dispatcher.Run(gctx, front.Deliver)
			return nil
		})
		g.Go(func() error {
			defer cancel()
			return front.Run(gctx)
		})
	} else {
		front := ui.NewConsole(os.Stdin, os.Stdout)
		g.Go(func() error {
			dispatcher.Run(gctx, front.Deliver)
			return nil
		})
		g.Go(func() error {
			defer cancel()
			return front.Run(gctx, actions)
		})
	}

	g.Go(func() error {
		err := ipc.Serve(gctx, cfg.IPC.Socket, func(msg ipc.ControlMessage) {
			switch msg.Cmd {
			case ipc.CmdListen:
				asst.Listen(gctx)
			case ipc.CmdMicTest:
				asst.TestMicrophone(gctx)
			case ipc.CmdAsk:
				ctl.Submit(msg.Text)
			default:
				log.Warn("Unknown command", "cmd", msg.Cmd)
			}
		})
		if err != nil {
			log.Warn("IPC disabled", "socket", cfg.IPC.Socket, "err", err)
		}
		return nil
	})

	if hub != nil {
		g.Go(func() error {
			hub.Publish(gctx)
			return nil
		})
		g.Go(func() error {
			defer hub.Close()
			if err := hub.Run(gctx, ctl.Submit); err != nil {
				log.Warn("Bus disconnected", "err", err)
			}
			return nil
		})
	}

	return g.Wait()
}
