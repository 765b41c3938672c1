package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"delta/internal/audio"
	"delta/internal/backend"
	"delta/internal/capture"
	"delta/internal/config"
	"delta/internal/ipc"
	"delta/internal/wake"
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
	word := cli.StringP("word", "w", "", "Wake word (overrides settings)")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	if err := godotenv.Load(*envFile); err != nil {
		log.Debug("No env file loaded", "path", *envFile, "err", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Debug("Using default settings", "err", err)
	}
	if *word != "" {
		cfg.Wake.Word = *word
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hc, err := backend.HTTPClient(cfg)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.Proxy, "err", err)
		os.Exit(1)
	}

	rec, closer, err := backend.Recognizer(ctx, cfg, hc)
	if err != nil {
		log.Error("Failed to init recognizer", "provider", cfg.Speech.Provider, "err", err)
		os.Exit(1)
	}
	defer closer.Close()

	if err := audio.Init(); err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}
	defer audio.Terminate()

	mic := audio.NewMicrophone(cfg.Audio.SampleRate, cfg.Audio.ChunkSize, log.Default())
	det := &wake.Detector{
		Capturer: capture.New(mic, rec, capture.Options{
			PollTimeout:  cfg.Audio.PollTimeout,
			SilenceLimit: cfg.Audio.SilenceLimit,
			QueueSize:    cfg.Audio.QueueSize,
		}),
		Word:      cfg.Wake.Word,
		MaxListen: time.Duration(cfg.Wake.MaxSeconds * float64(time.Second)),
		Retry:     cfg.Wake.Retry,
	}

	log.Info("Waiting for wake word", "word", cfg.Wake.Word)

	if err := det.Wait(ctx); err != nil {
		log.Info("Stopped", "err", err)
		return
	}

	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := ipc.Send(sctx, cfg.IPC.Socket, ipc.ControlMessage{Cmd: ipc.CmdListen}); err != nil {
		log.Error("delta not running", "socket", cfg.IPC.Socket, "err", err)
		os.Exit(1)
	}
}
