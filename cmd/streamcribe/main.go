package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nullagree/streamcribe/internal/asrclient"
	"github.com/nullagree/streamcribe/internal/config"
	"github.com/nullagree/streamcribe/internal/session"
	"github.com/nullagree/streamcribe/internal/telemetry"
)

const (
	startTimeout = 10 * time.Second
	stopTimeout  = 10 * time.Second
)

func slogReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.SourceKey {
		if source, ok := a.Value.Any().(*slog.Source); ok {
			source.File = filepath.Base(source.File)
		}
	}
	return a
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarning:
		return slog.LevelWarn
	case config.LogLevelError, config.LogLevelCritical:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	var (
		cfg        config.Config
		configPath string
	)

	rootCmd := &cobra.Command{
		Use:   "streamcribe",
		Short: "A streaming transcription client",
	}

	listenCmd := &cobra.Command{
		Use:   "listen [url]",
		Short: "Start a transcription session against a backend URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.URL = args[0]

			if err := cfg.FromEnv(); err != nil {
				return err
			}
			if configPath != "" {
				if err := cfg.FromFile(configPath); err != nil {
					return err
				}
			}
			cfg.SetDefaults()
			if err := cfg.IsValid(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			return run(cfg)
		},
	}

	var task, lang string
	listenCmd.Flags().IntVar(&cfg.Channels, "channels", 0, "input channel count, 1 or 2")
	listenCmd.Flags().IntVar(&cfg.SampleRate, "srate", 0, "sample rate in Hz")
	listenCmd.Flags().IntVar(&cfg.Block, "block", 0, "capture callback block size in frames")
	listenCmd.Flags().StringVar(&cfg.File, "file", "", "path to a raw float32 PCM file to replay instead of the microphone")
	listenCmd.Flags().BoolVar(&cfg.Play, "play", false, "requires --file; --file is replayed at wall-clock rate with or without this flag")
	listenCmd.Flags().StringVar(&task, "task", "", "transcribe or translate")
	listenCmd.Flags().StringVar(&lang, "lang", "", "language hint")
	listenCmd.Flags().IntVar(&cfg.BeamSize, "beam", 0, "backend decoder beam width")
	listenCmd.Flags().DurationVar(&cfg.Every, "every", 0, "pacer tick interval")
	listenCmd.Flags().DurationVar(&cfg.MaxSegmentTime, "max-segment-time", 0, "force-commit threshold")
	listenCmd.Flags().IntVar(&cfg.MinCommonWords, "min-common-words", 0, "minimum agreed words required to commit")
	listenCmd.Flags().IntVar(&cfg.MinRemainWords, "min-remain-words", 0, "minimum words left in the tail after a commit")
	listenCmd.Flags().DurationVar(&cfg.Timeout, "timeout", 0, "backend request timeout")
	listenCmd.Flags().StringVar(&configPath, "config", "", "optional YAML config file")

	var logLevel, renderKind string
	listenCmd.Flags().StringVar(&logLevel, "log", "", "debug, info, warning, error, critical")
	listenCmd.Flags().StringVar(&cfg.LogFile, "log-file", "", "path to write logs to, in addition to stdout")
	listenCmd.Flags().StringVar(&renderKind, "render", "", "terminal or ws")
	listenCmd.Flags().StringVar(&cfg.RenderAddr, "render-addr", "", "listen address for the websocket render sink")

	cobra.OnInitialize(func() {
		if task != "" {
			cfg.Task = asrclient.Task(task)
		}
		cfg.Lang = lang
		if logLevel != "" {
			cfg.LogLevel = config.LogLevel(logLevel)
		}
		if renderKind != "" {
			cfg.Render = config.RenderKind(renderKind)
		}
	})

	rootCmd.AddCommand(listenCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", cfg.LogFile, err)
	}
	defer logFile.Close()

	logWriter := io.MultiWriter(os.Stdout, logFile)
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource:   true,
		Level:       slogLevel(cfg.LogLevel),
		ReplaceAttr: slogReplaceAttr,
	}))
	slog.SetDefault(logger)

	shutdownTelemetry := telemetry.Init()
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Error("failed to shut down telemetry", slog.String("err", err.Error()))
		}
	}()

	var fileData []float32
	if cfg.File != "" {
		data, err := loadPCMFile(cfg.File)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", cfg.File, err)
		}
		fileData = data
	}

	sess, err := session.New(cfg, fileData, os.Stdout)
	if err != nil {
		slog.Error("failed to create session", slog.String("err", err.Error()))
		return err
	}

	slog.Info("starting session", slog.Any("config", cfg.ToMap()))

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := sess.Start(ctx); err != nil {
		slog.Error("failed to start session", slog.String("err", err.Error()))
		return err
	}

	slog.Info("session started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sess.Done():
		if err := sess.Err(); err != nil {
			slog.Error("session failed", slog.String("err", err.Error()))
			return err
		}
	case <-sig:
		slog.Info("received interrupt, stopping session")
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := sess.Stop(stopCtx); err != nil {
			slog.Error("failed to stop session cleanly", slog.String("err", err.Error()))
			return err
		}
	}

	slog.Info("session finished")
	return nil
}
