package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Uni298/OSMStudio/internal/api"
	"github.com/Uni298/OSMStudio/internal/config"
	"github.com/Uni298/OSMStudio/internal/encode"
	"github.com/Uni298/OSMStudio/internal/framestore"
	"github.com/Uni298/OSMStudio/internal/logging"
	"github.com/Uni298/OSMStudio/internal/render"
	"github.com/Uni298/OSMStudio/internal/session"
	"github.com/Uni298/OSMStudio/internal/studio"
	"github.com/Uni298/OSMStudio/internal/telemetry"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	SessionStartTime time.Time = time.Now()
)

// janitorInterval is how often expired sessions are swept.
const janitorInterval = time.Hour

func main() {
	configDir := flag.String("config", ".", "directory containing osmstudio.cfg.json")
	flag.Parse()

	// Bootstrap logging to the console until the config tells us where the
	// log file lives.
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load(*configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	logsDir := config.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		os.MkdirAll(logsDir, 0755)
	}

	var logFile io.Writer
	f, err := os.Create(logging.LogFilePath(logsDir, "osmstudio", SessionStartTime))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log file: %v\n", err)
	} else {
		logFile = f
		defer f.Close()
	}

	var gelfWriter io.Writer
	if config.GetBool("graylog.enabled") {
		w, err := logging.DialGraylog(config.GetString("graylog.address"))
		if err != nil {
			Logger.Warn("Failed to connect to Graylog", "error", err)
		} else {
			gelfWriter = w
		}
	}

	SlogManager.Setup(logFile, config.GetString("logLevel"), gelfWriter)
	Logger = SlogManager.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionCfg := config.GetSessionConfig()
	sessions, err := session.NewStore(ctx, sessionCfg)
	if err != nil {
		Logger.Error("Failed to open session store", "store", sessionCfg.Store, "error", err)
		os.Exit(1)
	}
	defer sessions.Close()
	Logger.Info("Session store ready", "store", sessionCfg.Store)

	exportCfg := config.GetExportConfig()
	frames, err := framestore.New(exportCfg.FrameDir)
	if err != nil {
		Logger.Error("Failed to create frame store", "dir", exportCfg.FrameDir, "error", err)
		os.Exit(1)
	}

	rendererCfg := config.GetRendererConfig()
	surfaces := render.NewRemoteFactory(render.Config{
		URL:           rendererCfg.URL,
		Width:         rendererCfg.Width,
		Height:        rendererCfg.Height,
		SettleTimeout: rendererCfg.SettleTimeout,
	}, Logger)

	encoders := encode.NewFFmpegFactory(config.GetEncoderConfig(), Logger)

	deps := studio.Dependencies{
		Sessions:       sessions,
		Frames:         frames,
		Surfaces:       surfaces,
		Encoders:       encoders,
		Config:         exportCfg,
		Logger:         Logger,
		MaxConcurrency: rendererCfg.Instances,
	}

	if config.GetBool("influx.enabled") {
		zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		tm := telemetry.NewManager(zlog, filepath.Join(logsDir, "influx_backup.log.gz"))
		if err := tm.Connect(); err != nil {
			Logger.Warn("InfluxDB unavailable, telemetry disabled", "error", err)
		} else {
			deps.Telemetry = tm
			Logger.Info("InfluxDB telemetry enabled")

			monitor := telemetry.NewMonitor(telemetry.MonitorDependencies{
				Sessions: sessions,
				Sink:     tm,
				Logger:   Logger,
				Interval: time.Second,
			})
			monitor.Start()
			defer monitor.Stop()
		}
	}

	svc := studio.New(deps)

	janitor := session.NewJanitor(sessions, frames, exportCfg.Retention, janitorInterval, Logger)
	janitor.Start()
	defer janitor.Stop()

	server := &http.Server{
		Addr:         config.GetString("http.listenAddr"),
		Handler:      api.NewServer(svc, Logger).Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // artifact downloads can be large
	}

	go func() {
		Logger.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	Logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		Logger.Error("HTTP shutdown failed", "error", err)
	}
}
