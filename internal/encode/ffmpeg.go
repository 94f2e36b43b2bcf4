package encode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/Uni298/OSMStudio/internal/config"
)

// FFmpeg encodes frames by piping them to an ffmpeg subprocess via
// image2pipe. Frames never touch the disk between capture and encode.
type FFmpeg struct {
	ffmpegPath string
	defaults   config.EncoderConfig
	logger     *slog.Logger

	mu         sync.Mutex
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	output     bytes.Buffer
	outputPath string
}

// FFmpegFactory creates FFmpeg encoders from shared settings.
type FFmpegFactory struct {
	cfg    config.EncoderConfig
	logger *slog.Logger
}

// NewFFmpegFactory creates a factory using the given encoder settings.
func NewFFmpegFactory(cfg config.EncoderConfig, logger *slog.Logger) *FFmpegFactory {
	return &FFmpegFactory{cfg: cfg, logger: logger}
}

// New creates an encoder for one session.
func (f *FFmpegFactory) New() Encoder {
	return &FFmpeg{
		ffmpegPath: f.cfg.FFmpegPath,
		defaults:   f.cfg,
		logger:     f.logger,
	}
}

// buildArgs assembles the ffmpeg argument list for one run.
func buildArgs(opts Options) []string {
	return []string{
		"-y",
		"-f", "image2pipe",
		"-framerate", fmt.Sprintf("%d", opts.FPS),
		"-i", "-",
		"-s", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-c:v", opts.Codec,
		"-b:v", opts.Bitrate,
		"-pix_fmt", "yuv420p",
		opts.OutputPath,
	}
}

// Configure starts the ffmpeg subprocess. Empty codec or bitrate fall back
// to the configured defaults.
func (e *FFmpeg) Configure(opts Options) error {
	if opts.Codec == "" {
		opts.Codec = e.defaults.Codec
	}
	if opts.Bitrate == "" {
		opts.Bitrate = e.defaults.Bitrate
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cmd := exec.Command(e.ffmpegPath, buildArgs(opts)...)
	cmd.Stdout = &e.output
	cmd.Stderr = &e.output

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start: %w", err)
	}

	e.cmd = cmd
	e.stdin = stdin
	e.outputPath = opts.OutputPath
	e.logger.Debug("Encoder started", "codec", opts.Codec, "fps", opts.FPS, "output", opts.OutputPath)
	return nil
}

// SubmitFrame pipes one image to ffmpeg.
func (e *FFmpeg) SubmitFrame(image []byte) error {
	e.mu.Lock()
	stdin := e.stdin
	e.mu.Unlock()

	if stdin == nil {
		return ErrNotConfigured
	}
	if _, err := stdin.Write(image); err != nil {
		return fmt.Errorf("ffmpeg frame write: %w", err)
	}
	return nil
}

// Finalize closes the pipe, waits for ffmpeg to finish, and returns the
// output file path.
func (e *FFmpeg) Finalize(ctx context.Context) (string, error) {
	e.mu.Lock()
	cmd := e.cmd
	stdin := e.stdin
	path := e.outputPath
	e.stdin = nil
	e.cmd = nil
	e.mu.Unlock()

	if cmd == nil {
		return "", ErrNotConfigured
	}

	_ = stdin.Close()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			e.logger.Error("Encoder failed", "error", err, "log", e.output.String())
			return "", fmt.Errorf("ffmpeg: %w", err)
		}
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return "", ctx.Err()
	}

	return path, nil
}

// Abort kills ffmpeg and removes any partial output file.
func (e *FFmpeg) Abort() error {
	e.mu.Lock()
	cmd := e.cmd
	stdin := e.stdin
	path := e.outputPath
	e.stdin = nil
	e.cmd = nil
	e.mu.Unlock()

	if cmd == nil {
		return nil
	}

	if stdin != nil {
		_ = stdin.Close()
	}
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	_ = cmd.Wait()

	if path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
