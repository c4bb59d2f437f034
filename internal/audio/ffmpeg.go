package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	webmMimeType = "audio/webm"
	chunkSize    = 16 * 1024
	openTimeout  = 3 * time.Second
	stopTimeout  = 3 * time.Second
)

// MicConfig selects the ffmpeg input used for microphone capture.
type MicConfig struct {
	FFmpegPath  string
	InputFormat string
	InputDevice string
}

// Mic records from a local input through an ffmpeg child process and streams
// opus-in-webm chunks from its stdout.
type Mic struct {
	cfg MicConfig
}

func NewMic(cfg MicConfig) *Mic {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	return &Mic{cfg: cfg}
}

// CheckFFmpeg reports whether the ffmpeg binary is on PATH
func (m *Mic) CheckFFmpeg() error {
	if _, err := exec.LookPath(m.cfg.FFmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found at %q: install ffmpeg or set FFMPEG_PATH", m.cfg.FFmpegPath)
	}
	return nil
}

// Acquire starts ffmpeg and waits until it either produces audio or exits.
// An early exit means the input could not be opened and maps to ErrPermissionDenied.
func (m *Mic) Acquire(ctx context.Context) (Stream, error) {
	if err := m.CheckFFmpeg(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	cmd := exec.Command(m.cfg.FFmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-f", m.cfg.InputFormat,
		"-i", m.cfg.InputDevice,
		"-ac", "1",
		"-ar", "48000",
		"-c:a", "libopus",
		"-f", "webm",
		"pipe:1",
	)
	stderr := &tailBuffer{limit: 2048}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	s := &micStream{
		cmd:    cmd,
		chunks: make(chan []byte, 64),
		opened: make(chan struct{}),
		exited: make(chan struct{}),
	}
	go s.pump(stdout)

	timer := time.NewTimer(openTimeout)
	defer timer.Stop()

	select {
	case <-s.opened:
		log.Debug().Str("format", m.cfg.InputFormat).Str("device", m.cfg.InputDevice).Msg("Microphone opened")
		return s, nil
	case <-s.exited:
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "input device could not be opened"
		}
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, msg)
	case <-timer.C:
		// Some inputs buffer before the first packet; treat a live process as granted.
		return s, nil
	case <-ctx.Done():
		s.kill()
		for range s.chunks {
		}
		return nil, ctx.Err()
	}
}

type micStream struct {
	cmd       *exec.Cmd
	chunks    chan []byte
	opened    chan struct{}
	exited    chan struct{}
	openOnce  sync.Once
	closeOnce sync.Once
}

func (s *micStream) Chunks() <-chan []byte { return s.chunks }

func (s *micStream) MimeType() string { return webmMimeType }

// Close asks ffmpeg to finalize the container. It does not wait for the
// remaining chunks; readers drain Chunks until it is closed.
func (s *micStream) Close() error {
	s.closeOnce.Do(func() {
		if runtime.GOOS == "windows" {
			s.kill()
			return
		}
		if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
			s.kill()
			return
		}
		go func() {
			select {
			case <-s.exited:
			case <-time.After(stopTimeout):
				log.Warn().Msg("ffmpeg did not exit after interrupt, killing")
				s.kill()
			}
		}()
	})
	return nil
}

func (s *micStream) kill() {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
}

func (s *micStream) pump(r io.Reader) {
	defer func() {
		close(s.chunks)
		_ = s.cmd.Wait()
		close(s.exited)
	}()

	for {
		buf := make([]byte, chunkSize)
		n, err := r.Read(buf)
		if n > 0 {
			s.openOnce.Do(func() { close(s.opened) })
			s.chunks <- buf[:n]
		}
		if err != nil {
			return
		}
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
