package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gearshelf/api/internal/audio"
	"github.com/gearshelf/api/internal/model"
)

// --- fakes ---

type manualTicker struct {
	c chan time.Time
}

func newManualTicker() *manualTicker {
	return &manualTicker{c: make(chan time.Time)}
}

func (m *manualTicker) C() <-chan time.Time { return m.c }

func (m *manualTicker) Stop() {}

func (m *manualTicker) tick(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case m.c <- time.Now():
		case <-time.After(time.Second):
			t.Fatalf("tick %d was not consumed", i+1)
		}
	}
}

type fakeStream struct {
	chunks    chan []byte
	closeOnce sync.Once
	closed    atomic.Bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{chunks: make(chan []byte, 16)}
}

func (f *fakeStream) Chunks() <-chan []byte { return f.chunks }

func (f *fakeStream) MimeType() string { return "audio/webm" }

func (f *fakeStream) Close() error {
	f.closeOnce.Do(func() {
		f.closed.Store(true)
		close(f.chunks)
	})
	return nil
}

type fakeDevice struct {
	stream   *fakeStream
	err      error
	acquires atomic.Int32
}

func (d *fakeDevice) Acquire(ctx context.Context) (audio.Stream, error) {
	d.acquires.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	return d.stream, nil
}

func newTestSession(t *testing.T, device audio.Device) (*Session, *manualTicker) {
	t.Helper()
	tk := newManualTicker()
	s := NewSession(device, Options{
		NewTicker: func() Ticker { return tk },
	})
	t.Cleanup(s.Close)
	return s, tk
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met within 1s")
}

func assertIdle(t *testing.T, st model.CaptureState) {
	t.Helper()
	if st.Status != model.CaptureStatusIdle {
		t.Errorf("expected idle, got %s", st.Status)
	}
	if st.Artifact != nil {
		t.Error("expected no artifact")
	}
	if st.ElapsedSeconds != 0 {
		t.Errorf("expected 0 elapsed seconds, got %d", st.ElapsedSeconds)
	}
	if st.LastError != nil {
		t.Errorf("expected no error, got %q", *st.LastError)
	}
}

// --- tests ---

func TestStartThreeTicksStop(t *testing.T) {
	stream := newFakeStream()
	s, tk := newTestSession(t, &fakeDevice{stream: stream})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := s.State().Status; got != model.CaptureStatusRecording {
		t.Fatalf("expected recording, got %s", got)
	}

	stream.chunks <- []byte("abc")
	tk.tick(t, 3)
	stream.chunks <- []byte("def")

	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	st := s.State()
	if st.Status != model.CaptureStatusStopped {
		t.Fatalf("expected stopped, got %s", st.Status)
	}
	if st.Artifact == nil {
		t.Fatal("expected an artifact")
	}
	if st.Artifact.Kind != model.ArtifactKindAudio {
		t.Errorf("expected audio artifact, got %s", st.Artifact.Kind)
	}
	if st.Artifact.DurationSeconds != 3 {
		t.Errorf("expected 3s duration, got %d", st.Artifact.DurationSeconds)
	}
	if string(st.Artifact.Bytes) != "abcdef" {
		t.Errorf("expected 'abcdef', got %q", st.Artifact.Bytes)
	}
	if st.Artifact.MimeHint != "audio/webm" {
		t.Errorf("expected audio/webm, got %q", st.Artifact.MimeHint)
	}
	if !stream.closed.Load() {
		t.Error("expected device stream to be released")
	}
}

func TestAutoStopAtCeiling(t *testing.T) {
	stream := newFakeStream()
	s, tk := newTestSession(t, &fakeDevice{stream: stream})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	tk.tick(t, 119)
	eventually(t, func() bool {
		st := s.State()
		return st.Status == model.CaptureStatusRecording && st.ElapsedSeconds == 119
	})

	tk.tick(t, 1)

	// further ticks are never consumed once the cadence stops
	select {
	case tk.c <- time.Now():
		t.Fatal("tick consumed after auto-stop")
	case <-time.After(50 * time.Millisecond):
	}

	_ = s.Stop()
	st := s.State()
	if st.Status != model.CaptureStatusStopped {
		t.Fatalf("expected stopped, got %s", st.Status)
	}
	if st.ElapsedSeconds != model.MaxRecordingSeconds {
		t.Errorf("expected %d elapsed seconds, got %d", model.MaxRecordingSeconds, st.ElapsedSeconds)
	}
	if st.Artifact == nil || st.Artifact.DurationSeconds != model.MaxRecordingSeconds {
		t.Error("expected artifact with ceiling duration")
	}
	if !stream.closed.Load() {
		t.Error("expected device stream to be released")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s, tk := newTestSession(t, &fakeDevice{stream: newFakeStream()})

	if err := s.Stop(); err != nil {
		t.Fatalf("stop while idle: %v", err)
	}
	assertIdle(t, s.State())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	tk.tick(t, 2)
	_ = s.Stop()
	first := s.State()
	_ = s.Stop()
	second := s.State()

	if first != second {
		t.Error("second stop changed state")
	}
}

func TestStartWhileRecording(t *testing.T) {
	s, _ := newTestSession(t, &fakeDevice{stream: newFakeStream()})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("expected ErrAlreadyRecording, got %v", err)
	}
}

func TestPermissionDenied(t *testing.T) {
	device := &fakeDevice{err: fmt.Errorf("%w: Permission denied", audio.ErrPermissionDenied)}
	s, _ := newTestSession(t, device)

	err := s.Start(context.Background())
	if !errors.Is(err, audio.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	st := s.State()
	if st.Status != model.CaptureStatusIdle {
		t.Errorf("expected idle, got %s", st.Status)
	}
	if st.LastError == nil {
		t.Fatal("expected last error")
	}
	if !strings.HasPrefix(*st.LastError, "Failed to access microphone: ") {
		t.Errorf("unexpected error message %q", *st.LastError)
	}

	// session stays usable
	device.err = nil
	device.stream = newFakeStream()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("retry start: %v", err)
	}
	st = s.State()
	if st.Status != model.CaptureStatusRecording {
		t.Errorf("expected recording after retry, got %s", st.Status)
	}
	if st.LastError != nil {
		t.Error("expected last error cleared after successful start")
	}
}

func TestUseSampleSkipsDevice(t *testing.T) {
	device := &fakeDevice{stream: newFakeStream()}
	s, _ := newTestSession(t, device)

	if err := s.UseSample(model.DefaultSampleText); err != nil {
		t.Fatalf("use sample: %v", err)
	}

	st := s.State()
	if st.Status != model.CaptureStatusStopped {
		t.Fatalf("expected stopped, got %s", st.Status)
	}
	if st.Artifact == nil || st.Artifact.Kind != model.ArtifactKindSampleText {
		t.Fatal("expected sample text artifact")
	}
	if st.Artifact.Text != model.DefaultSampleText {
		t.Errorf("unexpected sample text %q", st.Artifact.Text)
	}
	if n := device.acquires.Load(); n != 0 {
		t.Errorf("expected no device access, got %d", n)
	}
}

func TestResetFromAnyState(t *testing.T) {
	t.Run("idle", func(t *testing.T) {
		s, _ := newTestSession(t, &fakeDevice{stream: newFakeStream()})
		_ = s.Reset()
		assertIdle(t, s.State())
	})

	t.Run("recording", func(t *testing.T) {
		stream := newFakeStream()
		s, tk := newTestSession(t, &fakeDevice{stream: stream})
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("start: %v", err)
		}
		tk.tick(t, 5)
		_ = s.Reset()
		assertIdle(t, s.State())
		if !stream.closed.Load() {
			t.Error("expected device stream to be released")
		}
	})

	t.Run("stopped", func(t *testing.T) {
		s, tk := newTestSession(t, &fakeDevice{stream: newFakeStream()})
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("start: %v", err)
		}
		tk.tick(t, 1)
		_ = s.Stop()
		_ = s.Reset()
		assertIdle(t, s.State())
	})

	t.Run("sample", func(t *testing.T) {
		s, _ := newTestSession(t, &fakeDevice{stream: newFakeStream()})
		_ = s.UseSample("x")
		_ = s.Reset()
		assertIdle(t, s.State())
	})

	t.Run("after error", func(t *testing.T) {
		s, _ := newTestSession(t, &fakeDevice{err: audio.ErrPermissionDenied})
		_ = s.Start(context.Background())
		_ = s.Reset()
		assertIdle(t, s.State())
	})
}

func TestTakeArtifactTransfersOwnership(t *testing.T) {
	s, _ := newTestSession(t, &fakeDevice{stream: newFakeStream()})

	if _, err := s.TakeArtifact(); !errors.Is(err, ErrNoArtifact) {
		t.Fatalf("expected ErrNoArtifact, got %v", err)
	}

	_ = s.UseSample("a Sony A7 III")
	artifact, err := s.TakeArtifact()
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if artifact.Text != "a Sony A7 III" {
		t.Errorf("unexpected text %q", artifact.Text)
	}

	assertIdle(t, s.State())
	if _, err := s.TakeArtifact(); !errors.Is(err, ErrNoArtifact) {
		t.Errorf("expected artifact to be handed out once, got %v", err)
	}
}

func TestOnChangeReceivesSnapshots(t *testing.T) {
	var mu sync.Mutex
	var seen []model.CaptureStatus

	s := NewSession(&fakeDevice{stream: newFakeStream()}, Options{
		NewTicker: func() Ticker { return newManualTicker() },
		OnChange: func(st model.CaptureState) {
			mu.Lock()
			seen = append(seen, st.Status)
			mu.Unlock()
		},
	})
	defer s.Close()

	_ = s.Start(context.Background())
	_ = s.Stop()
	_ = s.Reset()

	mu.Lock()
	defer mu.Unlock()
	want := []model.CaptureStatus{model.CaptureStatusRecording, model.CaptureStatusStopped, model.CaptureStatusIdle}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("change %d: expected %s, got %s", i, want[i], seen[i])
		}
	}
}

func TestClosedSession(t *testing.T) {
	s := NewSession(&fakeDevice{stream: newFakeStream()}, Options{})
	s.Close()

	if err := s.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := s.Reset(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
