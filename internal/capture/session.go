package capture

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gearshelf/api/internal/audio"
	"github.com/gearshelf/api/internal/model"
	"github.com/rs/zerolog/log"
)

var (
	// ErrAlreadyRecording is returned by Start while a recording is live or being acquired.
	ErrAlreadyRecording = errors.New("capture already recording")
	// ErrStartAborted is returned by Start when a reset or sample superseded the pending acquisition.
	ErrStartAborted = errors.New("capture start aborted")
	// ErrNoArtifact is returned by TakeArtifact when nothing has been captured.
	ErrNoArtifact = errors.New("no captured artifact")
	// ErrClosed is returned once the session has been closed.
	ErrClosed = errors.New("capture session closed")
)

// Options configures a Session.
type Options struct {
	MaxSeconds int
	NewTicker  func() Ticker
	OnChange   func(model.CaptureState)
}

// Session owns a capture device and turns start/stop/sample/reset intents into
// exactly one Artifact. All mutations run on a single loop goroutine.
type Session struct {
	device     audio.Device
	maxSeconds int
	newTicker  func() Ticker
	onChange   func(model.CaptureState)

	events    chan any
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu    sync.RWMutex
	state model.CaptureState
}

type startCmd struct {
	ctx   context.Context
	reply chan error
}

type grantedEvent struct {
	gen    int
	stream audio.Stream
	err    error
	reply  chan error
}

type stopCmd struct{ reply chan struct{} }

type resetCmd struct{ reply chan struct{} }

type sampleCmd struct {
	text  string
	reply chan struct{}
}

type takeCmd struct{ reply chan *model.Artifact }

// loopState is only touched by the loop goroutine.
type loopState struct {
	status    model.CaptureStatus
	elapsed   int
	artifact  *model.Artifact
	lastError *string

	acquiring bool
	gen       int
	stream    audio.Stream
	ticker    Ticker
	buf       bytes.Buffer
}

func NewSession(device audio.Device, opts Options) *Session {
	if opts.MaxSeconds <= 0 {
		opts.MaxSeconds = model.MaxRecordingSeconds
	}
	if opts.NewTicker == nil {
		opts.NewTicker = func() Ticker { return NewClockTicker(time.Second) }
	}

	s := &Session{
		device:     device,
		maxSeconds: opts.MaxSeconds,
		newTicker:  opts.NewTicker,
		onChange:   opts.OnChange,
		events:     make(chan any),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		state:      model.CaptureState{Status: model.CaptureStatusIdle},
	}
	go s.run()
	return s
}

// Start requests the device and begins recording once access is granted.
// A denial is recorded in LastError and the session stays usable.
func (s *Session) Start(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := s.send(startCmd{ctx: ctx, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop finalizes the recording into an audio artifact. No-op unless recording.
func (s *Session) Stop() error {
	reply := make(chan struct{}, 1)
	if err := s.send(stopCmd{reply: reply}); err != nil {
		return err
	}
	<-reply
	return nil
}

// UseSample skips the device and produces a text artifact directly.
func (s *Session) UseSample(text string) error {
	reply := make(chan struct{}, 1)
	if err := s.send(sampleCmd{text: text, reply: reply}); err != nil {
		return err
	}
	<-reply
	return nil
}

// Reset releases the device and returns to Idle from any state.
func (s *Session) Reset() error {
	reply := make(chan struct{}, 1)
	if err := s.send(resetCmd{reply: reply}); err != nil {
		return err
	}
	<-reply
	return nil
}

// TakeArtifact hands the finished artifact to the caller. The session keeps
// no reference to it and returns to Idle.
func (s *Session) TakeArtifact() (*model.Artifact, error) {
	reply := make(chan *model.Artifact, 1)
	if err := s.send(takeCmd{reply: reply}); err != nil {
		return nil, err
	}
	artifact := <-reply
	if artifact == nil {
		return nil, ErrNoArtifact
	}
	return artifact, nil
}

// State returns the latest published snapshot.
func (s *Session) State() model.CaptureState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Close releases the device and stops the loop.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.done
}

func (s *Session) send(ev any) error {
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

func (s *Session) run() {
	defer close(s.done)

	var st loopState
	st.status = model.CaptureStatusIdle

	for {
		var tickC <-chan time.Time
		if st.ticker != nil {
			tickC = st.ticker.C()
		}
		var chunkC <-chan []byte
		if st.stream != nil {
			chunkC = st.stream.Chunks()
		}

		select {
		case ev := <-s.events:
			reply := s.reduce(&st, ev)
			s.publish(&st)
			if reply != nil {
				reply()
			}
			continue
		case <-tickC:
			s.tick(&st)
		case chunk, ok := <-chunkC:
			if !ok {
				// source ended on its own
				if st.status == model.CaptureStatusRecording {
					s.finish(&st)
					s.publish(&st)
				} else {
					st.stream = nil
				}
				continue
			}
			st.buf.Write(chunk)
			continue
		case <-s.quit:
			s.discard(&st)
			return
		}
		s.publish(&st)
	}
}

// reduce applies one event and returns the reply to send once the new state is published.
func (s *Session) reduce(st *loopState, ev any) func() {
	switch ev := ev.(type) {
	case startCmd:
		if st.status == model.CaptureStatusRecording || st.acquiring {
			return func() { ev.reply <- ErrAlreadyRecording }
		}
		st.acquiring = true
		st.gen++
		gen := st.gen
		go func() {
			stream, err := s.device.Acquire(ev.ctx)
			s.post(grantedEvent{gen: gen, stream: stream, err: err, reply: ev.reply})
		}()
		return nil

	case grantedEvent:
		if ev.gen != st.gen || !st.acquiring {
			if ev.stream != nil {
				release(ev.stream)
			}
			return func() { ev.reply <- ErrStartAborted }
		}
		st.acquiring = false
		if ev.err != nil {
			msg := "Failed to access microphone: " + ev.err.Error()
			st.lastError = &msg
			log.Warn().Err(ev.err).Msg("Microphone access failed")
			return func() { ev.reply <- ev.err }
		}
		st.buf.Reset()
		st.status = model.CaptureStatusRecording
		st.elapsed = 0
		st.artifact = nil
		st.lastError = nil
		st.stream = ev.stream
		st.ticker = s.newTicker()
		log.Info().Msg("Recording started")
		return func() { ev.reply <- nil }

	case stopCmd:
		if st.status == model.CaptureStatusRecording {
			s.finish(st)
		}
		return func() { ev.reply <- struct{}{} }

	case sampleCmd:
		s.discard(st)
		st.gen++
		st.acquiring = false
		st.status = model.CaptureStatusStopped
		st.elapsed = 0
		st.artifact = model.NewSampleArtifact(ev.text)
		st.lastError = nil
		return func() { ev.reply <- struct{}{} }

	case resetCmd:
		s.discard(st)
		st.gen++
		st.acquiring = false
		st.status = model.CaptureStatusIdle
		st.elapsed = 0
		st.artifact = nil
		st.lastError = nil
		return func() { ev.reply <- struct{}{} }

	case takeCmd:
		artifact := st.artifact
		if artifact != nil {
			st.artifact = nil
			st.status = model.CaptureStatusIdle
			st.elapsed = 0
		}
		return func() { ev.reply <- artifact }
	}
	return nil
}

func (s *Session) tick(st *loopState) {
	if st.status != model.CaptureStatusRecording {
		return
	}
	if st.elapsed+1 >= s.maxSeconds {
		st.elapsed = s.maxSeconds
		log.Info().Int("seconds", s.maxSeconds).Msg("Recording reached maximum duration")
		s.finish(st)
		return
	}
	st.elapsed++
}

// finish closes the device, drains what it still holds and builds the artifact.
func (s *Session) finish(st *loopState) {
	s.stopTicker(st)

	mime := ""
	if st.stream != nil {
		mime = st.stream.MimeType()
		if err := st.stream.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close capture stream")
		}
		for chunk := range st.stream.Chunks() {
			st.buf.Write(chunk)
		}
		st.stream = nil
	}

	st.artifact = model.NewAudioArtifact(st.buf.Bytes(), mime, st.elapsed)
	st.buf.Reset()
	st.status = model.CaptureStatusStopped
	log.Info().
		Int("seconds", st.elapsed).
		Int("bytes", st.artifact.Size()).
		Msg("Recording stopped")
}

// discard releases the device without producing an artifact.
func (s *Session) discard(st *loopState) {
	s.stopTicker(st)
	if st.stream != nil {
		release(st.stream)
		st.stream = nil
	}
	st.buf.Reset()
}

func (s *Session) stopTicker(st *loopState) {
	if st.ticker != nil {
		st.ticker.Stop()
		st.ticker = nil
	}
}

func (s *Session) post(ev grantedEvent) {
	select {
	case s.events <- ev:
	case <-s.quit:
		if ev.stream != nil {
			release(ev.stream)
		}
		ev.reply <- ErrClosed
	}
}

func (s *Session) publish(st *loopState) {
	next := model.CaptureState{
		Status:         st.status,
		ElapsedSeconds: st.elapsed,
		Artifact:       st.artifact,
		LastError:      st.lastError,
	}

	s.mu.Lock()
	changed := s.state != next
	s.state = next
	s.mu.Unlock()

	if changed && s.onChange != nil {
		s.onChange(next)
	}
}

// release closes a stream nobody will read from and empties it in the background.
func release(stream audio.Stream) {
	_ = stream.Close()
	chunks := stream.Chunks()
	go func() {
		for range chunks {
		}
	}()
}
