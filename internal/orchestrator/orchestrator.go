package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gearshelf/api/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNetworkFailure wraps a transport error or non-success status from the backend.
	ErrNetworkFailure = errors.New("processing request failed")
	// ErrUserCancelled is the outcome of a run abandoned by the user.
	ErrUserCancelled = errors.New("processing cancelled")
	// ErrRunNotFound is returned for unknown or already discarded runs.
	ErrRunNotFound = errors.New("run not found")
	// ErrInvalidArtifact is returned by Submit for a nil or empty artifact.
	ErrInvalidArtifact = errors.New("invalid artifact")
)

// Processor is the backend that turns an artifact into a result with one call.
type Processor interface {
	ProcessAudio(ctx context.Context, audio []byte, mimeHint string) (*model.ProcessingResult, error)
	ProcessSample(ctx context.Context, text string) (*model.ProcessingResult, error)
}

// Listener observes run transitions. Calls for one run are made in order
// from that run's loop goroutine.
type Listener interface {
	OnStage(runID string, stageIndex int)
	OnComplete(runID string, result *model.ProcessingResult)
	OnFailed(runID string, err error)
	OnCancelled(runID string)
}

type Options struct {
	SettleDelay   time.Duration
	AudioCadence  time.Duration
	SampleCadence time.Duration
	Listener      Listener
}

// DefaultOptions returns the stock timings.
func DefaultOptions() Options {
	return Options{
		SettleDelay:   500 * time.Millisecond,
		AudioCadence:  2 * time.Second,
		SampleCadence: time.Second,
	}
}

// Orchestrator drives one backend call per artifact and shows simulated stage
// progress while the call is outstanding.
type Orchestrator struct {
	processor Processor
	opts      Options

	mu   sync.RWMutex
	runs map[string]*run
	// terminal runs whose outcome Wait has not read yet
	finished map[string]*run
}

// outcomeRetention bounds how long an unread outcome is kept for Wait.
const outcomeRetention = 10 * time.Minute

func New(processor Processor, opts Options) *Orchestrator {
	if opts.Listener == nil {
		opts.Listener = nopListener{}
	}
	return &Orchestrator{
		processor: processor,
		opts:      opts,
		runs:      make(map[string]*run),
		finished:  make(map[string]*run),
	}
}

// Submit accepts an artifact and starts a run. Ownership of the artifact
// moves to the run.
func (o *Orchestrator) Submit(artifact *model.Artifact) (string, error) {
	if artifact == nil || artifact.Size() == 0 {
		return "", ErrInvalidArtifact
	}

	r := &run{
		snapshot: model.ProcessingRun{
			ID:           uuid.NewString(),
			ArtifactKind: artifact.Kind,
			StageIndex:   model.StageQueued,
			Artifact:     artifact,
			CreatedAt:    time.Now(),
		},
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}

	o.mu.Lock()
	o.runs[r.snapshot.ID] = r
	o.mu.Unlock()

	log.Info().
		Str("run_id", r.snapshot.ID).
		Str("kind", string(artifact.Kind)).
		Int("bytes", artifact.Size()).
		Msg("Run accepted")

	go o.drive(r)
	return r.snapshot.ID, nil
}

// Cancel abandons a run. Its in-flight call is not aborted; a late response is dropped.
func (o *Orchestrator) Cancel(runID string) error {
	r, ok := o.get(runID)
	if !ok {
		return ErrRunNotFound
	}
	r.cancelOnce.Do(func() { close(r.cancel) })
	<-r.done
	if !errors.Is(r.err, ErrUserCancelled) {
		// the backend answered first
		return ErrRunNotFound
	}
	return nil
}

// Snapshot returns the current state of a live run.
func (o *Orchestrator) Snapshot(runID string) (model.ProcessingRun, error) {
	r, ok := o.get(runID)
	if !ok {
		return model.ProcessingRun{}, ErrRunNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot, nil
}

// Wait blocks until the run reaches a terminal state and returns its outcome.
// A finished run's outcome can be read once.
func (o *Orchestrator) Wait(ctx context.Context, runID string) (*model.ProcessingResult, error) {
	o.mu.RLock()
	r, ok := o.runs[runID]
	if !ok {
		r, ok = o.finished[runID]
	}
	o.mu.RUnlock()
	if !ok {
		return nil, ErrRunNotFound
	}
	select {
	case <-r.done:
		o.mu.Lock()
		delete(o.finished, runID)
		o.mu.Unlock()
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Active returns the number of runs not yet terminal.
func (o *Orchestrator) Active() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.runs)
}

// Shutdown cancels every live run.
func (o *Orchestrator) Shutdown() {
	o.mu.RLock()
	ids := make([]string, 0, len(o.runs))
	for id := range o.runs {
		ids = append(ids, id)
	}
	o.mu.RUnlock()

	for _, id := range ids {
		_ = o.Cancel(id)
	}
}

func (o *Orchestrator) get(runID string) (*run, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	r, ok := o.runs[runID]
	return r, ok
}

// discard removes a run from the live set. Its outcome stays readable by Wait
// until read or until outcomeRetention passes.
func (o *Orchestrator) discard(runID string) {
	now := time.Now()
	o.mu.Lock()
	defer o.mu.Unlock()
	if r, ok := o.runs[runID]; ok {
		delete(o.runs, runID)
		r.finishedAt = now
		o.finished[runID] = r
	}
	for id, r := range o.finished {
		if now.Sub(r.finishedAt) > outcomeRetention {
			delete(o.finished, id)
		}
	}
}

func (o *Orchestrator) cadence(kind model.ArtifactKind) time.Duration {
	if kind == model.ArtifactKindSampleText {
		return o.opts.SampleCadence
	}
	return o.opts.AudioCadence
}

type nopListener struct{}

func (nopListener) OnStage(string, int) {}
func (nopListener) OnComplete(string, *model.ProcessingResult) {}
func (nopListener) OnFailed(string, error) {}
func (nopListener) OnCancelled(string) {}

// call issues the single backend request for an artifact.
func (o *Orchestrator) call(artifact *model.Artifact) (*model.ProcessingResult, error) {
	ctx := context.Background()
	var (
		result *model.ProcessingResult
		err    error
	)
	switch artifact.Kind {
	case model.ArtifactKindSampleText:
		result, err = o.processor.ProcessSample(ctx, artifact.Text)
	default:
		result, err = o.processor.ProcessAudio(ctx, artifact.Bytes, artifact.MimeHint)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: empty response", ErrNetworkFailure)
	}
	return result, nil
}
