package orchestrator

import (
	"sync"
	"time"

	"github.com/gearshelf/api/internal/model"
	"github.com/rs/zerolog/log"
)

type run struct {
	mu       sync.RWMutex
	snapshot model.ProcessingRun

	cancel     chan struct{}
	cancelOnce sync.Once
	done       chan struct{}

	// set before done is closed
	result *model.ProcessingResult
	err    error

	// guarded by Orchestrator.mu
	finishedAt time.Time
}

type eventKind int

const (
	evSettled eventKind = iota
	evTick
	evResult
	evCancel
)

type event struct {
	kind   eventKind
	result *model.ProcessingResult
	err    error
}

type callResult struct {
	result *model.ProcessingResult
	err    error
}

// loop-local state of one run
type runState struct {
	stage    int
	calling  bool
	terminal bool
	ticker   *time.Ticker
}

// drive is the single writer of a run. Settle timer, cadence ticks, the
// backend response and cancel all become events for reduce.
func (o *Orchestrator) drive(r *run) {
	defer close(r.done)

	settle := time.NewTimer(o.opts.SettleDelay)
	defer settle.Stop()

	// buffered so an abandoned call can always deliver and exit
	results := make(chan callResult, 1)
	st := &runState{stage: model.StageQueued}
	defer o.stopTicker(st)

	for !st.terminal {
		var tickC <-chan time.Time
		if st.ticker != nil {
			tickC = st.ticker.C
		}

		var ev event
		select {
		case <-r.cancel:
			ev = event{kind: evCancel}
		case res := <-results:
			ev = event{kind: evResult, result: res.result, err: res.err}
		case <-settle.C:
			ev = event{kind: evSettled}
		case <-tickC:
			// a response that is already waiting wins over the tick
			select {
			case res := <-results:
				ev = event{kind: evResult, result: res.result, err: res.err}
			default:
				ev = event{kind: evTick}
			}
		}

		o.reduce(r, st, ev, results)
	}
}

// reduce is the only place a run changes state.
func (o *Orchestrator) reduce(r *run, st *runState, ev event, results chan<- callResult) {
	if st.terminal {
		return
	}
	runID := r.snapshot.ID

	switch ev.kind {
	case evSettled:
		st.stage = model.StageInterpreting
		o.publish(r, st.stage, nil)
		o.opts.Listener.OnStage(runID, st.stage)

		st.calling = true
		artifact := r.snapshot.Artifact
		go func() {
			result, err := o.call(artifact)
			results <- callResult{result: result, err: err}
		}()
		st.ticker = time.NewTicker(o.cadence(r.snapshot.ArtifactKind))

	case evTick:
		if !st.calling || st.stage >= model.StagePreparing {
			return
		}
		st.stage++
		o.publish(r, st.stage, nil)
		o.opts.Listener.OnStage(runID, st.stage)

	case evResult:
		o.stopTicker(st)
		st.terminal = true
		st.calling = false
		if ev.err != nil {
			r.err = ev.err
			o.discard(runID)
			log.Warn().Err(ev.err).Str("run_id", runID).Msg("Run failed")
			o.opts.Listener.OnFailed(runID, ev.err)
			return
		}
		st.stage = model.StageComplete
		r.result = ev.result
		o.publish(r, st.stage, ev.result)
		o.discard(runID)
		log.Info().Str("run_id", runID).Msg("Run complete")
		o.opts.Listener.OnStage(runID, st.stage)
		o.opts.Listener.OnComplete(runID, ev.result)

	case evCancel:
		o.stopTicker(st)
		st.terminal = true
		r.err = ErrUserCancelled
		r.mu.Lock()
		r.snapshot.Cancelled = true
		r.mu.Unlock()
		o.discard(runID)
		log.Info().Str("run_id", runID).Bool("call_outstanding", st.calling).Msg("Run cancelled")
		o.opts.Listener.OnCancelled(runID)
	}
}

func (o *Orchestrator) publish(r *run, stage int, result *model.ProcessingResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot.StageIndex = stage
	if result != nil {
		r.snapshot.Result = result
	}
}

func (o *Orchestrator) stopTicker(st *runState) {
	if st.ticker != nil {
		st.ticker.Stop()
		st.ticker = nil
	}
}
