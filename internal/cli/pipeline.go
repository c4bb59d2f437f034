package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gearshelf/api/internal/model"
	"github.com/gearshelf/api/internal/orchestrator"
	"github.com/gearshelf/api/internal/progress"
	"github.com/gearshelf/api/internal/service"
	"github.com/gearshelf/api/internal/session"
)

// saveOptions are the flags shared by record and sample
type saveOptions struct {
	save      bool
	user      string
	condition string
	barcode   string
	location  string
}

type outcome struct {
	result *model.ProcessingResult
	err    error
}

// terminalListener renders stage changes and reports the outcome once
type terminalListener struct {
	w    io.Writer
	done chan outcome
}

func (l *terminalListener) OnStage(runID string, stageIndex int) {
	_ = progress.Render(l.w, progress.Project(stageIndex))
}

func (l *terminalListener) OnComplete(runID string, result *model.ProcessingResult) {
	l.done <- outcome{result: result}
}

func (l *terminalListener) OnFailed(runID string, err error) {
	l.done <- outcome{err: err}
}

func (l *terminalListener) OnCancelled(runID string) {
	l.done <- outcome{err: orchestrator.ErrUserCancelled}
}

// process runs one artifact through the orchestrator. Cancelling ctx
// abandons the run; a late backend response is dropped.
func process(ctx context.Context, processor orchestrator.Processor, opts orchestrator.Options, artifact *model.Artifact, w io.Writer) (*model.ProcessingResult, error) {
	listener := &terminalListener{w: w, done: make(chan outcome, 1)}
	opts.Listener = listener
	orch := orchestrator.New(processor, opts)

	runID, err := orch.Submit(artifact)
	if err != nil {
		return nil, err
	}

	select {
	case out := <-listener.done:
		return out.result, out.err
	case <-ctx.Done():
		if err := orch.Cancel(runID); err != nil {
			// the backend answered first
			out := <-listener.done
			return out.result, out.err
		}
		<-listener.done
		return nil, orchestrator.ErrUserCancelled
	}
}

func printResult(w io.Writer, result *model.ProcessingResult) error {
	fmt.Fprintf(w, "\nTranscript:\n  %s\n\nPrefilled form:\n", result.Transcript)
	enc := json.NewEncoder(w)
	enc.SetIndent("  ", "  ")
	return enc.Encode(result.PrefillForm)
}

func saveResult(ctx context.Context, deps *Dependencies, result *model.ProcessingResult, opts saveOptions, w io.Writer) error {
	form, err := model.FormFromPrefill(result.PrefillForm)
	if err != nil {
		return err
	}
	if opts.condition != "" {
		form.Condition = model.Condition(opts.condition)
	}
	if opts.barcode != "" {
		form.Barcode = opts.barcode
	}
	if opts.location != "" {
		form.Location = opts.location
	}

	sess, err := session.New(opts.user, "", "", session.SourceLocal)
	if err != nil {
		return fmt.Errorf("--user is required to save: %w", err)
	}

	saved, err := service.NewSaveService(deps.Backend, nil).Save(ctx, sess, form)
	if err != nil {
		return err
	}

	verb := "Created"
	if saved.SKUExisting {
		verb = "Linked to existing"
	}
	fmt.Fprintf(w, "\n%s equipment type %s\nCreated unit %s with barcode %s\n", verb, saved.SKUID, saved.InventoryID, saved.Barcode)
	return nil
}

func orchestratorOptions(deps *Dependencies) orchestrator.Options {
	return orchestrator.Options{
		SettleDelay:   deps.Config.Orchestrator.SettleDelay(),
		AudioCadence:  deps.Config.Orchestrator.AudioCadence(),
		SampleCadence: deps.Config.Orchestrator.SampleCadence(),
	}
}

func defaultUser() string {
	if u := os.Getenv("GEARCTL_USER"); u != "" {
		return u
	}
	return os.Getenv("USER")
}

// runArtifact processes an artifact, prints the result and optionally saves it
func runArtifact(ctx context.Context, deps *Dependencies, artifact *model.Artifact, opts saveOptions, w io.Writer) error {
	result, err := process(ctx, deps.Backend, orchestratorOptions(deps), artifact, w)
	if err != nil {
		return err
	}
	if err := printResult(w, result); err != nil {
		return err
	}
	if !opts.save {
		return nil
	}
	return saveResult(ctx, deps, result, opts, w)
}
