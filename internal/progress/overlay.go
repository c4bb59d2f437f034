package progress

import (
	"fmt"
	"io"
	"strings"

	"github.com/gearshelf/api/internal/model"
)

// Canceller abandons a run. *orchestrator.Orchestrator satisfies it.
type Canceller interface {
	Cancel(runID string) error
}

// Overlay binds a run to the cancel affordance shown next to its progress.
type Overlay struct {
	runID     string
	canceller Canceller
}

func NewOverlay(runID string, canceller Canceller) *Overlay {
	return &Overlay{runID: runID, canceller: canceller}
}

// Cancel forwards to the orchestrator.
func (o *Overlay) Cancel() error {
	return o.canceller.Cancel(o.runID)
}

// Render writes a plain-text rendering of the view.
func Render(w io.Writer, view model.ProgressView) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Processing... %d%%\n", view.Percent)
	for _, s := range view.Stages {
		mark := "[ ]"
		switch s.Status {
		case model.StageStatusCompleted:
			mark = "[x]"
		case model.StageStatusActive:
			mark = "[>]"
		}
		fmt.Fprintf(&b, "  %s %s", mark, s.Title)
		if s.Status == model.StageStatusActive {
			fmt.Fprintf(&b, " - %s", s.Description)
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
