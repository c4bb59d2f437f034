package progress

import (
	"github.com/gearshelf/api/internal/model"
)

// Stage describes one of the four phases shown while a run is outstanding.
type Stage struct {
	ID          string
	Title       string
	Description string
}

// Stages is the fixed, ordered list of descriptors.
var Stages = []Stage{
	{ID: "speech", Title: "Converting Speech", Description: "Transcribing your audio using AI..."},
	{ID: "understanding", Title: "Understanding Equipment", Description: "Extracting equipment details from description..."},
	{ID: "research", Title: "Researching Specs", Description: "Finding technical specifications online..."},
	{ID: "preparing", Title: "Preparing Form", Description: "Creating your pre-filled form..."},
}

// Project maps a stage index onto the stage descriptors. Stages before the
// index are completed, the stage at the index is active and later ones pending.
func Project(stageIndex int) model.ProgressView {
	total := len(Stages)

	views := make([]model.StageView, total)
	for i, s := range Stages {
		status := model.StageStatusPending
		switch {
		case i < stageIndex:
			status = model.StageStatusCompleted
		case i == stageIndex:
			status = model.StageStatusActive
		}
		views[i] = model.StageView{
			ID:          s.ID,
			Title:       s.Title,
			Description: s.Description,
			Status:      status,
		}
	}

	return model.ProgressView{
		StageIndex: stageIndex,
		Percent:    Percent(stageIndex),
		Complete:   stageIndex >= total,
		Stages:     views,
	}
}

// Percent returns stageIndex / total * 100 clamped to [0, 100].
func Percent(stageIndex int) int {
	p := stageIndex * 100 / len(Stages)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
