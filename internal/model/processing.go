package model

import (
	"encoding/json"
	"time"
)

// Stage indices shown while a run is outstanding.
const (
	StageQueued       = 0
	StageInterpreting = 1
	StageResearching  = 2
	StagePreparing    = 3
	StageComplete     = 4
	TotalStages       = 4
)

// ProcessingResult is the structured output of one successful run.
type ProcessingResult struct {
	Transcript       string             `json:"transcript"`
	ExtractedFields  map[string]any     `json:"extracted_data"`
	ResearchData     map[string]any     `json:"research_data"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
	PrefillForm      map[string]any     `json:"form_data"`
}

// ProcessingRun is one attempt at turning an artifact into a result.
type ProcessingRun struct {
	ID           string            `json:"id"`
	ArtifactKind ArtifactKind      `json:"artifactKind"`
	StageIndex   int               `json:"stageIndex"`
	Cancelled    bool              `json:"cancelled"`
	Result       *ProcessingResult `json:"result,omitempty"`
	Artifact     *Artifact         `json:"-"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// RunRecord is what the run ledger keeps about a run, including after it is discarded.
type RunRecord struct {
	ID           string          `json:"id"`
	ArtifactKind ArtifactKind    `json:"artifactKind"`
	Status       RunStatus       `json:"status"`
	StageIndex   int             `json:"stageIndex"`
	Error        *string         `json:"error,omitempty"`
	ArchiveURL   string          `json:"archiveUrl,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"` // cleared once delivered
	CreatedAt    time.Time       `json:"createdAt"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
}

// RunStartResponse is returned when an artifact is accepted
type RunStartResponse struct {
	RunID        string       `json:"runId"`
	ArtifactKind ArtifactKind `json:"artifactKind"`
	Status       RunStatus    `json:"status"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// RunStatusResponse combines the ledger entry with the progress projection
type RunStatusResponse struct {
	RunID        string       `json:"runId"`
	ArtifactKind ArtifactKind `json:"artifactKind"`
	Status       RunStatus    `json:"status"`
	StageIndex   int          `json:"stageIndex"`
	Progress     ProgressView `json:"progress"`
	Error        *string      `json:"error,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	CompletedAt  *time.Time   `json:"completedAt,omitempty"`
}

// RunCancelResponse is returned after a cancel request
type RunCancelResponse struct {
	Success bool      `json:"success"`
	RunID   string    `json:"runId"`
	Status  RunStatus `json:"status"`
}

// StageStatus of a single stage descriptor
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusActive    StageStatus = "active"
	StageStatusCompleted StageStatus = "completed"
)

// StageView is one row of the progress overlay
type StageView struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Status      StageStatus `json:"status"`
}

// ProgressView is the projection of a stage index onto the four-stage model
type ProgressView struct {
	StageIndex int         `json:"stageIndex"`
	Percent    int         `json:"percent"`
	Complete   bool        `json:"complete"`
	Stages     []StageView `json:"stages"`
}
