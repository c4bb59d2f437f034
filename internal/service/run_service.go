package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gearshelf/api/internal/client"
	"github.com/gearshelf/api/internal/model"
	"github.com/gearshelf/api/internal/orchestrator"
	"github.com/gearshelf/api/internal/progress"
	"github.com/gearshelf/api/pkg/response"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	runKeyPrefix = "run:"
	runTTL       = 24 * time.Hour
	ledgerWrite  = 5 * time.Second
	archiveWrite = 30 * time.Second
)

var (
	ErrRunNotFound     = errors.New("run not found")
	ErrRunNotComplete  = errors.New("run not completed")
	ErrRunFinished     = errors.New("run already finished")
	ErrResultDelivered = errors.New("result already delivered")
	ErrRunFailed       = errors.New("run failed")
	ErrRunCancelled    = errors.New("run cancelled")
)

// Broadcaster pushes run events to connected clients
type Broadcaster interface {
	BroadcastProgress(runID string, stageIndex int, status model.RunStatus)
	BroadcastComplete(runID string, result *model.ProcessingResult)
	BroadcastError(runID string, code, message string)
}

// RunService owns the orchestrator, mirrors its runs into a Redis ledger
// and fans events out to websocket subscribers.
type RunService struct {
	redis   *redis.Client
	orch    *orchestrator.Orchestrator
	storage client.StorageClient
	hub     Broadcaster

	// serializes read-modify-write of ledger entries
	mu        sync.Mutex
	artifacts map[string]*model.Artifact
}

// NewRunService creates the service and its orchestrator. storage and hub may be nil.
func NewRunService(redisClient *redis.Client, processor orchestrator.Processor, opts orchestrator.Options, storage client.StorageClient, hub Broadcaster) *RunService {
	s := &RunService{
		redis:     redisClient,
		storage:   storage,
		hub:       hub,
		artifacts: make(map[string]*model.Artifact),
	}
	opts.Listener = s
	s.orch = orchestrator.New(processor, opts)
	return s
}

// Start hands an artifact to the orchestrator and opens a ledger entry for the run
func (s *RunService) Start(ctx context.Context, artifact *model.Artifact) (*model.RunStartResponse, error) {
	s.mu.Lock()
	runID, err := s.orch.Submit(artifact)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	now := time.Now()
	rec := &model.RunRecord{
		ID:           runID,
		ArtifactKind: artifact.Kind,
		Status:       model.RunStatusRunning,
		StageIndex:   model.StageQueued,
		CreatedAt:    now,
	}
	if err := s.saveRun(ctx, rec); err != nil {
		s.mu.Unlock()
		// the run loop takes mu in its listener callbacks
		_ = s.orch.Cancel(runID)
		return nil, fmt.Errorf("failed to save run: %w", err)
	}
	if s.storage != nil && artifact.Kind == model.ArtifactKindAudio {
		s.artifacts[runID] = artifact
	}
	s.mu.Unlock()

	return &model.RunStartResponse{
		RunID:        runID,
		ArtifactKind: artifact.Kind,
		Status:       model.RunStatusRunning,
		CreatedAt:    now,
	}, nil
}

// GetStatus returns the ledger entry of a run with its progress projection
func (s *RunService) GetStatus(ctx context.Context, runID string) (*model.RunStatusResponse, error) {
	rec, err := s.getRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	return &model.RunStatusResponse{
		RunID:        rec.ID,
		ArtifactKind: rec.ArtifactKind,
		Status:       rec.Status,
		StageIndex:   rec.StageIndex,
		Progress:     progress.Project(rec.StageIndex),
		Error:        rec.Error,
		CreatedAt:    rec.CreatedAt,
		CompletedAt:  rec.CompletedAt,
	}, nil
}

// DeliverResult returns the result of a succeeded run once; the ledger keeps
// only the fact that it was delivered.
func (s *RunService) DeliverResult(ctx context.Context, runID string) (*model.ProcessingResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.getRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	switch rec.Status {
	case model.RunStatusRunning:
		return nil, ErrRunNotComplete
	case model.RunStatusDelivered:
		return nil, ErrResultDelivered
	case model.RunStatusFailed:
		return nil, ErrRunFailed
	case model.RunStatusCanceled:
		return nil, ErrRunCancelled
	}

	var result model.ProcessingResult
	if err := json.Unmarshal(rec.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	rec.Status = model.RunStatusDelivered
	rec.Result = nil
	if err := s.saveRun(ctx, rec); err != nil {
		return nil, err
	}
	return &result, nil
}

// Cancel abandons a running run
func (s *RunService) Cancel(runID string) error {
	err := s.orch.Cancel(runID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, orchestrator.ErrRunNotFound) {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), ledgerWrite)
	defer cancel()
	if _, lerr := s.getRun(ctx, runID); lerr != nil {
		return lerr
	}
	return ErrRunFinished
}

// CancelRun cancels and reports the resulting ledger status
func (s *RunService) CancelRun(ctx context.Context, runID string) (*model.RunCancelResponse, error) {
	if err := s.Cancel(runID); err != nil {
		return nil, err
	}
	return &model.RunCancelResponse{
		Success: true,
		RunID:   runID,
		Status:  model.RunStatusCanceled,
	}, nil
}

// Shutdown cancels all live runs
func (s *RunService) Shutdown() {
	s.orch.Shutdown()
}

// OnStage records a stage change. Stage 4 is written by OnComplete together
// with the result.
func (s *RunService) OnStage(runID string, stageIndex int) {
	if stageIndex >= model.StageComplete {
		return
	}
	s.update(runID, func(rec *model.RunRecord) {
		if stageIndex > rec.StageIndex {
			rec.StageIndex = stageIndex
		}
	})
	if s.hub != nil {
		s.hub.BroadcastProgress(runID, stageIndex, model.RunStatusRunning)
	}
}

// OnComplete stores the result, then archives the recording
func (s *RunService) OnComplete(runID string, result *model.ProcessingResult) {
	data, err := json.Marshal(result)
	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("Failed to marshal result")
	}

	// stage 4, result and status land in one write
	s.update(runID, func(rec *model.RunRecord) {
		now := time.Now()
		rec.Status = model.RunStatusSucceeded
		rec.StageIndex = model.StageComplete
		rec.Result = data
		rec.CompletedAt = &now
	})
	if s.hub != nil {
		s.hub.BroadcastProgress(runID, model.StageComplete, model.RunStatusSucceeded)
		s.hub.BroadcastComplete(runID, result)
	}

	if archiveURL := s.archive(runID); archiveURL != "" {
		s.update(runID, func(rec *model.RunRecord) {
			rec.ArchiveURL = archiveURL
		})
	}
}

// OnFailed records the failure; the run keeps no partial result
func (s *RunService) OnFailed(runID string, err error) {
	s.forget(runID)
	msg := err.Error()
	s.update(runID, func(rec *model.RunRecord) {
		now := time.Now()
		rec.Status = model.RunStatusFailed
		rec.Error = &msg
		rec.CompletedAt = &now
	})
	if s.hub != nil {
		s.hub.BroadcastError(runID, response.CodeNetworkFailure, "Failed to process equipment description")
	}
}

// OnCancelled records the cancellation
func (s *RunService) OnCancelled(runID string) {
	s.forget(runID)
	s.update(runID, func(rec *model.RunRecord) {
		now := time.Now()
		rec.Status = model.RunStatusCanceled
		rec.CompletedAt = &now
	})
	if s.hub != nil {
		s.hub.BroadcastError(runID, response.CodeRunCancelled, "Processing cancelled")
	}
}

func (s *RunService) archive(runID string) string {
	s.mu.Lock()
	artifact := s.artifacts[runID]
	delete(s.artifacts, runID)
	s.mu.Unlock()

	if artifact == nil || s.storage == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), archiveWrite)
	defer cancel()
	url, err := client.ArchiveRecording(ctx, s.storage, runID, artifact)
	if err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("Failed to archive recording")
		return ""
	}
	return url
}

func (s *RunService) forget(runID string) {
	s.mu.Lock()
	delete(s.artifacts, runID)
	s.mu.Unlock()
}

func (s *RunService) update(runID string, fn func(rec *model.RunRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), ledgerWrite)
	defer cancel()

	rec, err := s.getRun(ctx, runID)
	if err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("Run ledger entry missing")
		return
	}
	fn(rec)
	if err := s.saveRun(ctx, rec); err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("Failed to update run ledger")
	}
}

// Helper methods

func (s *RunService) saveRun(ctx context.Context, rec *model.RunRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, runKeyPrefix+rec.ID, data, runTTL).Err()
}

func (s *RunService) getRun(ctx context.Context, runID string) (*model.RunRecord, error) {
	data, err := s.redis.Get(ctx, runKeyPrefix+runID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	var rec model.RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
