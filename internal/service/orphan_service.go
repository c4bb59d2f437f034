package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/gearshelf/api/internal/model"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	TaskTypeOrphanAudit = "orphan:audit"

	orphanLedgerKey = "orphans:sku"
)

// OrphanQueue hands orphaned type records to the audit worker
type OrphanQueue struct {
	asynqClient *asynq.Client
}

func NewOrphanQueue(asynqClient *asynq.Client) *OrphanQueue {
	return &OrphanQueue{asynqClient: asynqClient}
}

// ReportOrphan enqueues an audit task for the record
func (q *OrphanQueue) ReportOrphan(ctx context.Context, rec *model.OrphanRecord) error {
	task, err := NewOrphanAuditTask(rec)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	_, err = q.asynqClient.EnqueueContext(ctx, task,
		asynq.Queue("audit"),
		asynq.MaxRetry(5),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// NewOrphanAuditTask wraps a record in an asynq task
func NewOrphanAuditTask(rec *model.OrphanRecord) (*asynq.Task, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeOrphanAudit, data), nil
}

// OrphanService keeps the ledger of type records awaiting manual cleanup
type OrphanService struct {
	redis *redis.Client
}

func NewOrphanService(redisClient *redis.Client) *OrphanService {
	return &OrphanService{redis: redisClient}
}

// Record stores an orphan keyed by its type record ID
func (s *OrphanService) Record(ctx context.Context, rec *model.OrphanRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.redis.HSet(ctx, orphanLedgerKey, rec.SKUID, data).Err()
}

// List returns all recorded orphans, oldest first
func (s *OrphanService) List(ctx context.Context) ([]model.OrphanRecord, error) {
	entries, err := s.redis.HGetAll(ctx, orphanLedgerKey).Result()
	if err != nil {
		return nil, err
	}

	records := make([]model.OrphanRecord, 0, len(entries))
	for _, raw := range entries {
		var rec model.OrphanRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].DetectedAt.Before(records[j].DetectedAt)
	})
	return records, nil
}

// Resolve removes an orphan once it has been cleaned up or given a unit
func (s *OrphanService) Resolve(ctx context.Context, skuID string) (bool, error) {
	n, err := s.redis.HDel(ctx, orphanLedgerKey, skuID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
