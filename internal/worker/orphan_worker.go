package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gearshelf/api/internal/model"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// OrphanLedger stores type records that were left without a unit
type OrphanLedger interface {
	Record(ctx context.Context, rec *model.OrphanRecord) error
}

// OrphanWorker processes orphan audit tasks
type OrphanWorker struct {
	ledger OrphanLedger
}

// NewOrphanWorker creates a new orphan audit worker
func NewOrphanWorker(ledger OrphanLedger) *OrphanWorker {
	return &OrphanWorker{ledger: ledger}
}

// ProcessTask records the orphan for manual cleanup. Nothing is deleted or retried on the backend.
func (w *OrphanWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var rec model.OrphanRecord
	if err := json.Unmarshal(t.Payload(), &rec); err != nil {
		return fmt.Errorf("failed to unmarshal orphan payload: %w: %w", err, asynq.SkipRetry)
	}
	if rec.SKUID == "" {
		return fmt.Errorf("orphan payload without sku id: %w", asynq.SkipRetry)
	}

	if err := w.ledger.Record(ctx, &rec); err != nil {
		return fmt.Errorf("failed to record orphan %s: %w", rec.SKUID, err)
	}

	log.Warn().
		Str("sku_id", rec.SKUID).
		Str("name", rec.Name).
		Str("created_by", rec.CreatedBy).
		Str("reason", rec.Reason).
		Msg("Orphaned equipment type recorded")
	return nil
}
