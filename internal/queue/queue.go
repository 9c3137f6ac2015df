package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Omashka/circles-sub001/internal/ai"
	"github.com/Omashka/circles-sub001/internal/metrics"
	"github.com/Omashka/circles-sub001/internal/models"
)

// MaxRetries is the bounded retry ceiling. After this many failed
// replays an item is removed and surfaced as a permanently failed
// operation; unbounded retries of a bad payload would stall the queue
// behind it forever.
const MaxRetries = 10

// ResultSink receives the outcome of replayed operations.
type ResultSink interface {
	// HandleOutcome applies a successful replay result.
	HandleOutcome(ctx context.Context, op models.QueuedOperation, out ai.Outcome) error
	// SaveRawInput persists the raw input unprocessed, so user content
	// survives even when AI processing never succeeds.
	SaveRawInput(ctx context.Context, op models.QueuedOperation, reason string) error
}

// DrainReport summarizes one drain pass.
type DrainReport struct {
	Succeeded int
	Discarded int
	// Blocked is set when the pass stopped at a still-failing head item
	// to preserve ordering.
	Blocked bool
	// Remaining is the pending count after the pass.
	Remaining int
}

// Queue is the durable FIFO of deferred AI work. The in-memory slice is
// authoritative for ordering; the store provides durability. Items that
// fail to persist live only in memory, which is the accepted
// degradation, not a fatal error.
type Queue struct {
	gateway   ai.Gateway
	sink      ResultSink
	logger    *slog.Logger
	collector *metrics.Collector

	mu        sync.Mutex
	items     []models.QueuedOperation
	persisted map[string]bool
	store     Store

	drainMu sync.Mutex
}

// New creates a queue, loading any pending operations from the store.
// store may be nil (memory-only operation).
func New(store Store, gateway ai.Gateway, sink ResultSink, logger *slog.Logger, collector *metrics.Collector) (*Queue, error) {
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		gateway:   gateway,
		sink:      sink,
		logger:    logger,
		collector: collector,
		store:     store,
		persisted: make(map[string]bool),
	}

	if store != nil {
		items, err := store.List()
		if err != nil {
			return nil, err
		}
		q.items = items
		for _, op := range items {
			q.persisted[op.ID] = true
		}
		if len(items) > 0 {
			logger.Info("queue loaded", "pending", len(items))
		}
	}

	return q, nil
}

// Enqueue appends an operation. It never deduplicates (two identical
// transcriptions are two legitimate notes) and succeeds unconditionally:
// when the store rejects the write the item is kept in process memory.
func (q *Queue) Enqueue(kind models.OperationKind, payload models.OperationPayload) models.QueuedOperation {
	op := models.QueuedOperation{
		ID:        uuid.New().String(),
		Kind:      kind,
		Payload:   payload,
		CreatedAt: time.Now(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, op)
	if q.store != nil {
		if err := q.store.Append(op); err != nil {
			q.logger.Warn("queue persistence unavailable, keeping operation in memory",
				"op_id", op.ID, "kind", kind, "error", err)
		} else {
			q.persisted[op.ID] = true
		}
	}

	q.logger.Info("operation queued", "op_id", op.ID, "kind", kind, "pending", len(q.items))
	return op
}

// Pending returns a copy of the pending operations in order.
func (q *Queue) Pending() []models.QueuedOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.QueuedOperation, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the pending count.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// DrainAndRetry replays pending operations strictly in original enqueue
// order. On a retry-eligible failure the item stays at the head with its
// retry count incremented and the pass stops, so a later item never
// completes before an earlier, still-failing one. Non-retryable
// failures and items past the retry ceiling are discarded with their
// raw input saved unprocessed.
//
// Draining is sequential: concurrent calls serialize.
func (q *Queue) DrainAndRetry(ctx context.Context) DrainReport {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	start := time.Now()
	var report DrainReport

	for {
		if err := ctx.Err(); err != nil {
			break
		}

		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			break
		}
		op := q.items[0]
		q.mu.Unlock()

		out, err := q.gateway.Dispatch(ctx, op.Kind, op.Payload)
		if err == nil {
			if sinkErr := q.sink.HandleOutcome(ctx, op, out); sinkErr != nil {
				// The AI result exists but applying it failed; keep the
				// item for another pass rather than lose the work.
				q.logger.Warn("applying replayed result failed", "op_id", op.ID, "error", sinkErr)
				q.bumpRetry(op)
				report.Blocked = true
				break
			}
			q.remove(op.ID)
			report.Succeeded++
			q.logger.Info("queued operation completed", "op_id", op.ID, "kind", op.Kind)
			continue
		}

		aiErr := ai.AsError(err)
		if !aiErr.Retryable() {
			// Credential problems need reconfiguration, not time: save
			// the raw input unprocessed and move on.
			q.discard(ctx, op, string(aiErr.Code))
			report.Discarded++
			continue
		}

		if op.RetryCount+1 >= MaxRetries {
			q.logger.Error("operation permanently failed, discarding",
				"op_id", op.ID, "kind", op.Kind, "retries", op.RetryCount+1)
			q.discard(ctx, op, "retry ceiling reached")
			report.Discarded++
			continue
		}

		q.bumpRetry(op)
		q.logger.Info("queued operation still failing, stopping drain pass",
			"op_id", op.ID, "kind", op.Kind, "code", aiErr.Code, "retries", op.RetryCount+1)
		report.Blocked = true
		break
	}

	report.Remaining = q.Len()
	if q.collector != nil {
		q.collector.RecordTiming(metrics.OpQueueDrain, time.Since(start))
	}
	return report
}

// Close releases the store.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.store == nil {
		return nil
	}
	return q.store.Close()
}

func (q *Queue) bumpRetry(op models.QueuedOperation) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].ID == op.ID {
			q.items[i].RetryCount++
			if q.store != nil && q.persisted[op.ID] {
				if err := q.store.SetRetryCount(op.ID, q.items[i].RetryCount); err != nil {
					q.logger.Warn("persisting retry count failed", "op_id", op.ID, "error", err)
				}
			}
			return
		}
	}
}

func (q *Queue) remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	if q.store != nil && q.persisted[id] {
		if err := q.store.Remove(id); err != nil {
			q.logger.Warn("removing persisted operation failed", "op_id", id, "error", err)
		}
		delete(q.persisted, id)
	}
}

func (q *Queue) discard(ctx context.Context, op models.QueuedOperation, reason string) {
	if err := q.sink.SaveRawInput(ctx, op, reason); err != nil {
		q.logger.Error("saving raw input for discarded operation failed",
			"op_id", op.ID, "error", err)
	}
	q.remove(op.ID)
}
