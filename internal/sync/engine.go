package sync

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/arden/fieldsync/internal/db"
	"github.com/arden/fieldsync/internal/models"
)

const (
	backoffBase       = 5 * time.Second
	backoffMultiplier = 3

	// ExhaustedEntryTTL bounds how long exhausted queue entries are kept
	// around for operator inspection before garbage collection.
	ExhaustedEntryTTL = 24 * time.Hour
)

// Engine drains the sync queue. One engine per store; construct it
// explicitly and share the instance, it carries the reentrancy guard.
type Engine struct {
	store    *db.DB
	handlers Handlers
	logger   *slog.Logger

	// sleep is swapped out in tests to make backoff instantaneous.
	sleep func(time.Duration)

	draining atomic.Bool
}

// NewEngine creates a sync engine over a store and a handler set.
func NewEngine(store *db.DB, handlers Handlers, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		handlers: handlers,
		logger:   logger,
		sleep:    time.Sleep,
	}
}

// DrainResult summarizes one pass over the queue.
type DrainResult struct {
	Synced    int
	Retried   int
	Failed    int
	Conflicts int
}

// Processed reports how many entries the drain touched.
func (r DrainResult) Processed() int {
	return r.Synced + r.Retried + r.Failed + r.Conflicts
}

// ProcessQueue drains all eligible queue entries in strict creation order.
// Safe to invoke concurrently: overlapping calls collapse into a no-op that
// reports zero processed. A retryable failure moves the entry back to
// pending with its counter bumped and delays the next entry by an
// exponential backoff; the entry itself is not re-attempted until the next
// drain.
func (e *Engine) ProcessQueue() (DrainResult, error) {
	var result DrainResult

	if !e.draining.CompareAndSwap(false, true) {
		e.logger.Debug("drain already in progress, skipping")
		return result, nil
	}
	defer e.draining.Store(false)

	entries, err := e.store.PendingQueueEntries()
	if err != nil {
		return result, fmt.Errorf("load pending entries: %w", err)
	}

	for i, entry := range entries {
		last := i == len(entries)-1
		e.processEntry(entry, last, &result)
	}

	if result.Synced > 0 {
		if err := e.store.SetLastSyncAt(time.Now().UTC()); err != nil {
			e.logger.Warn("record last sync time", "error", err)
		}
	}

	e.logger.Info("drain complete",
		"synced", result.Synced, "retried", result.Retried,
		"failed", result.Failed, "conflicts", result.Conflicts)
	return result, nil
}

func (e *Engine) processEntry(entry models.QueueEntry, last bool, result *DrainResult) {
	log := e.logger.With("entry", entry.ID, "entity", string(entry.EntityType), "action", string(entry.Action))

	handler, err := e.handlers.For(entry.EntityType)
	if err != nil {
		e.recordFailure(entry, err.Error(), true)
		result.Failed++
		log.Error("no handler registered", "error", err)
		return
	}

	e.setStatus(entry, models.SyncSyncing)

	pushErr := Classify(handler.Push(entry))
	switch err := pushErr.(type) {
	case nil:
		if derr := e.store.DeleteQueueEntry(entry.ID); derr != nil {
			log.Warn("remove synced entry", "error", derr)
		}
		e.setStatus(entry, models.SyncSynced)
		result.Synced++
		log.Debug("entry synced")

	case *ConflictError:
		if ferr := e.store.FreezeConflict(entry.ID, err.Error()); ferr != nil {
			log.Warn("freeze conflict", "error", ferr)
		}
		e.setStatus(entry, models.SyncConflict)
		result.Conflicts++
		log.Warn("entry conflicted", "error", err)

	case *PermanentError:
		e.recordFailure(entry, err.Message, true)
		result.Failed++
		log.Warn("entry failed permanently", "error", err)

	default:
		// Retryable: bump the counter, put the entity back to pending (or
		// failed once the budget is spent), and delay the next entry.
		e.recordRetryable(entry, pushErr.Error(), result)
		if !last {
			e.sleep(backoffDelay(entry.RetryCount))
		}
	}
}

func (e *Engine) recordRetryable(entry models.QueueEntry, msg string, result *DrainResult) {
	if err := e.store.RecordQueueFailure(entry.ID, msg, false); err != nil {
		e.logger.Warn("record queue failure", "entry", entry.ID, "error", err)
	}
	if entry.RetryCount+1 >= entry.MaxRetries {
		e.setStatus(entry, models.SyncFailed)
		result.Failed++
		e.logger.Warn("retry budget exhausted", "entry", entry.ID, "error", msg)
	} else {
		e.setStatus(entry, models.SyncPending)
		result.Retried++
		e.logger.Debug("entry will retry", "entry", entry.ID, "retries", entry.RetryCount+1, "error", msg)
	}
}

func (e *Engine) recordFailure(entry models.QueueEntry, msg string, exhaust bool) {
	if err := e.store.RecordQueueFailure(entry.ID, msg, exhaust); err != nil {
		e.logger.Warn("record queue failure", "entry", entry.ID, "error", err)
	}
	e.setStatus(entry, models.SyncFailed)
}

func (e *Engine) setStatus(entry models.QueueEntry, status models.SyncStatus) {
	if err := e.store.SetEntitySyncStatus(entry.EntityType, entry.EntityID, status); err != nil {
		e.logger.Warn("set entity status", "entry", entry.ID, "status", string(status), "error", err)
	}
}

func backoffDelay(retryCount int) time.Duration {
	d := backoffBase
	for i := 0; i < retryCount; i++ {
		d *= backoffMultiplier
	}
	return d
}

// RetryFailed restores every exhausted non-conflict entry to a fresh retry
// budget. This is the only path by which a failed entry re-enters the
// pipeline; conflicts stay parked until resolved explicitly.
func (e *Engine) RetryFailed() (int, error) {
	n, err := e.store.ResetFailedEntries()
	if err != nil {
		return 0, fmt.Errorf("retry failed entries: %w", err)
	}
	if n > 0 {
		e.logger.Info("failed entries reset", "count", n)
	}
	return n, nil
}

// ClearCompleted garbage-collects exhausted queue entries past their
// inspection TTL. The entity-level conflict and failure markers survive.
func (e *Engine) ClearCompleted() (int, error) {
	cutoff := time.Now().UTC().Add(-ExhaustedEntryTTL)
	n, err := e.store.DeleteExhaustedBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("clear completed entries: %w", err)
	}
	if n > 0 {
		e.logger.Info("exhausted entries collected", "count", n)
	}
	return n, nil
}

// Status is a synchronous snapshot of the queue for status surfaces.
type Status struct {
	Pending    int
	Failed     int
	Conflicts  int
	LastSyncAt *time.Time
	LastError  string
}

// GetStatus assembles the current queue snapshot.
func (e *Engine) GetStatus() (*Status, error) {
	pending, failed, err := e.store.QueueCounts()
	if err != nil {
		return nil, fmt.Errorf("queue counts: %w", err)
	}
	conflicts, err := e.store.CountConflicts()
	if err != nil {
		return nil, fmt.Errorf("count conflicts: %w", err)
	}
	lastSync, err := e.store.GetLastSyncAt()
	if err != nil {
		return nil, fmt.Errorf("last sync time: %w", err)
	}
	lastErr, err := e.store.LastQueueError()
	if err != nil {
		return nil, fmt.Errorf("last queue error: %w", err)
	}
	return &Status{
		Pending:    pending,
		Failed:     failed,
		Conflicts:  conflicts,
		LastSyncAt: lastSync,
		LastError:  lastErr,
	}, nil
}
