// Package syncer orchestrates one incremental run: read cursor, fetch,
// transform, deliver, advance cursor. Runs are strictly sequential; nothing
// here is safe for overlapping invocations and the cursor store has no
// locking, so schedules must not overlap.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seclytics/sirsync/internal/cursor"
	"github.com/seclytics/sirsync/internal/pipeline"
	"github.com/seclytics/sirsync/internal/portal"
)

// Source is the record-management client boundary. The returned slice is the
// authoritative "new since cursor" set.
type Source interface {
	FetchRecordsSince(ctx context.Context, sinceID int64) ([]pipeline.RawRecord, error)
}

// Deliverer is the portal client boundary.
type Deliverer interface {
	SendMany(ctx context.Context, records []pipeline.TransformedRecord) (map[string]portal.Result, portal.Summary)
}

type Option func(*Syncer)

func WithID(id string) Option {
	return func(s *Syncer) {
		s.ID = id
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Syncer) {
		s.logger = logger
	}
}

func WithSource(source Source) Option {
	return func(s *Syncer) {
		s.source = source
	}
}

func WithPipeline(p *pipeline.Pipeline) Option {
	return func(s *Syncer) {
		s.pipeline = p
	}
}

func WithDeliverer(d Deliverer) Option {
	return func(s *Syncer) {
		s.deliverer = d
	}
}

func WithCursorStore(store cursor.Store) Option {
	return func(s *Syncer) {
		s.store = store
	}
}

func WithCursorKey(key string) Option {
	return func(s *Syncer) {
		s.cursorKey = key
	}
}

type Syncer struct {
	ID    string
	State *FSM

	source    Source
	pipeline  *pipeline.Pipeline
	deliverer Deliverer
	store     cursor.Store
	cursorKey string

	logger *zap.Logger

	statsMu sync.RWMutex
	stats   Stats
}

func New(opts ...Option) (*Syncer, error) {
	s := &Syncer{
		cursorKey: cursor.DefaultKey,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.source == nil {
		return nil, fmt.Errorf("syncer: source is required")
	}
	if s.pipeline == nil {
		return nil, fmt.Errorf("syncer: pipeline is required")
	}
	if s.deliverer == nil {
		return nil, fmt.Errorf("syncer: deliverer is required")
	}
	if s.store == nil {
		return nil, fmt.Errorf("syncer: cursor store is required")
	}
	if s.ID == "" {
		s.ID = cursor.DefaultKey
	}

	s.State = NewFSM(
		FSMWithLogger(s.logger.Named("fsm")),
	)

	s.logger.Info("Syncer created", zap.String("state", string(s.State.Current())))
	return s, nil
}

// Run executes one full sync. Configuration, certificate and transformation
// problems abort the run with the cursor untouched; authentication and
// per-record delivery failures are folded into the summary and the cursor
// still advances. The persisted cursor id is max(previous, max incident id
// among transformed records) so it never decreases, even when the record at
// the batch maximum failed to deliver.
func (s *Syncer) Run(ctx context.Context) (Summary, error) {
	summary := Summary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	l := s.logger.With(zap.String("run_id", summary.RunID))

	if err := s.State.Transition(StateFetching); err != nil {
		return summary, err
	}

	prev, err := s.loadCursor(ctx)
	if err != nil {
		return s.fail(summary, err)
	}
	l.Info("cursor loaded",
		zap.Int64("last_incident_id", prev.LastIncidentID),
		zap.Time("last_run_at", prev.LastRunAt),
	)

	records, err := s.source.FetchRecordsSince(ctx, prev.LastIncidentID)
	if err != nil {
		return s.fail(summary, fmt.Errorf("fetching records: %w", err))
	}
	summary.Fetched = len(records)

	if err := s.State.Transition(StateTransforming); err != nil {
		return summary, err
	}

	transformed, err := s.pipeline.Transform(records, prev.LastIncidentID)
	if err != nil {
		return s.fail(summary, err)
	}
	summary.Processed = len(transformed)

	if len(transformed) > 0 {
		if err := s.State.Transition(StateDelivering); err != nil {
			return summary, err
		}

		results, delivery := s.deliverer.SendMany(ctx, transformed)
		summary.Sent = delivery.Sent
		summary.Success = delivery.Success
		summary.Failed = delivery.Failed

		for id, result := range results {
			if !result.Delivered() {
				l.Warn("record not delivered",
					zap.String("tenant_item_id", id),
					zap.Int("status", result.StatusCode),
					zap.String("outcome", string(result.Outcome())),
				)
			}
		}
	} else {
		l.Info("nothing to deliver")
	}

	if err := s.State.Transition(StateAdvancing); err != nil {
		return summary, err
	}

	next := cursor.Cursor{
		LastIncidentID: prev.LastIncidentID,
		LastRunAt:      time.Now().UTC(),
	}
	if maxID := pipeline.MaxIncidentID(transformed); maxID > next.LastIncidentID {
		next.LastIncidentID = maxID
	}

	if err := s.store.Put(ctx, s.cursorKey, next.String()); err != nil {
		return s.fail(summary, fmt.Errorf("persisting cursor: %w", err))
	}
	summary.Cursor = next
	summary.CursorValue = next.String()

	if err := s.State.Transition(StateCompleted); err != nil {
		return summary, err
	}
	summary.EndedAt = time.Now().UTC()

	l.Info("run completed",
		zap.Int("fetched", summary.Fetched),
		zap.Int("processed", summary.Processed),
		zap.Int("sent", summary.Sent),
		zap.Int("success", summary.Success),
		zap.Int("failed", summary.Failed),
		zap.Int64("cursor", next.LastIncidentID),
	)

	s.recordRun(summary, nil)
	return summary, nil
}

func (s *Syncer) loadCursor(ctx context.Context) (cursor.Cursor, error) {
	value, found, err := s.store.Get(ctx, s.cursorKey)
	if err != nil {
		return cursor.Cursor{}, fmt.Errorf("loading cursor: %w", err)
	}
	if !found {
		// fresh start
		return cursor.Cursor{}, nil
	}
	c, err := cursor.Parse(value)
	if err != nil {
		return cursor.Cursor{}, fmt.Errorf("loading cursor: %w", err)
	}
	return c, nil
}

func (s *Syncer) fail(summary Summary, err error) (Summary, error) {
	s.State.Transition(StateFailed)
	summary.EndedAt = time.Now().UTC()
	s.recordRun(summary, err)
	return summary, err
}

func (s *Syncer) recordRun(summary Summary, err error) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	s.stats.Runs++
	s.stats.TotalSent += int64(summary.Sent)
	s.stats.TotalSuccess += int64(summary.Success)
	s.stats.TotalFailed += int64(summary.Failed)
	s.stats.LastRunAt = summary.StartedAt
	s.stats.LastSummary = &summary
	if err != nil {
		s.stats.FailedRuns++
		s.stats.LastError = err.Error()
	} else {
		s.stats.LastError = ""
	}
}

// Stats returns cumulative run counters for the status server.
func (s *Syncer) Stats() Stats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.stats
}
