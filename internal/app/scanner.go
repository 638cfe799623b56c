package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/miku1hhhh/sina-dl/internal/domain"
)

// BatchScanner walks an identifier range in ascending batches, probing every
// identifier of a batch in parallel
type BatchScanner struct {
	probe    domain.IdentifierProbe
	resolver domain.FormatResolver
	config   *domain.ScanConfig
	logger   *zap.Logger
}

// NewBatchScanner creates a new batch scanner
func NewBatchScanner(
	probe domain.IdentifierProbe,
	resolver domain.FormatResolver,
	config *domain.ScanConfig,
	logger *zap.Logger,
) *BatchScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchScanner{
		probe:    probe,
		resolver: resolver,
		config:   config,
		logger:   logger,
	}
}

// Scan runs a full scan on an idle session and returns the validated items.
// A busy session is left untouched and domain.ErrSessionConflict is returned.
func (s *BatchScanner) Scan(ctx context.Context, session *domain.ScanSession, req domain.ScanRequest, sink domain.ProgressSink) ([]*domain.ValidatedItem, error) {
	if err := req.Range.Validate(); err != nil {
		return nil, err
	}
	if err := session.BeginScan(req.Range); err != nil {
		return nil, err
	}
	defer session.Finish()

	return s.run(ctx, session, req, sink)
}

// run does the scanning work; the caller owns the session state transition
func (s *BatchScanner) run(ctx context.Context, session *domain.ScanSession, req domain.ScanRequest, sink domain.ProgressSink) ([]*domain.ValidatedItem, error) {
	if sink == nil {
		sink = domain.NopSink{}
	}

	size := s.batchSize(req.Concurrency)
	total := req.Range.Len()

	s.logger.Info("Scan started",
		zap.String("session_id", session.ID),
		zap.Int64("start", req.Range.Start),
		zap.Int64("end", req.Range.End),
		zap.Int("batch_size", size))
	sink.OnLog(session.ID, domain.LogInfo,
		fmt.Sprintf("Scanning %d-%d with batch size %d", req.Range.Start, req.Range.End, size))

	var processed int64
	for from := req.Range.Start; ; {
		if session.StopRequested() {
			sink.OnLog(session.ID, domain.LogWarning, "Scan stopped")
			break
		}
		if err := ctx.Err(); err != nil {
			return session.Validated(), err
		}

		batch, more := req.Range.NextBatch(from, size)
		found, err := s.probeBatch(ctx, batch)
		if err != nil {
			return session.Validated(), err
		}
		for _, item := range found {
			if session.AddValidated(item) {
				sink.OnItemFound(session.ID, item)
				sink.OnLog(session.ID, domain.LogSuccess,
					fmt.Sprintf("Found vid %d (%s)", item.Identifier, item.Format))
			}
		}

		processed += batch.Len()
		valid := session.ValidCount()
		sink.OnProgress(domain.Progress{
			SessionID: session.ID,
			Phase:     domain.PhaseScan,
			Current:   processed,
			Total:     total,
			Valid:     valid,
			Message:   fmt.Sprintf("Scanning... %d valid so far", valid),
		})

		if !more {
			break
		}
		from = batch.End + 1

		if s.config.BatchDelay > 0 {
			select {
			case <-time.After(s.config.BatchDelay):
			case <-ctx.Done():
				return session.Validated(), ctx.Err()
			}
		}
	}

	items := session.Validated()
	s.logger.Info("Scan finished",
		zap.String("session_id", session.ID),
		zap.Int64("processed", processed),
		zap.Int("valid", len(items)),
		zap.Bool("stopped", session.StopRequested()))
	sink.OnLog(session.ID, domain.LogSuccess, fmt.Sprintf("Scan complete: %d valid", len(items)))
	return items, nil
}

// probeBatch probes every identifier of batch concurrently and returns the
// valid ones in ascending order. It fails only when ctx is cancelled, and then
// the partial batch is discarded.
func (s *BatchScanner) probeBatch(ctx context.Context, batch domain.Range) ([]*domain.ValidatedItem, error) {
	slots := make([]*domain.ValidatedItem, batch.Len())

	var g errgroup.Group
	for i := range slots {
		i := i
		id := batch.Start + int64(i)
		g.Go(func() error {
			res := s.probe.Probe(ctx, id)
			if err := ctx.Err(); err != nil {
				return err
			}
			if !res.Valid {
				return nil
			}
			slots[i] = domain.NewValidatedItem(id, res.Title, s.resolver.Resolve(ctx, id))
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	found := make([]*domain.ValidatedItem, 0, len(slots))
	for _, item := range slots {
		if item != nil {
			found = append(found, item)
		}
	}
	return found, nil
}

func (s *BatchScanner) batchSize(requested int) int {
	limit := s.config.MaxConcurrency
	if limit < 1 || limit > 10 {
		limit = 10
	}
	size := domain.BatchSize(requested, limit)
	if size != requested {
		s.logger.Warn("Concurrency adjusted",
			zap.Int("requested", requested),
			zap.Int("batch_size", size))
	}
	return size
}
