// Package loader materializes a catalog id range into an in-memory Dataset,
// fetching in sequential batches of concurrent requests and tolerating
// per-record failures.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IvanBrykalov/dexcache/model"
	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize bounds concurrent fetches per batch.
const DefaultBatchSize = 50

// ErrNotReady wraps a failed readiness probe.
var ErrNotReady = errors.New("loader: source not ready")

// Source fetches one record. Implementations must be safe for concurrent use.
type Source interface {
	Record(ctx context.Context, id int) (model.Record, error)
}

// Prober is optionally implemented by a Source that can tell whether the
// backend is reachable. LoadAll probes it before the first batch.
type Prober interface {
	Ready(ctx context.Context) error
}

// Options configures a Loader. Zero values: BatchSize => DefaultBatchSize,
// no pause between batches, no-op logger.
type Options struct {
	BatchSize  int
	BatchPause time.Duration
	Logger     *zap.Logger
}

// Progress is reported after each completed batch.
type Progress struct {
	Batch     int // 1-based
	Batches   int
	Loaded    int // records accumulated so far
	Requested int
	Fraction  float64 // processed ids / requested, 1 after the last batch
}

// Loader runs load passes against a Source.
type Loader struct {
	src Source
	opt Options
	log *zap.Logger
}

// New returns a Loader reading from src.
func New(src Source, opt Options) *Loader {
	if opt.BatchSize <= 0 {
		opt.BatchSize = DefaultBatchSize
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	return &Loader{src: src, opt: opt, log: opt.Logger}
}

// LoadAll fetches every id in r. Batches run strictly in order; within a
// batch every fetch runs concurrently and the batch waits for all of them.
// A failed id is logged and left out of the Dataset; it is not retried.
//
// batchSize <= 0 uses Options.BatchSize. progress may be nil.
//
// An error is returned only when the pass cannot start: an invalid range,
// a context already done, or a failed readiness probe. If ctx is cancelled
// between batches, the records loaded so far are returned along with
// ctx.Err(); unprocessed ids are reported as missing.
func (l *Loader) LoadAll(ctx context.Context, r model.IDRange, batchSize int, progress func(Progress)) (*Dataset, *Report, error) {
	if err := r.Validate(); err != nil {
		return nil, nil, fmt.Errorf("loader: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if p, ok := l.src.(Prober); ok {
		if err := p.Ready(ctx); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrNotReady, err)
		}
	}
	if batchSize <= 0 {
		batchSize = l.opt.BatchSize
	}

	start := time.Now()
	ids := r.IDs()
	batches := (len(ids) + batchSize - 1) / batchSize

	var (
		mu      sync.Mutex
		records = make([]model.Record, 0, len(ids))
		loaded  = roaring.New()
	)

	var stopErr error
	for b := 0; b < batches; b++ {
		if b > 0 {
			if err := pause(ctx, l.opt.BatchPause); err != nil {
				stopErr = err
				break
			}
		}
		lo := b * batchSize
		hi := min(lo+batchSize, len(ids))

		var g errgroup.Group
		for _, id := range ids[lo:hi] {
			id := id
			g.Go(func() error {
				rec, err := l.src.Record(ctx, id)
				if err != nil {
					l.log.Warn("record unavailable, skipping", zap.Int("id", id), zap.Error(err))
					return nil
				}
				if rec.ID != id {
					l.log.Warn("record id mismatch, skipping", zap.Int("id", id), zap.Int("got", rec.ID))
					return nil
				}
				mu.Lock()
				records = append(records, rec)
				loaded.Add(uint32(id))
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		n := len(records)
		l.log.Debug("batch complete",
			zap.Int("batch", b+1),
			zap.Int("batches", batches),
			zap.Int("loaded", n))
		if progress != nil {
			progress(Progress{
				Batch:     b + 1,
				Batches:   batches,
				Loaded:    n,
				Requested: len(ids),
				Fraction:  float64(hi) / float64(len(ids)),
			})
		}
	}

	ds := newDataset(records, loaded)
	rep := &Report{
		Requested: len(ids),
		Loaded:    ds.Len(),
		Missing:   ds.Missing(r),
		Duration:  time.Since(start),
	}
	l.log.Info("load finished",
		zap.Int("requested", rep.Requested),
		zap.Int("loaded", rep.Loaded),
		zap.Int("missing", len(rep.Missing)),
		zap.Duration("took", rep.Duration))
	return ds, rep, stopErr
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
