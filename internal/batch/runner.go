// Package batch runs case lookups over an input table, one row at a time,
// logging pace and persisting results as it goes.
package batch

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/guardianship-cli/internal/model"
	"github.com/sells-group/guardianship-cli/internal/registry"
	"github.com/sells-group/guardianship-cli/internal/resilience"
	"github.com/sells-group/guardianship-cli/internal/store"
)

// Runner looks up every identifier of a batch in order.
type Runner struct {
	looker        registry.Looker
	mode          model.LookupMode
	store         store.Store
	progressEvery int
	now           func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore persists the run, its records and failed lookups.
func WithStore(s store.Store) Option {
	return func(r *Runner) { r.store = s }
}

// WithProgressEvery sets how many rows make up a progress window. Records
// are flushed to the store at the same cadence.
func WithProgressEvery(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.progressEvery = n
		}
	}
}

// WithClock replaces time.Now for pace measurement.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a Runner that looks identifiers up by mode.
func NewRunner(looker registry.Looker, mode model.LookupMode, opts ...Option) *Runner {
	r := &Runner{
		looker:        looker,
		mode:          mode,
		progressEvery: 100,
		now:           time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Result is the outcome of a batch run. Records holds one entry per input
// identifier, in input order; failed rows hold the empty record.
type Result struct {
	RunID    string
	Records  []model.CaseRecord
	Stats    model.RunStats
	Failures []resilience.FailedLookup
	Elapsed  time.Duration
}

// Run processes ids sequentially. Per-row lookup errors are recorded and
// never stop the batch. Cancelling ctx stops after the current row and
// returns the partial result with the context error.
func (r *Runner) Run(ctx context.Context, input string, ids []string) (*Result, error) {
	start := r.now()
	res := &Result{Records: make([]model.CaseRecord, 0, len(ids))}

	if r.store != nil {
		run, err := r.store.CreateRun(ctx, input, r.mode)
		if err != nil {
			return nil, eris.Wrap(err, "batch: create run")
		}
		res.RunID = run.ID
	}

	log := zap.L().With(zap.String("run_id", res.RunID), zap.String("input", input))
	log.Info("batch: starting", zap.Int("rows", len(ids)), zap.String("mode", string(r.mode)))

	// Writes outlive cancellation so a stopped run keeps what it finished.
	persistCtx := context.WithoutCancel(ctx)

	progress := NewProgress(len(ids), r.progressEvery, r.now)
	flushed := 0
	flush := func() error {
		if r.store == nil || flushed == len(res.Records) {
			return nil
		}
		if err := r.store.SaveRecords(persistCtx, res.RunID, flushed+1, res.Records[flushed:]); err != nil {
			return eris.Wrap(err, "batch: save records")
		}
		flushed = len(res.Records)
		return nil
	}

	var runErr error
	for i, raw := range ids {
		if err := ctx.Err(); err != nil {
			runErr = eris.Wrap(err, "batch: cancelled")
			break
		}

		rec, err := r.lookup(ctx, raw)
		if err != nil && ctx.Err() != nil {
			// Interrupted, not failed: the row is left for a rerun.
			runErr = eris.Wrap(ctx.Err(), "batch: cancelled")
			break
		}
		res.Stats.Total++
		switch {
		case err != nil:
			res.Stats.Errored++
			failure := resilience.FailedLookup{
				RunID:      res.RunID,
				Identifier: raw,
				Mode:       string(r.mode),
				Error:      err.Error(),
				ErrorType:  resilience.ClassifyError(err),
				CreatedAt:  r.now().UTC(),
			}
			log.Warn("batch: lookup failed",
				zap.Int("row", i+1),
				zap.String("identifier", raw),
				zap.String("error_type", failure.ErrorType),
				zap.Error(err),
			)
			if r.store != nil {
				if serr := r.store.RecordFailure(persistCtx, &failure); serr != nil {
					log.Error("batch: record failure", zap.Error(serr))
				}
			}
			res.Failures = append(res.Failures, failure)
		case rec.IsEmpty():
			res.Stats.NotFound++
		default:
			res.Stats.Found++
		}
		res.Records = append(res.Records, rec)

		if report, ok := progress.Tick(); ok {
			report.Log(progress.Every())
			if err := flush(); err != nil {
				runErr = err
				break
			}
		}
	}

	if err := flush(); err != nil && runErr == nil {
		runErr = err
	}

	res.Elapsed = r.now().Sub(start)
	status := model.RunStatusComplete
	if runErr != nil {
		status = model.RunStatusFailed
	}
	if r.store != nil {
		if err := r.store.CompleteRun(persistCtx, res.RunID, status, res.Stats); err != nil {
			log.Error("batch: complete run", zap.Error(err))
		}
	}

	log.Info("batch: finished",
		zap.String("status", string(status)),
		zap.Int("total", res.Stats.Total),
		zap.Int("found", res.Stats.Found),
		zap.Int("not_found", res.Stats.NotFound),
		zap.Int("errored", res.Stats.Errored),
		zap.Duration("elapsed", res.Elapsed),
	)

	return res, runErr
}

func (r *Runner) lookup(ctx context.Context, raw string) (model.CaseRecord, error) {
	id, err := registry.NewIdentifier(r.mode, raw)
	if err != nil {
		return model.EmptyRecord(""), err
	}
	zap.L().Debug("batch: lookup", zap.String("mode", string(r.mode)), zap.String("identifier", raw))
	return r.looker.Lookup(ctx, id)
}
