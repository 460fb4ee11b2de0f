// Package store persists batch runs, their case records and failed lookups.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/guardianship-cli/internal/model"
	"github.com/sells-group/guardianship-cli/internal/resilience"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for batch runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, input string, mode model.LookupMode) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats model.RunStats) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Records are stored with their 1-based input row number and listed in
	// row order.
	SaveRecords(ctx context.Context, runID string, firstRow int, records []model.CaseRecord) error
	ListRecords(ctx context.Context, runID string) ([]model.CaseRecord, error)

	// Failed lookups
	RecordFailure(ctx context.Context, f *resilience.FailedLookup) error
	ListFailures(ctx context.Context, runID string) ([]resilience.FailedLookup, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// recordColumns are the case_records columns holding CaseRecord fields, in
// model.Columns order.
var recordColumns = []string{
	"case_number",
	"court",
	"ward_name",
	"ward_type",
	"birth_year",
	"guardianship_type",
	"guardians",
	"guardianship_scope",
	"issue_date",
	"expiration_date",
}

func recordArgs(runID string, row int, r model.CaseRecord) []any {
	args := []any{runID, row}
	for _, v := range r.Values() {
		args = append(args, v)
	}
	return args
}

func listLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

// Open connects to the store named by driver ("sqlite" or "postgres") and
// runs its migration.
func Open(ctx context.Context, driver, dsn string, pool PoolConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "sqlite", "":
		s, err = NewSQLite(dsn)
	case "postgres":
		s, err = NewPostgres(ctx, dsn, &pool)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
