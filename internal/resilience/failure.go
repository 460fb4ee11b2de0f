package resilience

import "time"

// Error classes recorded for failed lookups.
const (
	ErrorTypeTransient = "transient"
	ErrorTypePermanent = "permanent"
)

// FailedLookup records a lookup that ended in an error rather than a
// classified soft failure, so a batch can be audited or re-run later.
type FailedLookup struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	Identifier string    `json:"identifier"`
	Mode       string    `json:"mode"`
	Error      string    `json:"error"`
	ErrorType  string    `json:"error_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// Retryable reports whether the failure was transient.
func (f *FailedLookup) Retryable() bool {
	return f.ErrorType == ErrorTypeTransient
}

// ClassifyError returns ErrorTypeTransient or ErrorTypePermanent for err.
func ClassifyError(err error) string {
	if IsTransient(err) {
		return ErrorTypeTransient
	}
	return ErrorTypePermanent
}
