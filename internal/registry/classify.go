package registry

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/guardianship-cli/internal/model"
)

// FailureKind names a failure signal on a portal page.
type FailureKind string

const (
	FailureStatus     FailureKind = "status"
	FailureNoResults  FailureKind = "no_results"
	FailureValidation FailureKind = "validation"
)

const (
	noResultsSelector  = "#no-results"
	validationSelector = "div.validation-summary-errors.box-error"
)

// Failure is one detected failure signal.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Diagnose returns every failure signal present on the page. All signals are
// checked; a nil result means the page is usable.
func Diagnose(page *Page) []Failure {
	if page == nil {
		return []Failure{{Kind: FailureStatus, Message: "no response"}}
	}

	var failures []Failure
	if page.StatusCode != http.StatusOK {
		failures = append(failures, Failure{
			Kind:    FailureStatus,
			Message: fmt.Sprintf("%d status code", page.StatusCode),
		})
	}

	if page.Doc == nil {
		return failures
	}

	if page.Doc.Find(noResultsSelector).Length() > 0 {
		failures = append(failures, Failure{Kind: FailureNoResults, Message: "no results"})
	}

	if banner := page.Doc.Find(validationSelector).First(); banner.Length() > 0 {
		failures = append(failures, Failure{Kind: FailureValidation, Message: collapse(banner.Text())})
	}

	return failures
}

// Classify reports whether the page is a failure page and returns the
// empty record for caseNumber to use in its place. Each detected cause is
// logged at info level.
func Classify(page *Page, caseNumber string) (bool, model.CaseRecord) {
	fallback := model.EmptyRecord(caseNumber)

	failures := Diagnose(page)
	for _, f := range failures {
		zap.L().Info("registry: lookup failed",
			zap.String("case_number", caseNumber),
			zap.String("kind", string(f.Kind)),
			zap.String("message", f.Message),
		)
	}

	return len(failures) > 0, fallback
}
