package registry

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/guardianship-cli/internal/model"
)

// ErrEmptyIdentifier is returned when a lookup is given a blank identifier.
var ErrEmptyIdentifier = eris.New("registry: empty identifier")

// Identifier selects what a lookup searches by. It is either a CaseNumber or
// a PartyID.
type Identifier interface {
	Value() string
	Mode() model.LookupMode
	identifier()
}

// CaseNumber looks a case up through the portal's case-number search.
type CaseNumber string

// Value returns the trimmed case number.
func (c CaseNumber) Value() string { return strings.TrimSpace(string(c)) }

// Mode returns model.LookupByCaseNumber.
func (CaseNumber) Mode() model.LookupMode { return model.LookupByCaseNumber }

func (CaseNumber) identifier() {}

// PartyID fetches a registry party's detail page directly.
type PartyID string

// Value returns the trimmed party id.
func (p PartyID) Value() string { return strings.TrimSpace(string(p)) }

// Mode returns model.LookupByPartyID.
func (PartyID) Mode() model.LookupMode { return model.LookupByPartyID }

func (PartyID) identifier() {}

// NewIdentifier builds the Identifier for mode.
func NewIdentifier(mode model.LookupMode, value string) (Identifier, error) {
	switch mode {
	case model.LookupByCaseNumber:
		return CaseNumber(value), nil
	case model.LookupByPartyID:
		return PartyID(value), nil
	default:
		return nil, eris.Errorf("registry: unknown lookup mode %q", mode)
	}
}

// suppliedCaseNumber is the case number the caller gave, if any.
func suppliedCaseNumber(id Identifier) string {
	if cn, ok := id.(CaseNumber); ok {
		return cn.Value()
	}
	return ""
}
