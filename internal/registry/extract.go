package registry

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/guardianship-cli/internal/model"
)

// ErrMissingDetail is returned when a page has no case detail container.
var ErrMissingDetail = eris.New("registry: detail container not found")

const (
	detailSelector = "#form-con"

	courtPrefix      = "In the"
	caseNumberLabel  = "Case No."
	birthYearLabel   = "Year of Birth"
	guardianTypeText = "Guardianship Type"
)

var caseNumberPattern = regexp.MustCompile(`Case No\.\s*([\w-]+)`)

// Extraction is the result of parsing a detail page.
type Extraction struct {
	Record model.CaseRecord
	// Missing lists the columns whose source element was not on the page.
	Missing []string
}

// Extract parses a case detail document into a record. A non-empty
// suppliedCaseNumber takes precedence over the case number on the page.
func Extract(doc *goquery.Document, suppliedCaseNumber string) (model.CaseRecord, error) {
	ext, err := ExtractDetailed(doc, suppliedCaseNumber)
	if err != nil {
		return model.EmptyRecord(suppliedCaseNumber), err
	}
	return ext.Record, nil
}

// ExtractDetailed is Extract that also reports which optional fields were
// absent. Absent fields are left empty; only a missing detail container is
// an error.
func ExtractDetailed(doc *goquery.Document, suppliedCaseNumber string) (Extraction, error) {
	if doc == nil {
		return Extraction{Record: model.EmptyRecord(suppliedCaseNumber)}, eris.Wrap(ErrMissingDetail, "registry: nil document")
	}
	container := doc.Find(detailSelector).First()
	if container.Length() == 0 {
		return Extraction{Record: model.EmptyRecord(suppliedCaseNumber)}, eris.Wrap(ErrMissingDetail, "registry: extract")
	}

	var (
		rec     model.CaseRecord
		missing []string
		ok      bool
	)
	note := func(col string, found bool) {
		if !found {
			missing = append(missing, col)
		}
	}

	rec.CaseNumber = suppliedCaseNumber
	if rec.CaseNumber == "" {
		rec.CaseNumber, ok = scrapeCaseNumber(container)
		note(model.ColCaseNumber, ok)
	}

	rec.Court, ok = court(doc)
	note(model.ColCourt, ok)

	rec.WardName, ok = wardName(doc)
	note(model.ColWardName, ok)

	rec.WardType, ok = wardType(container)
	note(model.ColWardType, ok)

	rec.BirthYear, ok = birthYear(doc)
	note(model.ColBirthYear, ok)

	rec.GuardianshipType, ok = guardianshipType(doc)
	note(model.ColGuardianshipType, ok)

	g := guardianTable(doc)
	rec.Guardians = strings.Join(g[0], model.SegmentSeparator)
	rec.GuardianshipScope = strings.Join(g[1], model.SegmentSeparator)
	rec.IssueDate = strings.Join(g[2], model.SegmentSeparator)
	rec.ExpirationDate = strings.Join(g[3], model.SegmentSeparator)

	return Extraction{Record: rec, Missing: missing}, nil
}

func scrapeCaseNumber(container *goquery.Selection) (string, bool) {
	m := caseNumberPattern.FindStringSubmatch(container.Text())
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// court takes the text of the first h6 heading between "In the" and
// "Case No.".
func court(doc *goquery.Document) (string, bool) {
	h6 := doc.Find("h6").First()
	if h6.Length() == 0 {
		return "", false
	}
	text := collapse(h6.Text())
	i := strings.Index(text, courtPrefix)
	if i < 0 {
		return "", false
	}
	text = text[i+len(courtPrefix):]
	if j := strings.Index(text, caseNumberLabel); j >= 0 {
		text = text[:j]
	}
	return strings.TrimSpace(text), true
}

func wardName(doc *goquery.Document) (string, bool) {
	h2 := doc.Find("h2.name").First()
	if h2.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(h2.Text()), true
}

func wardType(container *goquery.Selection) (string, bool) {
	p := container.Find("p").First()
	if p.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(p.Text()), true
}

// birthYear returns the last four characters of the "Year of Birth"
// paragraph.
func birthYear(doc *goquery.Document) (string, bool) {
	p, ok := paragraphContaining(doc, birthYearLabel)
	if !ok {
		return "", false
	}
	runes := []rune(strings.TrimSpace(p.Text()))
	if len(runes) > 4 {
		runes = runes[len(runes)-4:]
	}
	return string(runes), true
}

// guardianshipType returns the text after the first colon of the
// "Guardianship Type" paragraph.
func guardianshipType(doc *goquery.Document) (string, bool) {
	p, ok := paragraphContaining(doc, guardianTypeText)
	if !ok {
		return "", false
	}
	_, after, found := strings.Cut(collapse(p.Text()), ":")
	if !found {
		return "", false
	}
	return strings.TrimSpace(after), true
}

func paragraphContaining(doc *goquery.Document, needle string) (*goquery.Selection, bool) {
	p := doc.Find("p").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Text(), needle)
	}).First()
	return p, p.Length() > 0
}

// guardianTable collects the four cell columns of every table row that has
// data cells, in document order. Missing cells contribute an empty value so
// the four columns stay the same length. A separator inside a cell is
// rewritten to a comma so each row stays one segment.
func guardianTable(doc *goquery.Document) [4][]string {
	var cols [4][]string
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}
		for i := range cols {
			val := ""
			if i < cells.Length() {
				val = strings.TrimSpace(cells.Eq(i).Text())
				val = strings.ReplaceAll(val, model.SegmentSeparator, ", ")
			}
			cols[i] = append(cols[i], val)
		}
	})
	return cols
}
