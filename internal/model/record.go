// Package model defines the case record and batch run types shared across packages.
package model

import "strings"

// Column keys for a CaseRecord, in output order.
const (
	ColCaseNumber        = "case_number"
	ColCourt             = "court"
	ColWardName          = "ward_name"
	ColWardType          = "ward_type"
	ColBirthYear         = "birth_year"
	ColGuardianshipType  = "guardianship_type"
	ColGuardians         = "guardian(s)"
	ColGuardianshipScope = "guardianship_scope"
	ColIssueDate         = "issue_date"
	ColExpirationDate    = "expiration_date"
)

// Columns is the ordered list of CaseRecord keys.
var Columns = []string{
	ColCaseNumber,
	ColCourt,
	ColWardName,
	ColWardType,
	ColBirthYear,
	ColGuardianshipType,
	ColGuardians,
	ColGuardianshipScope,
	ColIssueDate,
	ColExpirationDate,
}

// SegmentSeparator joins the per-row values of the guardian table fields.
const SegmentSeparator = "; "

// CaseRecord is one normalized guardianship case row. Every field is a string;
// an empty string means the value was unknown or absent.
//
// Guardians, GuardianshipScope, IssueDate and ExpirationDate are parallel
// lists joined with SegmentSeparator: segment N of each belongs to the same
// guardian table row.
type CaseRecord struct {
	CaseNumber        string `json:"case_number" csv:"case_number" yaml:"case_number"`
	Court             string `json:"court" csv:"court" yaml:"court"`
	WardName          string `json:"ward_name" csv:"ward_name" yaml:"ward_name"`
	WardType          string `json:"ward_type" csv:"ward_type" yaml:"ward_type"`
	BirthYear         string `json:"birth_year" csv:"birth_year" yaml:"birth_year"`
	GuardianshipType  string `json:"guardianship_type" csv:"guardianship_type" yaml:"guardianship_type"`
	Guardians         string `json:"guardian(s)" csv:"guardian(s)" yaml:"guardian(s)"`
	GuardianshipScope string `json:"guardianship_scope" csv:"guardianship_scope" yaml:"guardianship_scope"`
	IssueDate         string `json:"issue_date" csv:"issue_date" yaml:"issue_date"`
	ExpirationDate    string `json:"expiration_date" csv:"expiration_date" yaml:"expiration_date"`
}

// EmptyRecord returns the empty-record template stamped with caseNumber.
func EmptyRecord(caseNumber string) CaseRecord {
	return CaseRecord{CaseNumber: caseNumber}
}

// IsEmpty reports whether every field other than the case number is blank.
func (r CaseRecord) IsEmpty() bool {
	return r == EmptyRecord(r.CaseNumber)
}

// Values returns the field values in Columns order.
func (r CaseRecord) Values() []string {
	return []string{
		r.CaseNumber,
		r.Court,
		r.WardName,
		r.WardType,
		r.BirthYear,
		r.GuardianshipType,
		r.Guardians,
		r.GuardianshipScope,
		r.IssueDate,
		r.ExpirationDate,
	}
}

// Map returns the record keyed by column name. The map always holds exactly
// the keys in Columns.
func (r CaseRecord) Map() map[string]string {
	vals := r.Values()
	m := make(map[string]string, len(Columns))
	for i, col := range Columns {
		m[col] = vals[i]
	}
	return m
}

// RecordFromValues builds a record from values in Columns order. Missing
// trailing values are left empty; extra values are ignored.
func RecordFromValues(vals []string) CaseRecord {
	get := func(i int) string {
		if i < len(vals) {
			return vals[i]
		}
		return ""
	}
	return CaseRecord{
		CaseNumber:        get(0),
		Court:             get(1),
		WardName:          get(2),
		WardType:          get(3),
		BirthYear:         get(4),
		GuardianshipType:  get(5),
		Guardians:         get(6),
		GuardianshipScope: get(7),
		IssueDate:         get(8),
		ExpirationDate:    get(9),
	}
}

// Segments splits a guardian table field into its per-row values.
// An empty field has zero segments.
func Segments(field string) []string {
	if field == "" {
		return nil
	}
	return strings.Split(field, SegmentSeparator)
}

// GuardianSegments returns the segment count of each guardian table field,
// in column order: guardians, scope, issue date, expiration date.
func (r CaseRecord) GuardianSegments() [4]int {
	return [4]int{
		segmentCount(r.Guardians),
		segmentCount(r.GuardianshipScope),
		segmentCount(r.IssueDate),
		segmentCount(r.ExpirationDate),
	}
}

// segmentCount counts separators, so a blank field counts as one segment. A
// record with no guardian rows and one with a single blank row both report 1.
func segmentCount(field string) int {
	return strings.Count(field, SegmentSeparator) + 1
}
