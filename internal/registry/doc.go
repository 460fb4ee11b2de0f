// Package registry looks up guardianship cases on the public court-records
// portal and turns the detail pages into model.CaseRecord rows.
//
// A lookup is a case-number search (form POST) or a direct party-id detail
// fetch. Search result listings are resolved with a DisambiguationPolicy,
// every page is run through the failure classifier, and detail pages are
// parsed by the field extractor.
package registry
