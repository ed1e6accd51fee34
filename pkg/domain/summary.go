package domain

import "time"

// OperationsCollection is the name under which operations are reported
// alongside the admission collections.
const OperationsCollection = "operations"

// SummaryRow is one line of an activity table.
type SummaryRow struct {
	PatientID string `json:"patientId"`
	Name      string `json:"name"`
	// Age is nil when the date of birth is missing or unparseable.
	Age    *int   `json:"age,omitempty"`
	Detail string `json:"detail"`
}

// CollectionSummary lists the rows of one admission collection.
type CollectionSummary struct {
	Collection Collection   `json:"collection"`
	Slug       string       `json:"slug"`
	Title      string       `json:"title"`
	Rows       []SummaryRow `json:"rows"`
}

// Summary is the activity overview of a shift.
type Summary struct {
	Consultant string `json:"consultant"`
	SHO        string `json:"sho"`
	Registrar  string `json:"registrar"`
	// Counts is keyed by collection name plus OperationsCollection.
	Counts map[string]int `json:"counts"`
	// FlaggedHduOrIcu counts A&E admissions whose plan marks an ICU/HDU
	// admission; entries of HduOrIcuAdmissions are not included.
	FlaggedHduOrIcu int                 `json:"flaggedHduOrIcu"`
	Operations      []SummaryRow        `json:"operations"`
	Collections     []CollectionSummary `json:"collections"`
}

// BuildSummary derives the activity overview of r as of now.
func BuildSummary(r SignOutRecord, now time.Time) Summary {
	r.Normalize()
	s := Summary{
		Consultant:  r.Consultant,
		SHO:         r.SHO,
		Registrar:   r.Registrar,
		Counts:      make(map[string]int, len(collectionOrder)+1),
		Operations:  make([]SummaryRow, 0, len(r.Operations)),
		Collections: make([]CollectionSummary, 0, len(collectionOrder)),
	}
	s.Counts[OperationsCollection] = len(r.Operations)
	for _, op := range r.Operations {
		s.Operations = append(s.Operations, summaryRow(op.PatientDetails, op.Procedure, now))
	}
	for _, c := range collectionOrder {
		list := *r.admissions(c)
		s.Counts[string(c)] = len(list)
		cs := CollectionSummary{Collection: c, Slug: c.Slug(), Title: c.Title(), Rows: make([]SummaryRow, 0, len(list))}
		for _, a := range list {
			cs.Rows = append(cs.Rows, summaryRow(a.PatientDetails, a.AdmittingDiagnosis, now))
		}
		s.Collections = append(s.Collections, cs)
	}
	for _, a := range r.AEAdmissions {
		if a.Plan.IsHduOrIcuAdmission {
			s.FlaggedHduOrIcu++
		}
	}
	return s
}

func summaryRow(p PatientDetails, detail string, now time.Time) SummaryRow {
	row := SummaryRow{PatientID: p.ID, Name: p.Name, Detail: detail}
	if age, ok := AgeInYears(p.DateOfBirth, now); ok {
		row.Age = &age
	}
	return row
}
