// Package domain defines the sign-out record aggregate, its named collections,
// and the persistence contract implemented by the key/value backends.
package domain

import "slices"

// DefaultRecordKey is the storage key under which the sign-out record is kept
// when no explicit key is configured.
const DefaultRecordKey = "signOutRecord"

// PatientDetails identifies the patient an entry is about. ID is the patient
// identifier and acts as the natural key of an entry within one collection; it
// is not a globally unique event identifier.
type PatientDetails struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	Location    string `json:"location"`
	DateOfBirth string `json:"dateOfBirth"`
}

// PatientID returns the natural key used for upserts.
func (p PatientDetails) PatientID() string { return p.ID }

// Labs holds laboratory results. WCC and CRP are always recorded; the
// remaining values are optional and only meaningful when the matching tag is
// present in AEAdmission.LabsPerformed.
type Labs struct {
	WCC        float64  `json:"wcc"`
	CRP        float64  `json:"crp"`
	Amylase    *float64 `json:"amylase,omitempty"`
	INR        *float64 `json:"INR,omitempty"`
	Hb         *float64 `json:"hb,omitempty"`
	Na         *float64 `json:"Na,omitempty"`
	K          *float64 `json:"K,omitempty"`
	Lactate    *float64 `json:"lactate,omitempty"`
	Creatinine *float64 `json:"creatinine,omitempty"`
	Urea       *float64 `json:"urea,omitempty"`
	Bilirubin  *float64 `json:"bilirubin,omitempty"`
	ALT        *float64 `json:"ALT,omitempty"`
	ALP        *float64 `json:"ALP,omitempty"`
	GGT        *float64 `json:"GGT,omitempty"`
	HCG        *bool    `json:"HCG,omitempty"`
}

// Plan captures the management plan agreed for an admission-like entry.
type Plan struct {
	Antibiotics                   []string `json:"antibiotics"`
	Fasting                       bool     `json:"fasting"`
	IsIRPlanned                   bool     `json:"isIRPlanned"`
	IsSurgicalInterventionPlanned bool     `json:"isSurgicalInterventionPlanned"`
	Comments                      string   `json:"comments"`
	IsHduOrIcuAdmission           bool     `json:"isHduOrIcuAdmission"`
}

// AEAdmission is the shape shared by every admission-like collection
// (admissions, discharges, consults, referrals, floor issues).
type AEAdmission struct {
	PatientDetails
	AdmittingDiagnosis          string    `json:"admittingDiagnosis"`
	Background                  []string  `json:"background"`
	HasAnticoagulant            bool      `json:"hasAnticoagulant"`
	AnticoagulantUsed           string    `json:"anticoagulantUsed,omitempty"`
	HasAntiplatelet             bool      `json:"hasAntiplatelet"`
	AntiplateletUsed            string    `json:"antiplateletUsed,omitempty"`
	OE                          string    `json:"oe"`
	Imaging                     string    `json:"imaging"`
	ImagingSummary              string    `json:"imagingSummary"`
	IsImagingFinalised          bool      `json:"isImagingFinalised"`
	Labs                        Labs      `json:"labs"`
	LabsPerformed               []LabTest `json:"labsPerformed"`
	Plan                        Plan      `json:"plan"`
	AnticipatedComplexDischarge bool      `json:"anticipatedComplexDischarge"`
}

// OperationRecord describes a procedure performed during the shift.
type OperationRecord struct {
	PatientDetails
	Procedure string `json:"procedure"`
	Findings  string `json:"findings"`
	Plan      string `json:"plan"`
}

// SignOutRecord is the single persisted document summarizing a shift. The JSON
// field names match documents written by earlier versions of the tool.
type SignOutRecord struct {
	Consultant         string            `json:"consultant"`
	SHO                string            `json:"sho"`
	Registrar          string            `json:"registrar"`
	Operations         []OperationRecord `json:"operations"`
	AEAdmissions       []AEAdmission     `json:"AEAdmissions"`
	HduOrIcuAdmissions []AEAdmission     `json:"HduOrIcuAdmissions"`
	AEDischarges       []AEAdmission     `json:"AEDischarges"`
	AEConsults         []AEAdmission     `json:"AEConsults"`
	Referrals          []AEAdmission     `json:"referrals"`
	InHouseConsults    []AEAdmission     `json:"inHouseConsults"`
	FloorIssues        []AEAdmission     `json:"floorIssues"`
}

// NewSignOutRecord returns the default document: empty staff names and empty
// (non-nil) collections.
func NewSignOutRecord() SignOutRecord {
	return SignOutRecord{
		Operations:         []OperationRecord{},
		AEAdmissions:       []AEAdmission{},
		HduOrIcuAdmissions: []AEAdmission{},
		AEDischarges:       []AEAdmission{},
		AEConsults:         []AEAdmission{},
		Referrals:          []AEAdmission{},
		InHouseConsults:    []AEAdmission{},
		FloorIssues:        []AEAdmission{},
	}
}

// Normalize default-fills fields that older documents may lack. Collections and
// list fields become empty sequences; optional lab values are left absent.
func (r *SignOutRecord) Normalize() {
	if r.Operations == nil {
		r.Operations = []OperationRecord{}
	}
	for _, c := range AdmissionCollections() {
		list := r.admissions(c)
		if *list == nil {
			*list = []AEAdmission{}
		}
		for i := range *list {
			(*list)[i].Normalize()
		}
	}
}

// Clone returns a copy of r that shares no slices with it.
func (r SignOutRecord) Clone() SignOutRecord {
	out := r
	out.Operations = slices.Clone(r.Operations)
	for _, c := range AdmissionCollections() {
		list := out.admissions(c)
		*list = slices.Clone(*list)
		for i := range *list {
			(*list)[i] = (*list)[i].Clone()
		}
	}
	return out
}

// Clone returns a copy of a with its own list fields.
func (a AEAdmission) Clone() AEAdmission {
	a.Background = slices.Clone(a.Background)
	a.LabsPerformed = slices.Clone(a.LabsPerformed)
	a.Plan.Antibiotics = slices.Clone(a.Plan.Antibiotics)
	return a
}

// Normalize default-fills the list fields of a single entry.
func (a *AEAdmission) Normalize() {
	if a.Background == nil {
		a.Background = []string{}
	}
	if a.LabsPerformed == nil {
		a.LabsPerformed = []LabTest{}
	}
	if a.Plan.Antibiotics == nil {
		a.Plan.Antibiotics = []string{}
	}
}

// Admissions returns a pointer to the named admission-like collection so that
// callers can read or replace it in place.
func (r *SignOutRecord) Admissions(c Collection) (*[]AEAdmission, error) {
	if !c.Valid() {
		return nil, unknownCollection(string(c))
	}
	return r.admissions(c), nil
}

func (r *SignOutRecord) admissions(c Collection) *[]AEAdmission {
	switch c {
	case CollectionAEAdmissions:
		return &r.AEAdmissions
	case CollectionHduOrIcuAdmissions:
		return &r.HduOrIcuAdmissions
	case CollectionAEDischarges:
		return &r.AEDischarges
	case CollectionAEConsults:
		return &r.AEConsults
	case CollectionReferrals:
		return &r.Referrals
	case CollectionInHouseConsults:
		return &r.InHouseConsults
	case CollectionFloorIssues:
		return &r.FloorIssues
	default:
		return nil
	}
}

// Staff returns the name assigned to role.
func (r SignOutRecord) Staff(role StaffRole) string {
	switch role {
	case RoleConsultant:
		return r.Consultant
	case RoleSHO:
		return r.SHO
	case RoleRegistrar:
		return r.Registrar
	default:
		return ""
	}
}

// SetStaff assigns name to role.
func (r *SignOutRecord) SetStaff(role StaffRole, name string) error {
	switch role {
	case RoleConsultant:
		r.Consultant = name
	case RoleSHO:
		r.SHO = name
	case RoleRegistrar:
		r.Registrar = name
	default:
		return unknownStaffRole(string(role))
	}
	return nil
}
