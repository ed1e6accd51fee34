package domain

import "strings"

// Collection names one of the admission-like sequences in a SignOutRecord. The
// value doubles as the JSON field name of the collection.
type Collection string

// Admission-like collections accepted by the record store upsert.
const (
	// CollectionAEAdmissions holds admissions from the emergency department.
	CollectionAEAdmissions Collection = "AEAdmissions"
	// CollectionHduOrIcuAdmissions holds admissions to high dependency or
	// intensive care. Entries stored here always carry
	// Plan.IsHduOrIcuAdmission = true.
	CollectionHduOrIcuAdmissions Collection = "HduOrIcuAdmissions"
	// CollectionAEDischarges holds patients discharged from the emergency department.
	CollectionAEDischarges Collection = "AEDischarges"
	// CollectionAEConsults holds consults seen in the emergency department.
	CollectionAEConsults Collection = "AEConsults"
	// CollectionReferrals holds referrals to the medical team.
	CollectionReferrals Collection = "referrals"
	// CollectionInHouseConsults holds consults requested by other inpatient teams.
	CollectionInHouseConsults Collection = "inHouseConsults"
	// CollectionFloorIssues holds ward issues raised during the shift.
	CollectionFloorIssues Collection = "floorIssues"
)

var collectionOrder = []Collection{
	CollectionAEAdmissions,
	CollectionHduOrIcuAdmissions,
	CollectionAEDischarges,
	CollectionAEConsults,
	CollectionReferrals,
	CollectionInHouseConsults,
	CollectionFloorIssues,
}

var collectionSlugs = map[Collection]string{
	CollectionAEAdmissions:       "ae-admissions",
	CollectionHduOrIcuAdmissions: "hdu-icu-admissions",
	CollectionAEDischarges:       "ae-discharges",
	CollectionAEConsults:         "ae-consults",
	CollectionReferrals:          "referrals",
	CollectionInHouseConsults:    "in-house-consults",
	CollectionFloorIssues:        "floor-issues",
}

var collectionTitles = map[Collection]string{
	CollectionAEAdmissions:       "A&E Admissions",
	CollectionHduOrIcuAdmissions: "ICU/HDU Admissions",
	CollectionAEDischarges:       "A&E Discharges",
	CollectionAEConsults:         "A&E Consults",
	CollectionReferrals:          "Referrals to Medical Team",
	CollectionInHouseConsults:    "In House Consults",
	CollectionFloorIssues:        "Floor Issues",
}

// AdmissionCollections returns every admission-like collection in display order.
func AdmissionCollections() []Collection {
	out := make([]Collection, len(collectionOrder))
	copy(out, collectionOrder)
	return out
}

// Valid reports whether c names a known collection.
func (c Collection) Valid() bool {
	_, ok := collectionSlugs[c]
	return ok
}

// Slug returns the URL path segment for the collection.
func (c Collection) Slug() string { return collectionSlugs[c] }

// Title returns the human readable heading for the collection.
func (c Collection) Title() string { return collectionTitles[c] }

// ParseCollection resolves either a collection name (case-insensitive) or its
// URL slug.
func ParseCollection(s string) (Collection, error) {
	trimmed := strings.TrimSpace(s)
	for _, c := range collectionOrder {
		if strings.EqualFold(string(c), trimmed) || collectionSlugs[c] == strings.ToLower(trimmed) {
			return c, nil
		}
	}
	return "", unknownCollection(s)
}

// StaffRole names one of the scalar staff assignments on the record.
type StaffRole string

// Staff roles stored on the sign-out record.
const (
	RoleConsultant StaffRole = "consultant"
	RoleSHO        StaffRole = "sho"
	RoleRegistrar  StaffRole = "registrar"
)

// StaffRoles returns the roles in display order.
func StaffRoles() []StaffRole {
	return []StaffRole{RoleConsultant, RoleRegistrar, RoleSHO}
}

// ParseStaffRole resolves a role name case-insensitively.
func ParseStaffRole(s string) (StaffRole, error) {
	switch StaffRole(strings.ToLower(strings.TrimSpace(s))) {
	case RoleConsultant:
		return RoleConsultant, nil
	case RoleSHO:
		return RoleSHO, nil
	case RoleRegistrar:
		return RoleRegistrar, nil
	default:
		return "", unknownStaffRole(s)
	}
}
