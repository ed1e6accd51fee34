package domain

// Keyed is implemented by every collection entry; the key is the patient id.
type Keyed interface {
	PatientID() string
}

// UpsertByPatientID replaces the entry whose patient id matches item in place,
// preserving its position, or appends item when none matches. The returned
// bool reports whether an existing entry was replaced.
func UpsertByPatientID[T Keyed](items []T, item T) ([]T, bool) {
	for i := range items {
		if items[i].PatientID() == item.PatientID() {
			items[i] = item
			return items, true
		}
	}
	return append(items, item), false
}

// RemoveByPatientID returns a new slice without the entries matching id. The
// result is never nil. The bool reports whether anything was removed.
func RemoveByPatientID[T Keyed](items []T, id string) ([]T, bool) {
	out := make([]T, 0, len(items))
	removed := false
	for _, it := range items {
		if it.PatientID() == id {
			removed = true
			continue
		}
		out = append(out, it)
	}
	return out, removed
}

// FindByPatientID returns the first entry matching id.
func FindByPatientID[T Keyed](items []T, id string) (T, bool) {
	for _, it := range items {
		if it.PatientID() == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// ForceHduOrIcu is the pre-transform applied to entries upserted into
// CollectionHduOrIcuAdmissions.
func ForceHduOrIcu(a AEAdmission) AEAdmission {
	a.Plan.IsHduOrIcuAdmission = true
	return a
}
