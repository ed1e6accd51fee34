package domain

// OtherFreeText is the choice offered next to a free-text input. Selecting it
// means "use the typed value instead"; it is never stored.
const OtherFreeText = "Other (freetext)"

// ValueOrFreeText resolves a single-select choice. The sentinel resolves to
// the empty string so the adjacent free-text input becomes the effective value.
func ValueOrFreeText(v string) string {
	if v == OtherFreeText {
		return ""
	}
	return v
}

// WithoutFreeText resolves a multi-select choice by dropping the sentinel. The
// result is never nil.
func WithoutFreeText(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == OtherFreeText {
			continue
		}
		out = append(out, v)
	}
	return out
}

// ResolveFreeText applies sentinel resolution to every choice field of an
// admission: admitting diagnosis, background, antiplatelet, imaging type and
// antibiotics.
func (a AEAdmission) ResolveFreeText() AEAdmission {
	a.AdmittingDiagnosis = ValueOrFreeText(a.AdmittingDiagnosis)
	a.Background = WithoutFreeText(a.Background)
	a.AntiplateletUsed = ValueOrFreeText(a.AntiplateletUsed)
	a.Imaging = ValueOrFreeText(a.Imaging)
	a.Plan.Antibiotics = WithoutFreeText(a.Plan.Antibiotics)
	return a
}

// ResolveFreeText applies sentinel resolution to the procedure choice.
func (o OperationRecord) ResolveFreeText() OperationRecord {
	o.Procedure = ValueOrFreeText(o.Procedure)
	return o
}
