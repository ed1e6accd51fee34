package domain

import "strconv"

// LabTest tags which optional lab panels were performed for an admission.
type LabTest string

// Lab panels that gate the optional fields of Labs.
const (
	LabAmylase LabTest = "Amylase"
	LabINR     LabTest = "INR"
	LabHb      LabTest = "Hb"
	LabNa      LabTest = "Na"
	LabK       LabTest = "K"
	LabLactate LabTest = "Lactate"
	LabRenalFx LabTest = "RenalFx"
	LabLFT     LabTest = "LFT"
	LabHCG     LabTest = "HCG"
)

// LabResult is a rendered lab value.
type LabResult struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PendingLabValue is rendered for a performed panel with no recorded value.
const PendingLabValue = "pending"

// Results renders WCC and CRP followed by every optional value whose panel is
// listed in performed. Values of panels not performed are omitted even when set.
func (l Labs) Results(performed []LabTest) []LabResult {
	out := []LabResult{
		{Name: "WCC", Value: formatLab(&l.WCC)},
		{Name: "CRP", Value: formatLab(&l.CRP)},
	}
	done := make(map[LabTest]bool, len(performed))
	for _, t := range performed {
		if done[t] {
			continue
		}
		done[t] = true
		switch t {
		case LabAmylase:
			out = append(out, LabResult{Name: "Amylase", Value: formatLab(l.Amylase)})
		case LabINR:
			out = append(out, LabResult{Name: "INR", Value: formatLab(l.INR)})
		case LabHb:
			out = append(out, LabResult{Name: "Hb", Value: formatLab(l.Hb)})
		case LabNa:
			out = append(out, LabResult{Name: "Na", Value: formatLab(l.Na)})
		case LabK:
			out = append(out, LabResult{Name: "K", Value: formatLab(l.K)})
		case LabLactate:
			out = append(out, LabResult{Name: "Lactate", Value: formatLab(l.Lactate)})
		case LabRenalFx:
			out = append(out,
				LabResult{Name: "Creatinine", Value: formatLab(l.Creatinine)},
				LabResult{Name: "Urea", Value: formatLab(l.Urea)},
			)
		case LabLFT:
			out = append(out,
				LabResult{Name: "Bilirubin", Value: formatLab(l.Bilirubin)},
				LabResult{Name: "ALT", Value: formatLab(l.ALT)},
				LabResult{Name: "ALP", Value: formatLab(l.ALP)},
				LabResult{Name: "GGT", Value: formatLab(l.GGT)},
			)
		case LabHCG:
			v := PendingLabValue
			if l.HCG != nil {
				v = "negative"
				if *l.HCG {
					v = "positive"
				}
			}
			out = append(out, LabResult{Name: "HCG", Value: v})
		}
	}
	return out
}

func formatLab(v *float64) string {
	if v == nil {
		return PendingLabValue
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
