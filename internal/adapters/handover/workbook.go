// Package handover renders the sign-out record as an xlsx workbook handed to
// the incoming team.
package handover

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"signout/pkg/domain"
)

const (
	// SummarySheet holds staff and per-section counts.
	SummarySheet = "Summary"
	// OperationsSheet lists the operations of the shift.
	OperationsSheet = "Operations"

	defaultSheet = "Sheet1"
)

var operationsHeader = []string{"Name", "Patient ID", "Age", "Location", "Procedure", "Findings", "Plan"}

var admissionsHeader = []string{
	"Name", "Patient ID", "Age", "Location", "Diagnosis", "Background",
	"Anticoagulant", "Antiplatelet", "Examination", "Imaging", "Labs",
	"Antibiotics", "Plan", "Comments",
}

var admissionsWidths = []float64{22, 14, 6, 14, 28, 28, 16, 16, 30, 30, 40, 22, 40, 40}

// Writer renders handover workbooks.
type Writer struct{}

// New returns a Writer.
func New() *Writer { return &Writer{} }

// SheetName returns the worksheet title of collection. Characters excel
// rejects in sheet names are replaced.
func SheetName(c domain.Collection) string {
	r := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "?", "", "*", "", "[", "(", "]", ")")
	name := r.Replace(c.Title())
	if len([]rune(name)) > excelize.MaxSheetNameLength {
		name = string([]rune(name)[:excelize.MaxSheetNameLength])
	}
	return name
}

// Render writes the workbook for rec, with ages computed as of now.
func (w *Writer) Render(out io.Writer, rec domain.SignOutRecord, now time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	b := &book{f: f}
	if err := b.init(); err != nil {
		return err
	}
	summary := domain.BuildSummary(rec, now)
	if err := b.summary(summary, now); err != nil {
		return err
	}
	if err := b.operations(rec.Operations, now); err != nil {
		return err
	}
	for _, c := range domain.AdmissionCollections() {
		list, err := rec.Admissions(c)
		if err != nil {
			return err
		}
		if err := b.admissions(SheetName(c), *list, now); err != nil {
			return err
		}
	}
	if err := f.DeleteSheet(defaultSheet); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(SummarySheet); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}
	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

type book struct {
	f           *excelize.File
	headerStyle int
}

func (b *book) init() error {
	style, err := b.f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	b.headerStyle = style
	return nil
}

func (b *book) sheet(name string, header []string, widths []float64) error {
	if _, err := b.f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	if len(header) == 0 {
		return nil
	}
	if err := b.row(name, 1, toRow(header)); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := b.f.SetCellStyle(name, "A1", last, b.headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}
	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := b.f.SetColWidth(name, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	return b.f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func (b *book) row(sheet string, n int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	if err := b.f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, n, err)
	}
	return nil
}

func (b *book) summary(s domain.Summary, now time.Time) error {
	if err := b.sheet(SummarySheet, nil, nil); err != nil {
		return err
	}
	rows := [][]any{
		{"Generated", now.Format("2006-01-02 15:04")},
		{"Consultant", s.Consultant},
		{"Registrar", s.Registrar},
		{"SHO", s.SHO},
		{},
		{"Section", "Count"},
		{"Operations", s.Counts[domain.OperationsCollection]},
	}
	for _, c := range s.Collections {
		rows = append(rows, []any{c.Title, s.Counts[string(c.Collection)]})
	}
	rows = append(rows, []any{"A&E admissions flagged ICU/HDU", s.FlaggedHduOrIcu})
	for i, r := range rows {
		if err := b.row(SummarySheet, i+1, r); err != nil {
			return err
		}
	}
	for _, cell := range []string{"A1", "A2", "A3", "A4", "A6", "B6"} {
		if err := b.f.SetCellStyle(SummarySheet, cell, cell, b.headerStyle); err != nil {
			return fmt.Errorf("failed to set summary style: %w", err)
		}
	}
	return b.f.SetColWidth(SummarySheet, "A", "A", 32)
}

func (b *book) operations(ops []domain.OperationRecord, now time.Time) error {
	if err := b.sheet(OperationsSheet, operationsHeader, []float64{22, 14, 6, 14, 30, 40, 40}); err != nil {
		return err
	}
	for i, op := range ops {
		r := []any{op.Name, op.ID, age(op.DateOfBirth, now), op.Location, op.Procedure, op.Findings, op.Plan}
		if err := b.row(OperationsSheet, i+2, r); err != nil {
			return err
		}
	}
	return nil
}

func (b *book) admissions(sheet string, list []domain.AEAdmission, now time.Time) error {
	if err := b.sheet(sheet, admissionsHeader, admissionsWidths); err != nil {
		return err
	}
	for i, a := range list {
		r := []any{
			a.Name, a.ID, age(a.DateOfBirth, now), a.Location, a.AdmittingDiagnosis,
			strings.Join(a.Background, ", "),
			medication(a.HasAnticoagulant, a.AnticoagulantUsed),
			medication(a.HasAntiplatelet, a.AntiplateletUsed),
			a.OE,
			imaging(a),
			labs(a),
			strings.Join(a.Plan.Antibiotics, ", "),
			planFlags(a),
			a.Plan.Comments,
		}
		if err := b.row(sheet, i+2, r); err != nil {
			return err
		}
	}
	return nil
}

func toRow(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func age(dob string, now time.Time) any {
	if years, ok := domain.AgeInYears(dob, now); ok {
		return years
	}
	return ""
}

func medication(has bool, which string) string {
	if !has {
		return "No"
	}
	if which == "" {
		return "Yes"
	}
	return which
}

func imaging(a domain.AEAdmission) string {
	parts := make([]string, 0, 3)
	if a.Imaging != "" {
		parts = append(parts, a.Imaging)
	}
	if a.ImagingSummary != "" {
		parts = append(parts, a.ImagingSummary)
	}
	if a.Imaging != "" && !a.IsImagingFinalised {
		parts = append(parts, "(provisional)")
	}
	return strings.Join(parts, " ")
}

func labs(a domain.AEAdmission) string {
	results := a.Labs.Results(a.LabsPerformed)
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Name+" "+r.Value)
	}
	return strings.Join(parts, ", ")
}

func planFlags(a domain.AEAdmission) string {
	var flags []string
	if a.Plan.Fasting {
		flags = append(flags, "NBM")
	}
	if a.Plan.IsIRPlanned {
		flags = append(flags, "IR planned")
	}
	if a.Plan.IsSurgicalInterventionPlanned {
		flags = append(flags, "Surgery planned")
	}
	if a.Plan.IsHduOrIcuAdmission {
		flags = append(flags, "ICU/HDU")
	}
	if a.AnticipatedComplexDischarge {
		flags = append(flags, "Complex discharge")
	}
	return strings.Join(flags, ", ")
}
