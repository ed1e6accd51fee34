package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"signout/internal/blob"
	"signout/internal/infra/persistence/memory"
	"signout/pkg/domain"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// AuditStatus is the outcome of an audited operation.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = statusSuccess
	AuditStatusError   AuditStatus = statusError
)

// AuditEntry describes one completed service operation.
type AuditEntry struct {
	Operation  string        `json:"operation"`
	Collection string        `json:"collection,omitempty"`
	PatientID  string        `json:"patientId,omitempty"`
	Status     AuditStatus   `json:"status"`
	Error      string        `json:"error,omitempty"`
	At         time.Time     `json:"at"`
	Duration   time.Duration `json:"duration"`
}

// AuditRecorder receives an entry for every service operation.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, AuditEntry) {}

// WorkbookRenderer writes the handover workbook for a record.
type WorkbookRenderer interface {
	Render(w io.Writer, rec domain.SignOutRecord, now time.Time) error
}

// ErrNoWorkbookRenderer is returned by export operations on a service built
// without WithWorkbookRenderer.
var ErrNoWorkbookRenderer = errors.New("no workbook renderer configured")

// ErrNoBlobStore is returned by ArchiveWorkbook on a service built without
// WithBlobStore.
var ErrNoBlobStore = errors.New("no blob store configured")

const (
	// DefaultArchivePrefix is the blob key prefix of archived workbooks.
	DefaultArchivePrefix = "handover/"
	// WorkbookContentType is the media type of the handover workbook.
	WorkbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	archiveTimeLayout = "20060102T150405Z"
)

// ServiceOption customizes a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	clock         Clock
	logger        zerolog.Logger
	metrics       MetricsRecorder
	tracer        Tracer
	audit         AuditRecorder
	blobs         blob.Store
	workbook      WorkbookRenderer
	archivePrefix string
	urlExpiry     time.Duration
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:         ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:        zerolog.Nop(),
		metrics:       noopMetrics{},
		tracer:        noopTracer{},
		audit:         noopAudit{},
		archivePrefix: DefaultArchivePrefix,
		urlExpiry:     blob.DefaultURLExpiry,
	}
}

// WithClock overrides the service clock.
func WithClock(c Clock) ServiceOption {
	return func(o *serviceOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) ServiceOption {
	return func(o *serviceOptions) { o.logger = l }
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(m MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(a AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if a != nil {
			o.audit = a
		}
	}
}

// WithBlobStore sets the store that receives archived workbooks.
func WithBlobStore(b blob.Store) ServiceOption {
	return func(o *serviceOptions) { o.blobs = b }
}

// WithWorkbookRenderer sets the handover workbook renderer.
func WithWorkbookRenderer(r WorkbookRenderer) ServiceOption {
	return func(o *serviceOptions) { o.workbook = r }
}

// WithArchive configures the blob prefix and presigned URL lifetime of
// archived workbooks. Zero values keep the defaults.
func WithArchive(prefix string, urlExpiry time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		if prefix != "" {
			o.archivePrefix = prefix
		}
		if urlExpiry > 0 {
			o.urlExpiry = urlExpiry
		}
	}
}

// Service exposes the sign-out operations used by the HTTP and CLI adapters.
// Every operation is logged, traced, measured and audited.
type Service struct {
	store *RecordStore
	serviceOptions
}

// NewService constructs a service backed by the supplied record store.
func NewService(store *RecordStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With().Str("component", "service").Logger()
	return &Service{store: store, serviceOptions: o}
}

// NewInMemoryService creates a service over an in-memory record store.
func NewInMemoryService(opts ...ServiceOption) *Service {
	return NewService(NewRecordStore(memory.NewStore()), opts...)
}

// Store returns the underlying record store.
func (s *Service) Store() *RecordStore { return s.store }

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.clock.Now() }

type opAttrs struct {
	collection string
	patientID  string
}

func (s *Service) run(ctx context.Context, op string, attrs opAttrs, fn func(context.Context) error) error {
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, op)
	err := fn(ctx)
	elapsed := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, elapsed)

	entry := AuditEntry{
		Operation:  op,
		Collection: attrs.collection,
		PatientID:  attrs.patientID,
		Status:     AuditStatusSuccess,
		At:         start,
		Duration:   elapsed,
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)

	var ev *zerolog.Event
	switch {
	case err == nil:
		ev = s.logger.Debug()
	case IsClientError(err):
		ev = s.logger.Warn().Err(err)
	default:
		ev = s.logger.Error().Err(err)
	}
	if attrs.collection != "" {
		ev = ev.Str("collection", attrs.collection)
	}
	if attrs.patientID != "" {
		ev = ev.Str("patient_id", attrs.patientID)
	}
	ev.Str("op", op).Dur("duration", elapsed).Msg("operation completed")
	return err
}

// IsClientError reports whether err was caused by the request rather than by
// the backend.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrUnknownCollection) ||
		errors.Is(err, domain.ErrUnknownStaffRole)
}

// GetRecord returns the current document, or a default one.
func (s *Service) GetRecord(ctx context.Context) (domain.SignOutRecord, error) {
	var rec domain.SignOutRecord
	err := s.run(ctx, "get_record", opAttrs{}, func(ctx context.Context) error {
		var err error
		rec, err = s.store.GetSignOutRecord(ctx)
		return err
	})
	return rec, err
}

// ReplaceRecord overwrites the document wholesale.
func (s *Service) ReplaceRecord(ctx context.Context, rec domain.SignOutRecord) error {
	return s.run(ctx, "replace_record", opAttrs{}, func(ctx context.Context) error {
		return s.store.SetSignOutRecord(ctx, rec)
	})
}

// Upsert stores rec in collection keyed by its patient id.
func (s *Service) Upsert(ctx context.Context, collection domain.Collection, rec domain.AEAdmission) error {
	return s.run(ctx, "upsert_admission", opAttrs{collection: string(collection), patientID: rec.ID}, func(ctx context.Context) error {
		return s.store.Upsert(ctx, collection, rec)
	})
}

// SaveOperation stores rec in the operations list keyed by its patient id.
func (s *Service) SaveOperation(ctx context.Context, rec domain.OperationRecord) error {
	return s.run(ctx, "save_operation", opAttrs{collection: domain.OperationsCollection, patientID: rec.ID}, func(ctx context.Context) error {
		return s.store.SaveOperation(ctx, rec)
	})
}

// SetStaff assigns a staff role.
func (s *Service) SetStaff(ctx context.Context, role domain.StaffRole, name string) error {
	return s.run(ctx, "set_staff", opAttrs{}, func(ctx context.Context) error {
		return s.store.SetStaff(ctx, role, name)
	})
}

// ListAdmissions returns the entries of collection in stored order.
func (s *Service) ListAdmissions(ctx context.Context, collection domain.Collection) ([]domain.AEAdmission, error) {
	var out []domain.AEAdmission
	err := s.run(ctx, "list_admissions", opAttrs{collection: string(collection)}, func(ctx context.Context) error {
		rec, err := s.store.GetSignOutRecord(ctx)
		if err != nil {
			return err
		}
		list, err := rec.Admissions(collection)
		if err != nil {
			return err
		}
		out = *list
		return nil
	})
	return out, err
}

// ListOperations returns the recorded operations in stored order.
func (s *Service) ListOperations(ctx context.Context) ([]domain.OperationRecord, error) {
	var out []domain.OperationRecord
	err := s.run(ctx, "list_operations", opAttrs{collection: domain.OperationsCollection}, func(ctx context.Context) error {
		rec, err := s.store.GetSignOutRecord(ctx)
		if err != nil {
			return err
		}
		out = rec.Operations
		return nil
	})
	return out, err
}

// FindAdmission loads the entry of collection with patientID, for editing.
func (s *Service) FindAdmission(ctx context.Context, collection domain.Collection, patientID string) (domain.AEAdmission, error) {
	var out domain.AEAdmission
	err := s.run(ctx, "find_admission", opAttrs{collection: string(collection), patientID: patientID}, func(ctx context.Context) error {
		rec, err := s.store.GetSignOutRecord(ctx)
		if err != nil {
			return err
		}
		list, err := rec.Admissions(collection)
		if err != nil {
			return err
		}
		found, ok := domain.FindByPatientID(*list, patientID)
		if !ok {
			return domain.NotFoundError{Collection: string(collection), PatientID: patientID}
		}
		out = found
		return nil
	})
	return out, err
}

// FindOperation loads the operation with patientID, for editing.
func (s *Service) FindOperation(ctx context.Context, patientID string) (domain.OperationRecord, error) {
	var out domain.OperationRecord
	err := s.run(ctx, "find_operation", opAttrs{collection: domain.OperationsCollection, patientID: patientID}, func(ctx context.Context) error {
		rec, err := s.store.GetSignOutRecord(ctx)
		if err != nil {
			return err
		}
		found, ok := domain.FindByPatientID(rec.Operations, patientID)
		if !ok {
			return domain.NotFoundError{Collection: domain.OperationsCollection, PatientID: patientID}
		}
		out = found
		return nil
	})
	return out, err
}

var errNothingRemoved = errors.New("nothing removed")

// DeleteRecord removes the entry with patientID from collection, which is
// either "operations" or an admission collection name or slug. It reports
// whether an entry was removed; when none was, nothing is written. Other
// collections and the staff fields are untouched.
func (s *Service) DeleteRecord(ctx context.Context, collection, patientID string) (bool, error) {
	removed := false
	err := s.run(ctx, "delete_record", opAttrs{collection: collection, patientID: patientID}, func(ctx context.Context) error {
		filter, err := deleteFilter(collection, patientID)
		if err != nil {
			return err
		}
		err = s.store.Update(ctx, func(doc *domain.SignOutRecord) error {
			if !filter(doc) {
				return errNothingRemoved
			}
			return nil
		})
		if errors.Is(err, errNothingRemoved) {
			return nil
		}
		if err != nil {
			return err
		}
		removed = true
		return nil
	})
	return removed, err
}

func deleteFilter(collection, patientID string) (func(*domain.SignOutRecord) bool, error) {
	if strings.EqualFold(strings.TrimSpace(collection), domain.OperationsCollection) {
		return func(doc *domain.SignOutRecord) bool {
			var ok bool
			doc.Operations, ok = domain.RemoveByPatientID(doc.Operations, patientID)
			return ok
		}, nil
	}
	c, err := domain.ParseCollection(collection)
	if err != nil {
		return nil, err
	}
	return func(doc *domain.SignOutRecord) bool {
		list, err := doc.Admissions(c)
		if err != nil {
			return false
		}
		var ok bool
		*list, ok = domain.RemoveByPatientID(*list, patientID)
		return ok
	}, nil
}

// SubmitAdmission handles an admission-like form: required fields are
// checked, free-text sentinels resolved, the entry upserted with one write,
// and the reloaded document returned.
func (s *Service) SubmitAdmission(ctx context.Context, collection domain.Collection, form domain.AEAdmission) (domain.SignOutRecord, error) {
	var rec domain.SignOutRecord
	err := s.run(ctx, "submit_admission", opAttrs{collection: string(collection), patientID: form.ID}, func(ctx context.Context) error {
		if !collection.Valid() {
			return fmt.Errorf("submit: %w: %q", domain.ErrUnknownCollection, collection)
		}
		if err := domain.RequirePatientDetails(form.PatientDetails); err != nil {
			return err
		}
		if err := s.store.Upsert(ctx, collection, form.ResolveFreeText()); err != nil {
			return err
		}
		var err error
		rec, err = s.store.GetSignOutRecord(ctx)
		return err
	})
	return rec, err
}

// SubmitOperation handles the operation form like SubmitAdmission.
func (s *Service) SubmitOperation(ctx context.Context, form domain.OperationRecord) (domain.SignOutRecord, error) {
	var rec domain.SignOutRecord
	err := s.run(ctx, "submit_operation", opAttrs{collection: domain.OperationsCollection, patientID: form.ID}, func(ctx context.Context) error {
		if err := domain.RequirePatientDetails(form.PatientDetails); err != nil {
			return err
		}
		if err := s.store.SaveOperation(ctx, form.ResolveFreeText()); err != nil {
			return err
		}
		var err error
		rec, err = s.store.GetSignOutRecord(ctx)
		return err
	})
	return rec, err
}

// Summary returns the activity overview as of now.
func (s *Service) Summary(ctx context.Context, now time.Time) (domain.Summary, error) {
	var out domain.Summary
	err := s.run(ctx, "summary", opAttrs{}, func(ctx context.Context) error {
		rec, err := s.store.GetSignOutRecord(ctx)
		if err != nil {
			return err
		}
		out = domain.BuildSummary(rec, now)
		return nil
	})
	return out, err
}

// ExportWorkbook writes the handover workbook for the current document to w.
func (s *Service) ExportWorkbook(ctx context.Context, w io.Writer, now time.Time) error {
	return s.run(ctx, "export_workbook", opAttrs{}, func(ctx context.Context) error {
		return s.renderWorkbook(ctx, w, now)
	})
}

func (s *Service) renderWorkbook(ctx context.Context, w io.Writer, now time.Time) error {
	if s.workbook == nil {
		return ErrNoWorkbookRenderer
	}
	rec, err := s.store.GetSignOutRecord(ctx)
	if err != nil {
		return err
	}
	if err := s.workbook.Render(w, rec, now); err != nil {
		return fmt.Errorf("render workbook: %w", err)
	}
	return nil
}

// Archive describes a workbook stored by ArchiveWorkbook.
type Archive struct {
	Info blob.Info `json:"info"`
	// URL is empty when the blob driver cannot presign.
	URL string `json:"url,omitempty"`
}

// ArchiveKey names the workbook archived at now.
func (s *Service) ArchiveKey(now time.Time) string {
	return s.archivePrefix + now.UTC().Format(archiveTimeLayout) + ".xlsx"
}

// ArchiveWorkbook renders the workbook into the blob store and returns its
// metadata and, where supported, a presigned download URL.
func (s *Service) ArchiveWorkbook(ctx context.Context, now time.Time) (Archive, error) {
	var out Archive
	err := s.run(ctx, "archive_workbook", opAttrs{}, func(ctx context.Context) error {
		if s.blobs == nil {
			return ErrNoBlobStore
		}
		var buf bytes.Buffer
		if err := s.renderWorkbook(ctx, &buf, now); err != nil {
			return err
		}
		key := s.ArchiveKey(now)
		info, err := s.blobs.Put(ctx, key, &buf, blob.PutOptions{
			ContentType: WorkbookContentType,
			Metadata:    map[string]string{"generated-at": now.UTC().Format(time.RFC3339)},
		})
		if err != nil {
			return fmt.Errorf("archive %s: %w", key, err)
		}
		out.Info = info
		url, err := s.blobs.PresignURL(ctx, key, s.urlExpiry)
		switch {
		case errors.Is(err, blob.ErrUnsupported):
		case err != nil:
			return fmt.Errorf("presign %s: %w", key, err)
		default:
			out.URL = url
		}
		return nil
	})
	return out, err
}

// ListArchives returns the archived workbooks, oldest first.
func (s *Service) ListArchives(ctx context.Context) ([]blob.Info, error) {
	var out []blob.Info
	err := s.run(ctx, "list_archives", opAttrs{}, func(ctx context.Context) error {
		if s.blobs == nil {
			return ErrNoBlobStore
		}
		infos, err := s.blobs.List(ctx, s.archivePrefix)
		if err != nil {
			return fmt.Errorf("list archives: %w", err)
		}
		out = infos
		return nil
	})
	return out, err
}

// Reset removes the stored document from the backend.
func (s *Service) Reset(ctx context.Context) error {
	return s.run(ctx, "reset", opAttrs{}, func(ctx context.Context) error {
		return s.store.Reset(ctx)
	})
}
