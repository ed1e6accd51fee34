package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"signout/pkg/domain"
)

// RecordStore owns the single persisted sign-out record. Every mutation is a
// whole-document read-modify-write against the backing KeyValueStore, held
// under a mutex so that concurrent callers in one process cannot interleave.
// Processes sharing a backend still race: the last full write wins.
type RecordStore struct {
	kv             domain.KeyValueStore
	key            string
	recoverCorrupt bool
	log            zerolog.Logger
	now            func() time.Time
	mu             sync.Mutex
}

// RecordStoreOption customizes a RecordStore.
type RecordStoreOption func(*RecordStore)

// WithRecordKey overrides the storage key (default domain.DefaultRecordKey).
func WithRecordKey(key string) RecordStoreOption {
	return func(s *RecordStore) {
		if key != "" {
			s.key = key
		}
	}
}

// WithRecoverCorrupt makes the store quarantine an undecodable document and
// continue from a default one instead of failing.
func WithRecoverCorrupt(enabled bool) RecordStoreOption {
	return func(s *RecordStore) { s.recoverCorrupt = enabled }
}

// WithStoreLogger sets the logger used for corruption reports.
func WithStoreLogger(log zerolog.Logger) RecordStoreOption {
	return func(s *RecordStore) { s.log = log.With().Str("component", "record_store").Logger() }
}

// WithStoreClock overrides the clock used to name quarantined documents.
func WithStoreClock(now func() time.Time) RecordStoreOption {
	return func(s *RecordStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRecordStore wraps kv.
func NewRecordStore(kv domain.KeyValueStore, opts ...RecordStoreOption) *RecordStore {
	s := &RecordStore{
		kv:  kv,
		key: domain.DefaultRecordKey,
		log: zerolog.Nop(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the storage key holding the record.
func (s *RecordStore) Key() string { return s.key }

// Driver returns the backend identifier.
func (s *RecordStore) Driver() string { return s.kv.Driver() }

// GetSignOutRecord returns the stored document, or a default document when
// none exists. The default is not persisted.
func (s *RecordStore) GetSignOutRecord(ctx context.Context) (domain.SignOutRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// SetSignOutRecord overwrites the stored document wholesale. rec is not
// modified.
func (s *RecordStore) SetSignOutRecord(ctx context.Context, rec domain.SignOutRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, rec)
}

// Upsert inserts rec into collection, replacing the entry with the same
// patient id in place or appending it. Entries upserted into
// HduOrIcuAdmissions always have Plan.IsHduOrIcuAdmission set.
func (s *RecordStore) Upsert(ctx context.Context, collection domain.Collection, rec domain.AEAdmission) error {
	if !collection.Valid() {
		return fmt.Errorf("upsert: %w: %q", domain.ErrUnknownCollection, collection)
	}
	if collection == domain.CollectionHduOrIcuAdmissions {
		rec = domain.ForceHduOrIcu(rec)
	}
	return s.update(ctx, func(doc *domain.SignOutRecord) error {
		list, err := doc.Admissions(collection)
		if err != nil {
			return err
		}
		*list, _ = domain.UpsertByPatientID(*list, rec)
		return nil
	})
}

// SaveOperation upserts rec into the operations collection.
func (s *RecordStore) SaveOperation(ctx context.Context, rec domain.OperationRecord) error {
	return s.update(ctx, func(doc *domain.SignOutRecord) error {
		doc.Operations, _ = domain.UpsertByPatientID(doc.Operations, rec)
		return nil
	})
}

// SetStaff assigns name to role.
func (s *RecordStore) SetStaff(ctx context.Context, role domain.StaffRole, name string) error {
	return s.update(ctx, func(doc *domain.SignOutRecord) error {
		return doc.SetStaff(role, name)
	})
}

// SetConsultant assigns the consultant.
func (s *RecordStore) SetConsultant(ctx context.Context, name string) error {
	return s.SetStaff(ctx, domain.RoleConsultant, name)
}

// SetSHO assigns the senior house officer.
func (s *RecordStore) SetSHO(ctx context.Context, name string) error {
	return s.SetStaff(ctx, domain.RoleSHO, name)
}

// SetRegistrar assigns the registrar.
func (s *RecordStore) SetRegistrar(ctx context.Context, name string) error {
	return s.SetStaff(ctx, domain.RoleRegistrar, name)
}

// Update runs fn against the current document and persists the result. fn
// must not retain doc. Nothing is written when fn returns an error.
func (s *RecordStore) Update(ctx context.Context, fn func(doc *domain.SignOutRecord) error) error {
	return s.update(ctx, fn)
}

// Reset removes the stored document. It is an out-of-band clear used by the
// reset command.
func (s *RecordStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.RemoveItem(ctx, s.key); err != nil {
		return fmt.Errorf("remove %s: %w", s.key, err)
	}
	return nil
}

func (s *RecordStore) update(ctx context.Context, fn func(doc *domain.SignOutRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	return s.save(ctx, doc)
}

func (s *RecordStore) load(ctx context.Context) (domain.SignOutRecord, error) {
	raw, ok, err := s.kv.GetItem(ctx, s.key)
	if err != nil {
		return domain.SignOutRecord{}, fmt.Errorf("read %s: %w", s.key, err)
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return domain.NewSignOutRecord(), nil
	}
	var doc domain.SignOutRecord
	if decodeErr := json.Unmarshal(raw, &doc); decodeErr != nil {
		return s.corrupt(ctx, raw, decodeErr)
	}
	doc.Normalize()
	return doc, nil
}

func (s *RecordStore) corrupt(ctx context.Context, raw []byte, decodeErr error) (domain.SignOutRecord, error) {
	if !s.recoverCorrupt {
		s.log.Error().Err(decodeErr).Str("key", s.key).Int("bytes", len(raw)).Msg("stored sign-out record cannot be decoded")
		return domain.SignOutRecord{}, fmt.Errorf("decode %s: %w: %v", s.key, domain.ErrCorruptRecord, decodeErr)
	}
	quarantine := QuarantineKey(s.key, s.now())
	if err := s.kv.SetItem(ctx, quarantine, raw); err != nil {
		return domain.SignOutRecord{}, fmt.Errorf("quarantine %s: %w", s.key, err)
	}
	if err := s.kv.RemoveItem(ctx, s.key); err != nil {
		return domain.SignOutRecord{}, fmt.Errorf("remove corrupt %s: %w", s.key, err)
	}
	s.log.Warn().Err(decodeErr).Str("key", s.key).Str("quarantine_key", quarantine).Msg("corrupt sign-out record quarantined; continuing from default")
	return domain.NewSignOutRecord(), nil
}

func (s *RecordStore) save(ctx context.Context, doc domain.SignOutRecord) error {
	doc = doc.Clone()
	doc.Normalize()
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.key, err)
	}
	if err := s.kv.SetItem(ctx, s.key, payload); err != nil {
		return fmt.Errorf("write %s: %w", s.key, err)
	}
	return nil
}

// QuarantineKey names the copy of a corrupt document taken at t.
func QuarantineKey(key string, t time.Time) string {
	return key + ".corrupt." + strconv.FormatInt(t.UnixNano(), 10)
}

// IsCorrupt reports whether err stems from an undecodable stored record.
func IsCorrupt(err error) bool { return errors.Is(err, domain.ErrCorruptRecord) }
