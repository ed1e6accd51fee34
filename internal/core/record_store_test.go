package core

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"signout/internal/infra/persistence/memory"
	"signout/pkg/domain"
)

func admission(id, name string) domain.AEAdmission {
	return domain.AEAdmission{PatientDetails: domain.PatientDetails{ID: id, Name: name}}
}

func newTestRecordStore(t *testing.T, opts ...RecordStoreOption) (*RecordStore, *memory.Store) {
	t.Helper()
	kv := memory.NewStore()
	return NewRecordStore(kv, opts...), kv
}

func TestRecordStoreDefaultOnEmpty(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestRecordStore(t)
	rec, err := s.GetSignOutRecord(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(rec, domain.NewSignOutRecord()) {
		t.Fatalf("expected default record, got %+v", rec)
	}
	if _, ok, _ := kv.GetItem(ctx, domain.DefaultRecordKey); ok {
		t.Fatalf("default record must not be persisted by a read")
	}
	if err := kv.SetItem(ctx, domain.DefaultRecordKey, []byte("  ")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.GetSignOutRecord(ctx); err != nil {
		t.Fatalf("blank payload should read as absent: %v", err)
	}
}

func TestRecordStoreUpsertIdentityAndAppend(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRecordStore(t)
	for _, a := range []domain.AEAdmission{admission("1", "Ann"), admission("2", "Bob"), admission("1", "Ann Updated")} {
		if err := s.Upsert(ctx, domain.CollectionAEAdmissions, a); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	rec, err := s.GetSignOutRecord(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(rec.AEAdmissions) != 2 {
		t.Fatalf("expected 2 admissions, got %d", len(rec.AEAdmissions))
	}
	if rec.AEAdmissions[0].Name != "Ann Updated" || rec.AEAdmissions[1].ID != "2" {
		t.Fatalf("replacement must keep position: %+v", rec.AEAdmissions)
	}
}

func TestRecordStoreCollectionIsolation(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRecordStore(t)
	if err := s.SetConsultant(ctx, "Dr Grey"); err != nil {
		t.Fatalf("staff: %v", err)
	}
	if err := s.Upsert(ctx, domain.CollectionReferrals, admission("7", "Ref")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.SaveOperation(ctx, domain.OperationRecord{PatientDetails: domain.PatientDetails{ID: "7"}}); err != nil {
		t.Fatalf("operation: %v", err)
	}
	if err := s.Upsert(ctx, domain.CollectionAEConsults, admission("7", "Consult")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rec, _ := s.GetSignOutRecord(ctx)
	if rec.Consultant != "Dr Grey" || len(rec.Referrals) != 1 || len(rec.Operations) != 1 || len(rec.AEConsults) != 1 {
		t.Fatalf("writes leaked across collections: %+v", rec)
	}
	if rec.Referrals[0].Name != "Ref" {
		t.Fatalf("same id in another collection must not replace: %+v", rec.Referrals)
	}
	if len(rec.AEAdmissions)+len(rec.HduOrIcuAdmissions)+len(rec.AEDischarges)+len(rec.InHouseConsults)+len(rec.FloorIssues) != 0 {
		t.Fatalf("untouched collections changed: %+v", rec)
	}
}

func TestRecordStoreHduOrIcuFlag(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRecordStore(t)
	if err := s.Upsert(ctx, domain.CollectionHduOrIcuAdmissions, admission("9", "Critical")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Upsert(ctx, domain.CollectionAEAdmissions, admission("9", "Ward")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rec, _ := s.GetSignOutRecord(ctx)
	if !rec.HduOrIcuAdmissions[0].Plan.IsHduOrIcuAdmission {
		t.Fatalf("ICU/HDU entries must carry the flag")
	}
	if rec.AEAdmissions[0].Plan.IsHduOrIcuAdmission {
		t.Fatalf("A&E admissions must keep the submitted flag")
	}
}

func TestRecordStoreUnknownCollection(t *testing.T) {
	s, kv := newTestRecordStore(t)
	err := s.Upsert(context.Background(), domain.Collection("wards"), admission("1", "x"))
	if !errors.Is(err, domain.ErrUnknownCollection) {
		t.Fatalf("expected ErrUnknownCollection, got %v", err)
	}
	if len(kv.Keys()) != 0 {
		t.Fatalf("rejected upsert must not write")
	}
}

func TestRecordStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestRecordStore(t, WithRecordKey("night-shift"))
	if s.Key() != "night-shift" || s.Driver() != "memory" {
		t.Fatalf("unexpected key/driver %s %s", s.Key(), s.Driver())
	}
	amylase := 1500.0
	want := domain.NewSignOutRecord()
	want.Registrar = "Dr Yang"
	want.FloorIssues = []domain.AEAdmission{{
		PatientDetails: domain.PatientDetails{ID: "f1", Name: "Floor", DateOfBirth: "1970-02-03"},
		Background:     []string{"T2DM"},
		Labs:           domain.Labs{WCC: 11, CRP: 40, Amylase: &amylase},
		LabsPerformed:  []domain.LabTest{domain.LabAmylase},
	}}
	want.Normalize()
	if err := s.SetSignOutRecord(ctx, want); err != nil {
		t.Fatalf("set: %v", err)
	}
	first, _, _ := kv.GetItem(ctx, "night-shift")
	got, err := s.GetSignOutRecord(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch\n got %+v\nwant %+v", got, want)
	}
	if err := s.SetSignOutRecord(ctx, got); err != nil {
		t.Fatalf("set again: %v", err)
	}
	second, _, _ := kv.GetItem(ctx, "night-shift")
	if string(first) != string(second) {
		t.Fatalf("re-saving a loaded record must be idempotent")
	}
}

func TestRecordStoreSetLeavesArgumentUntouched(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRecordStore(t)
	rec := domain.SignOutRecord{AEAdmissions: []domain.AEAdmission{admission("a1", "Ann")}}
	if err := s.SetSignOutRecord(ctx, rec); err != nil {
		t.Fatalf("set: %v", err)
	}
	a := rec.AEAdmissions[0]
	if a.Background != nil || a.LabsPerformed != nil || a.Plan.Antibiotics != nil || rec.Operations != nil {
		t.Fatalf("caller's record was normalized in place: %+v", rec)
	}
	got, err := s.GetSignOutRecord(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AEAdmissions[0].Background == nil || got.Operations == nil {
		t.Fatalf("expected stored record to be default-filled, got %+v", got)
	}
}

func TestRecordStoreLegacyDocument(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestRecordStore(t)
	legacy := `{"consultant":"Dr Bailey","AEAdmissions":[{"id":"1","name":"Old","labs":{"wcc":1,"crp":2}}]}`
	if err := kv.SetItem(ctx, domain.DefaultRecordKey, []byte(legacy)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	rec, err := s.GetSignOutRecord(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Operations == nil || rec.FloorIssues == nil || rec.AEAdmissions[0].Background == nil || rec.AEAdmissions[0].LabsPerformed == nil {
		t.Fatalf("missing lists should load empty: %+v", rec)
	}
	if err := s.SetSHO(ctx, "Dr Karev"); err != nil {
		t.Fatalf("set sho: %v", err)
	}
	raw, _, _ := kv.GetItem(ctx, domain.DefaultRecordKey)
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := generic["floorIssues"]; !ok || generic["sho"] != "Dr Karev" || generic["consultant"] != "Dr Bailey" {
		t.Fatalf("write should persist the default-filled document: %s", raw)
	}
}

func TestRecordStoreStaff(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRecordStore(t)
	if err := s.SetRegistrar(ctx, "Dr Shepherd"); err != nil {
		t.Fatalf("registrar: %v", err)
	}
	if err := s.SetStaff(ctx, domain.StaffRole("matron"), "x"); !errors.Is(err, domain.ErrUnknownStaffRole) {
		t.Fatalf("expected unknown role, got %v", err)
	}
	rec, _ := s.GetSignOutRecord(ctx)
	if rec.Registrar != "Dr Shepherd" || rec.SHO != "" || rec.Consultant != "" {
		t.Fatalf("unexpected staff %+v", rec)
	}
}

func TestRecordStoreUpdateErrorSkipsWrite(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestRecordStore(t)
	boom := errors.New("boom")
	err := s.Update(ctx, func(doc *domain.SignOutRecord) error {
		doc.Consultant = "never"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if _, ok, _ := kv.GetItem(ctx, s.Key()); ok {
		t.Fatalf("failed update must not write")
	}
}

func TestRecordStoreCorruptFails(t *testing.T) {
	ctx := context.Background()
	var logs strings.Builder
	s, kv := newTestRecordStore(t, WithStoreLogger(zerolog.New(&logs)))
	if err := kv.SetItem(ctx, s.Key(), []byte("{not json")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.GetSignOutRecord(ctx); !IsCorrupt(err) {
		t.Fatalf("expected corrupt error, got %v", err)
	}
	if err := s.Upsert(ctx, domain.CollectionAEAdmissions, admission("1", "x")); !errors.Is(err, domain.ErrCorruptRecord) {
		t.Fatalf("writes must refuse a corrupt document, got %v", err)
	}
	raw, _, _ := kv.GetItem(ctx, s.Key())
	if string(raw) != "{not json" {
		t.Fatalf("corrupt document overwritten: %s", raw)
	}
	if !strings.Contains(logs.String(), `"level":"error"`) || !strings.Contains(logs.String(), `"component":"record_store"`) {
		t.Fatalf("expected error log, got %s", logs.String())
	}
}

func TestRecordStoreCorruptRecovery(t *testing.T) {
	ctx := context.Background()
	at := time.Unix(1700000000, 42)
	s, kv := newTestRecordStore(t, WithRecoverCorrupt(true), WithStoreClock(func() time.Time { return at }))
	if err := kv.SetItem(ctx, s.Key(), []byte("[1,2")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.Upsert(ctx, domain.CollectionAEAdmissions, admission("1", "After")); err != nil {
		t.Fatalf("upsert after recovery: %v", err)
	}
	quarantined, ok, _ := kv.GetItem(ctx, QuarantineKey(s.Key(), at))
	if !ok || string(quarantined) != "[1,2" {
		t.Fatalf("expected raw bytes quarantined, got %q %v", quarantined, ok)
	}
	rec, err := s.GetSignOutRecord(ctx)
	if err != nil || len(rec.AEAdmissions) != 1 {
		t.Fatalf("expected fresh record with one admission: %+v %v", rec, err)
	}
	if QuarantineKey("k", at) != "k.corrupt.1700000000000000042" {
		t.Fatalf("unexpected quarantine key %s", QuarantineKey("k", at))
	}
}

func TestRecordStoreReset(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestRecordStore(t)
	_ = s.SetConsultant(ctx, "x")
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, ok, _ := kv.GetItem(ctx, s.Key()); ok {
		t.Fatalf("reset should remove the key")
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("reset of absent key: %v", err)
	}
}

func TestRecordStoreConcurrentUpserts(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRecordStore(t)
	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('A'+i%26)) + string(rune('a'+i/26))
			if err := s.Upsert(ctx, domain.CollectionAEAdmissions, admission(id, id)); err != nil {
				t.Errorf("upsert %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	rec, _ := s.GetSignOutRecord(ctx)
	if len(rec.AEAdmissions) != n {
		t.Fatalf("lost updates: got %d admissions", len(rec.AEAdmissions))
	}
}

type failingKV struct {
	getErr, setErr error
}

func (f failingKV) GetItem(context.Context, string) ([]byte, bool, error) {
	return nil, false, f.getErr
}
func (f failingKV) SetItem(context.Context, string, []byte) error { return f.setErr }
func (failingKV) RemoveItem(context.Context, string) error        { return nil }
func (failingKV) Driver() string                                  { return "failing" }
func (failingKV) Close() error                                    { return nil }

func TestRecordStoreBackendErrorsWrapped(t *testing.T) {
	ctx := context.Background()
	down := errors.New("connection refused")
	s := NewRecordStore(failingKV{getErr: down})
	if _, err := s.GetSignOutRecord(ctx); !errors.Is(err, down) {
		t.Fatalf("expected wrapped read error, got %v", err)
	}
	s = NewRecordStore(failingKV{setErr: down})
	if err := s.SetConsultant(ctx, "x"); !errors.Is(err, down) {
		t.Fatalf("expected wrapped write error, got %v", err)
	}
}
