package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"signout/internal/blob/core"
)

var shiftEnd = time.Date(2024, 6, 15, 7, 30, 0, 0, time.UTC)

func TestStorePutOverwritesAndLists(t *testing.T) {
	ctx := context.Background()
	s := New(WithClock(func() time.Time { return shiftEnd }))
	if s.Driver() != core.DriverMemory {
		t.Fatalf("driver mismatch")
	}
	first, err := s.Put(ctx, "handover/a.xlsx", strings.NewReader("one"), core.PutOptions{ContentType: "application/octet-stream", Metadata: map[string]string{"shift": "night"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	info, err := s.Put(ctx, "handover/a.xlsx", strings.NewReader("second"), core.PutOptions{})
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if info.Size != 6 || info.ETag == "" || info.ETag == first.ETag || !info.LastModified.Equal(shiftEnd) {
		t.Fatalf("unexpected info %+v", info)
	}
	_, rc, err := s.Get(ctx, "handover/a.xlsx")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "second" {
		t.Fatalf("expected overwritten content, got %q", body)
	}
	if _, err := s.Put(ctx, "records/signOutRecord.json", strings.NewReader("{}"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	list, err := s.List(ctx, "handover/")
	if err != nil || len(list) != 1 || list[0].Key != "handover/a.xlsx" {
		t.Fatalf("list: %+v %v", list, err)
	}
	all, _ := s.List(ctx, "")
	if len(all) != 2 || all[0].Key > all[1].Key {
		t.Fatalf("expected sorted full listing: %+v", all)
	}
}

func TestStoreMissingKeys(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, _, err := s.Get(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.Head(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if ok, err := s.Delete(ctx, "nope"); ok || err != nil {
		t.Fatalf("delete missing: %v %v", ok, err)
	}
	if _, err := s.Put(ctx, " ", strings.NewReader(""), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
	if _, err := s.PresignURL(ctx, "k", time.Minute); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported")
	}
}

func TestStoreReturnsDetachedCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	meta := map[string]string{"generated-at": "2024-06-15T07:30:00Z"}
	if _, err := s.Put(ctx, "k", strings.NewReader("v"), core.PutOptions{Metadata: meta}); err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["generated-at"] = "changed by caller"
	info, err := s.Head(ctx, "k")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	info.Metadata["generated-at"] = "changed through head"
	again, _ := s.Head(ctx, "k")
	if again.Metadata["generated-at"] != "2024-06-15T07:30:00Z" {
		t.Fatalf("stored metadata mutated: %v", again.Metadata)
	}
	if ok, _ := s.Delete(ctx, "k"); !ok {
		t.Fatalf("expected delete to report existing key")
	}
}
