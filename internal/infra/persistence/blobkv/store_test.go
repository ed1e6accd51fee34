package blobkv

import (
	"context"
	"io"
	"testing"

	"signout/internal/blob"
)

func TestStoreOverBlobDrivers(t *testing.T) {
	fsStore, err := blob.NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	drivers := map[string]blob.Store{
		"memory": blob.NewMemory(),
		"fs":     fsStore,
		"s3":     blob.NewMockS3ForTests(),
	}
	for name, bs := range drivers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := NewStore(bs, "")
			if _, ok, err := s.GetItem(ctx, "signOutRecord"); err != nil || ok {
				t.Fatalf("expected absent: ok=%v err=%v", ok, err)
			}
			if err := s.SetItem(ctx, "signOutRecord", []byte(`{"sho":"A"}`)); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := s.SetItem(ctx, "signOutRecord", []byte(`{"sho":"B"}`)); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, ok, err := s.GetItem(ctx, "signOutRecord")
			if err != nil || !ok || string(got) != `{"sho":"B"}` {
				t.Fatalf("get: %s %v %v", got, ok, err)
			}
			info, rc, err := bs.Get(ctx, "records/signOutRecord.json")
			if err != nil {
				t.Fatalf("expected object under records/: %v", err)
			}
			_, _ = io.ReadAll(rc)
			_ = rc.Close()
			if info.Size != int64(len(`{"sho":"B"}`)) {
				t.Fatalf("unexpected size %d", info.Size)
			}
			if err := s.RemoveItem(ctx, "signOutRecord"); err != nil {
				t.Fatalf("remove: %v", err)
			}
			if _, ok, _ := s.GetItem(ctx, "signOutRecord"); ok {
				t.Fatalf("expected removed")
			}
			if err := s.RemoveItem(ctx, "signOutRecord"); err != nil {
				t.Fatalf("remove absent: %v", err)
			}
			if s.Driver() != "blob:"+string(bs.Driver()) {
				t.Fatalf("driver %s", s.Driver())
			}
		})
	}
}

func TestObjectKeyPrefix(t *testing.T) {
	s := NewStore(blob.NewMemory(), "ward7/")
	if got := s.ObjectKey("signOutRecord"); got != "ward7/signOutRecord.json" {
		t.Fatalf("object key %s", got)
	}
}
