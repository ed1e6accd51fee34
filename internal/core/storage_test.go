package core_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"signout/internal/blob"
	"signout/internal/core"
)

func TestOpenKeyValueStoreDrivers(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cases := []struct {
		name   string
		cfg    core.StorageConfig
		driver string
	}{
		{name: "memory", cfg: core.StorageConfig{Driver: core.StorageMemory}, driver: "memory"},
		{name: "sqlite", cfg: core.StorageConfig{Driver: "SQLite", SQLitePath: filepath.Join(t.TempDir(), "s.db")}, driver: "sqlite"},
		{name: "redis", cfg: core.StorageConfig{Driver: core.StorageRedis, RedisAddr: mr.Addr(), RedisPrefix: "test:"}, driver: "redis"},
		{name: "blob", cfg: core.StorageConfig{Driver: core.StorageBlob, Blob: blob.Config{Driver: "memory"}}, driver: "blob:memory"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kv, err := core.OpenKeyValueStore(ctx, tc.cfg)
			if err != nil {
				if tc.name == "sqlite" && strings.Contains(err.Error(), "sqlite") {
					t.Skipf("sqlite unavailable: %v", err)
				}
				t.Fatalf("open: %v", err)
			}
			t.Cleanup(func() { _ = kv.Close() })
			if kv.Driver() != tc.driver {
				t.Fatalf("expected driver %s, got %s", tc.driver, kv.Driver())
			}
			svc := core.NewService(core.NewRecordStore(kv))
			if err := svc.SetStaff(ctx, core.RoleConsultant, "Dr Robbins"); err != nil {
				t.Fatalf("write through %s: %v", tc.name, err)
			}
			rec, err := svc.GetRecord(ctx)
			if err != nil || rec.Consultant != "Dr Robbins" {
				t.Fatalf("read through %s: %+v %v", tc.name, rec, err)
			}
		})
	}
}

func TestOpenKeyValueStoreDefaultsToSQLite(t *testing.T) {
	t.Chdir(t.TempDir())
	kv, err := core.OpenKeyValueStore(context.Background(), core.StorageConfig{})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	defer kv.Close()
	if kv.Driver() != "sqlite" {
		t.Fatalf("expected sqlite default, got %s", kv.Driver())
	}
}

func TestOpenKeyValueStoreErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := core.OpenKeyValueStore(ctx, core.StorageConfig{Driver: "etcd"}); err == nil || !strings.Contains(err.Error(), "unknown storage driver") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
	if _, err := core.OpenKeyValueStore(ctx, core.StorageConfig{Driver: core.StorageMongo}); err == nil {
		t.Fatalf("expected mongo uri error")
	}
	if _, err := core.OpenKeyValueStore(ctx, core.StorageConfig{Driver: core.StorageBlob, Blob: blob.Config{Driver: "gcs"}}); err == nil {
		t.Fatalf("expected blob driver error")
	}
}
