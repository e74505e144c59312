package bootstrap

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/edashow/mediaflow/internal/config"
	"github.com/edashow/mediaflow/internal/store"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	mr := miniredis.RunT(t)

	var cfg config.Config
	cfg.Redis.Addr = mr.Addr()
	cfg.Database.DSN = "memory"
	cfg.Settings.Driver = "memory"
	cfg.Telemetry.Exporter = "none"
	cfg.Storage.Backend = "supabase"
	cfg.Storage.Supabase.URL = "https://project.supabase.co"
	cfg.Storage.Supabase.Key = "service-key"
	cfg.Storage.Supabase.Bucket = "media"
	return cfg
}

func TestOpenWiresInMemoryRuntime(t *testing.T) {
	rt, err := Open(context.Background(), testConfig(t), zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() {
		if err := rt.Close(context.Background()); err != nil {
			t.Fatalf("close: %v", err)
		}
	}()

	if _, ok := rt.Media.(*store.MemoryStore); !ok {
		t.Fatalf("expected memory media store, got %T", rt.Media)
	}
	if rt.Settings == nil || rt.Optimizer == nil || rt.Storage == nil || rt.Events == nil {
		t.Fatalf("expected every dependency to be set: %+v", rt)
	}
	if _, ok, err := rt.Settings.Get(context.Background()); err != nil || ok {
		t.Fatalf("expected empty settings, got ok=%v err=%v", ok, err)
	}
}

func TestOpenFailsOnUnknownStorageBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "ftp"

	_, err := Open(context.Background(), cfg, zap.NewNop())
	if err == nil || !strings.Contains(err.Error(), "init object storage") {
		t.Fatalf("expected object storage init error, got %v", err)
	}
}

func TestOpenFailsWithoutRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Addr = "127.0.0.1:1"

	_, err := Open(context.Background(), cfg, zap.NewNop())
	if err == nil || !strings.Contains(err.Error(), "init redis") {
		t.Fatalf("expected redis init error, got %v", err)
	}
}
