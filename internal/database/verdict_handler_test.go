package database

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/domain"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/vpn"
)

func setupVerdictTestBackend(t *testing.T) *VerdictBackend {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := SetupDB(WithDialector(sqlite.Open(dsn)))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewVerdictBackend(db)
}

func TestVerdictBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := setupVerdictTestBackend(t)

	if err := backend.Save(ctx, map[string]bool{"1.1.1.1": false, "9.9.9.9": true}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := backend.Save(ctx, map[string]bool{"1.1.1.1": true, "8.8.8.8": false}); err != nil {
		t.Fatalf("second Save returned error: %v", err)
	}

	got, err := backend.Load(ctx)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	want := map[string]bool{"1.1.1.1": true, "9.9.9.9": true, "8.8.8.8": false}
	if len(got) != len(want) {
		t.Fatalf("Load = %v, want %v", got, want)
	}
	for ip, isVPN := range want {
		if got[ip] != isVPN {
			t.Fatalf("verdict %s = %v, want %v", ip, got[ip], isVPN)
		}
	}

	var count int64
	if err := backend.db.Model(&domain.IPVerdict{}).Count(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 3 {
		t.Fatalf("rows = %d, want 3", count)
	}
}

func TestVerdictBackendServesCache(t *testing.T) {
	ctx := context.Background()
	backend := setupVerdictTestBackend(t)

	cache := vpn.NewCache(backend)
	cache.Put(ctx, "45.12.7.1", true)
	if _, err := cache.Flush(ctx); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}

	reloaded := vpn.NewCache(backend)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if isVPN, found := reloaded.Get("45.12.7.1"); !found || !isVPN {
		t.Fatalf("Get = (%v, %v), want (true, true)", isVPN, found)
	}
}
