package fetch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestHTTPCache_PurgeByAge(t *testing.T) {
	cache := &HTTPCache{Dir: t.TempDir()}
	ctx := context.Background()

	if err := cache.Save(ctx, "https://example.com/old", "text/plain", "", "", []byte("old")); err != nil {
		t.Fatalf("save old: %v", err)
	}
	if err := cache.Save(ctx, "https://example.com/fresh", "text/plain", "", "", []byte("fresh")); err != nil {
		t.Fatalf("save fresh: %v", err)
	}

	// Backdate the old entry's SavedAt past the purge cutoff.
	entries, err := os.ReadDir(cache.Dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, ent := range entries {
		if !strings.HasSuffix(ent.Name(), ".meta.json") {
			continue
		}
		path := filepath.Join(cache.Dir, ent.Name())
		b, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read meta: %v", err)
		}
		var meta CacheEntry
		if err := json.Unmarshal(b, &meta); err != nil {
			t.Fatalf("decode meta: %v", err)
		}
		if meta.URL != "https://example.com/old" {
			continue
		}
		meta.SavedAt = time.Now().UTC().Add(-2 * time.Hour)
		b, err = json.Marshal(meta)
		if err != nil {
			t.Fatalf("encode meta: %v", err)
		}
		if err := os.WriteFile(path, b, 0o644); err != nil {
			t.Fatalf("write meta: %v", err)
		}
	}

	removed, err := cache.PurgeByAge(time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := cache.LoadBody(ctx, "https://example.com/old"); err == nil {
		t.Fatal("purged body still readable")
	}
	if meta, err := cache.LoadMeta(ctx, "https://example.com/fresh"); err != nil || meta == nil {
		t.Fatalf("fresh entry lost: meta=%v err=%v", meta, err)
	}

	removed, err = cache.PurgeByAge(time.Hour)
	if err != nil {
		t.Fatalf("second purge: %v", err)
	}
	if removed != 0 {
		t.Fatalf("second purge removed %d, want 0", removed)
	}
}
