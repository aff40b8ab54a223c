package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type stats struct {
	Total int     `json:"total"`
	Avg   float64 `json:"avg"`
}

func newTestCache(t *testing.T, prefix string) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisCache(client, prefix)
}

func TestRedisCache_RoundTrip(t *testing.T) {
	mr, c := newTestCache(t, "")
	ctx := context.Background()

	var got stats
	if hit, err := c.GetJSON(ctx, "dashboard:stats", &got); hit || err != nil {
		t.Fatalf("GetJSON() on empty cache = %v, %v", hit, err)
	}

	if err := c.SetJSON(ctx, "dashboard:stats", stats{Total: 12, Avg: 0.81}, 30*time.Second); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}
	if !mr.Exists("triage:dashboard:stats") {
		t.Fatal("default prefix not applied")
	}
	if ttl := mr.TTL("triage:dashboard:stats"); ttl != 30*time.Second {
		t.Errorf("TTL = %v, want 30s", ttl)
	}

	hit, err := c.GetJSON(ctx, "dashboard:stats", &got)
	if err != nil || !hit {
		t.Fatalf("GetJSON() = %v, %v", hit, err)
	}
	if got.Total != 12 || got.Avg != 0.81 {
		t.Errorf("got %+v", got)
	}

	mr.FastForward(31 * time.Second)
	if hit, _ := c.GetJSON(ctx, "dashboard:stats", &got); hit {
		t.Error("entry survived its TTL")
	}
}

func TestRedisCache_Delete(t *testing.T) {
	mr, c := newTestCache(t, "t:")
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		if err := c.SetJSON(ctx, k, 1, time.Minute); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Delete(ctx, "a", "b"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := c.Delete(ctx); err != nil {
		t.Errorf("Delete() with no keys = %v", err)
	}
	if keys := mr.Keys(); len(keys) != 1 || keys[0] != "t:c" {
		t.Errorf("remaining keys = %v", keys)
	}
}

func TestRedisCache_CorruptValue(t *testing.T) {
	mr, c := newTestCache(t, "")
	mr.Set("triage:bad", "{not json")

	var got stats
	if hit, err := c.GetJSON(context.Background(), "bad", &got); hit || err == nil {
		t.Errorf("GetJSON() = %v, %v; want decode error", hit, err)
	}
}
