package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisOAuthStateStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisOAuthStateStore(client, 10*time.Minute)
	ctx := context.Background()

	if err := store.Save(ctx, "abc"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if got := mr.TTL(OAuthStateKey + "abc"); got != 10*time.Minute {
		t.Errorf("state TTL = %v, want 10m", got)
	}
	if err := store.Save(ctx, ""); err == nil {
		t.Error("Save(\"\") should fail")
	}

	tests := []struct {
		name  string
		state string
		want  bool
	}{
		{"first use", "abc", true},
		{"replay", "abc", false},
		{"unknown", "nope", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		got, err := store.Consume(ctx, tt.state)
		if err != nil {
			t.Fatalf("%s: Consume() error = %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: Consume(%q) = %v, want %v", tt.name, tt.state, got, tt.want)
		}
	}
}

func TestRedisOAuthStateStore_Expired(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisOAuthStateStore(client, time.Minute)
	ctx := context.Background()
	if err := store.Save(ctx, "late"); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Minute)

	if ok, err := store.Consume(ctx, "late"); ok || err != nil {
		t.Errorf("Consume() = %v, %v; want false, nil", ok, err)
	}
}

func TestRedisOAuthStateStore_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	store := NewRedisOAuthStateStore(client, time.Minute)
	if ok, err := store.Consume(context.Background(), "abc"); ok || err == nil {
		t.Errorf("Consume() = %v, %v; want error", ok, err)
	}
}
