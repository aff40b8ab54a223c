package messaging

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"triage_server/core/domain"
)

func TestRedisProducer_PublishTriaged(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	p := NewRedisProducer(client)
	ctx := context.Background()

	events := []*domain.TriagedEvent{
		{Mailbox: "team@example.com", EmailID: "m1", Sender: "ada@x.com", Categories: []string{"IT"}, Confidence: 0.92},
		{ID: "fixed-id", Mailbox: "team@example.com", EmailID: "m2", Sender: "eve@x.com", Categories: []string{"General"}, Confidence: 0.6, Fallback: true, Queued: true},
	}
	for _, evt := range events {
		if err := p.PublishTriaged(ctx, evt); err != nil {
			t.Fatalf("PublishTriaged() error = %v", err)
		}
	}
	if events[0].ID == "" {
		t.Error("missing event id was not generated")
	}

	msgs, err := client.XRange(ctx, StreamEmailTriaged, "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("stream length = %d, want 2", len(msgs))
	}

	data, _ := msgs[1].Values["data"].(string)
	var got domain.TriagedEvent
	if err := json.Unmarshal([]byte(data), &got); err != nil {
		t.Fatalf("payload %q: %v", data, err)
	}
	if got.ID != "fixed-id" || got.EmailID != "m2" || !got.Queued || !got.Fallback {
		t.Errorf("payload = %+v", got)
	}
}

func TestRedisProducer_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	err := NewRedisProducer(client).PublishTriaged(context.Background(), &domain.TriagedEvent{EmailID: "m1"})
	if err == nil {
		t.Fatal("expected error with redis down")
	}
}
