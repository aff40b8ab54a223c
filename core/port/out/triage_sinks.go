package out

import (
	"context"
	"time"

	"triage_server/core/domain"
)

// BodyArchive keeps full message bodies outside the relational store.
type BodyArchive interface {
	Store(ctx context.Context, mailbox string, email *domain.InboundEmail) error
	Get(ctx context.Context, emailID string) (*domain.InboundEmail, error)
}

// RoutingGraph records sender to department routing decisions.
type RoutingGraph interface {
	RecordRouting(ctx context.Context, sender string, categories []string, confidence float64) error
	TopDepartments(ctx context.Context, sender string, limit int) ([]string, error)
}

// EventPublisher emits triage events to downstream consumers.
type EventPublisher interface {
	PublishTriaged(ctx context.Context, evt *domain.TriagedEvent) error
}

// Cache is a JSON value cache.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// BatchLocker keeps two inbox batches from running over the same mailbox.
type BatchLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}
