package mongodb

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

const (
	collectionBodies = "email_bodies"

	// bodies above this size are gzip-compressed
	compressionThreshold = 1024

	defaultRetention = 90 * 24 * time.Hour
)

// BodyArchive implements out.BodyArchive.
type BodyArchive struct {
	collection *mongo.Collection
	retention  time.Duration
}

func NewBodyArchive(db *mongo.Database, retention time.Duration) *BodyArchive {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &BodyArchive{collection: db.Collection(collectionBodies), retention: retention}
}

func (a *BodyArchive) EnsureIndexes(ctx context.Context) error {
	_, err := a.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "mailbox", Value: 1}, {Key: "received_at", Value: -1}}},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	})
	if err != nil {
		return fmt.Errorf("failed to create body archive indexes: %w", err)
	}
	return nil
}

type bodyDocument struct {
	EmailID      string    `bson:"email_id"`
	Mailbox      string    `bson:"mailbox"`
	ThreadID     string    `bson:"thread_id,omitempty"`
	MessageID    string    `bson:"message_id,omitempty"`
	Sender       string    `bson:"sender"`
	Subject      string    `bson:"subject"`
	Snippet      string    `bson:"snippet,omitempty"`
	Body         []byte    `bson:"body"`
	IsCompressed bool      `bson:"is_compressed"`
	OriginalSize int       `bson:"original_size"`
	ReceivedAt   time.Time `bson:"received_at"`
	ArchivedAt   time.Time `bson:"archived_at"`
	ExpiresAt    time.Time `bson:"expires_at"`
}

func (a *BodyArchive) Store(ctx context.Context, mailbox string, email *domain.InboundEmail) error {
	doc, err := toDocument(mailbox, email, time.Now().UTC(), a.retention)
	if err != nil {
		return err
	}
	_, err = a.collection.ReplaceOne(ctx, bson.M{"email_id": email.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to archive body: %w", err)
	}
	return nil
}

func (a *BodyArchive) Get(ctx context.Context, emailID string) (*domain.InboundEmail, error) {
	var doc bodyDocument
	err := a.collection.FindOne(ctx, bson.M{"email_id": emailID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, out.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get archived body: %w", err)
	}
	return doc.toEntity()
}

func toDocument(mailbox string, email *domain.InboundEmail, now time.Time, retention time.Duration) (*bodyDocument, error) {
	body := []byte(email.Body)
	doc := &bodyDocument{
		EmailID:      email.ID,
		Mailbox:      mailbox,
		ThreadID:     email.ThreadID,
		MessageID:    email.MessageID,
		Sender:       email.Sender,
		Subject:      email.Subject,
		Snippet:      email.Snippet,
		Body:         body,
		OriginalSize: len(body),
		ReceivedAt:   email.ReceivedAt,
		ArchivedAt:   now,
		ExpiresAt:    now.Add(retention),
	}
	if len(body) > compressionThreshold {
		compressed, err := compress(body)
		if err != nil {
			return nil, fmt.Errorf("failed to compress body: %w", err)
		}
		doc.Body = compressed
		doc.IsCompressed = true
	}
	return doc, nil
}

func (d *bodyDocument) toEntity() (*domain.InboundEmail, error) {
	body := d.Body
	if d.IsCompressed {
		var err error
		if body, err = decompress(body); err != nil {
			return nil, fmt.Errorf("failed to decompress body: %w", err)
		}
	}
	return &domain.InboundEmail{
		ID:         d.EmailID,
		ThreadID:   d.ThreadID,
		MessageID:  d.MessageID,
		Sender:     d.Sender,
		Subject:    d.Subject,
		Body:       string(body),
		Snippet:    d.Snippet,
		ReceivedAt: d.ReceivedAt,
	}, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

var _ out.BodyArchive = (*BodyArchive)(nil)
