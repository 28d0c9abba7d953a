package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ProcessedTracker remembers which provider events were already handled.
// MarkProcessed reports false when the event had been recorded before, so a
// caller can use it alone as an atomic claim.
type ProcessedTracker interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresProcessedStore keeps processed events in the processed_events table.
type PostgresProcessedStore struct {
	pool rowQuerier
}

func NewPostgresProcessedStore(pool *pgxpool.Pool) *PostgresProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &PostgresProcessedStore{pool: pool}
}

func newPostgresProcessedStoreWithExec(exec rowQuerier) *PostgresProcessedStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &PostgresProcessedStore{pool: exec}
}

func (s *PostgresProcessedStore) AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	var exists int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM processed_events WHERE provider = $1 AND event_id = $2`, provider, eventID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return true, nil
}

func (s *PostgresProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	ct, err := s.pool.Exec(ctx, `
		INSERT INTO processed_events (provider, event_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, provider, eventID)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// MongoProcessedStore keys documents by provider and event id so the _id index
// rejects repeats.
type MongoProcessedStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoProcessedStore(db *mongo.Database) *MongoProcessedStore {
	if db == nil {
		panic("events: mongo database required")
	}
	return &MongoProcessedStore{coll: db.Collection("processed_events"), now: time.Now}
}

func processedKey(provider, eventID string) string {
	return provider + ":" + eventID
}

func (s *MongoProcessedStore) AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	err := s.coll.FindOne(ctx, bson.M{"_id": processedKey(provider, eventID)}).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return true, nil
}

func (s *MongoProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	_, err := s.coll.InsertOne(ctx, bson.M{
		"_id":          processedKey(provider, eventID),
		"provider":     provider,
		"event_id":     eventID,
		"processed_at": s.now().UTC(),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return true, nil
}

// MemoryProcessedStore is a process-local ProcessedTracker.
type MemoryProcessedStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryProcessedStore() *MemoryProcessedStore {
	return &MemoryProcessedStore{seen: make(map[string]struct{})}
}

func (s *MemoryProcessedStore) AlreadyProcessed(_ context.Context, provider, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[processedKey(provider, eventID)]
	return ok, nil
}

func (s *MemoryProcessedStore) MarkProcessed(_ context.Context, provider, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := processedKey(provider, eventID)
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = struct{}{}
	return true, nil
}

var (
	_ ProcessedTracker = (*PostgresProcessedStore)(nil)
	_ ProcessedTracker = (*MongoProcessedStore)(nil)
	_ ProcessedTracker = (*MemoryProcessedStore)(nil)
)
