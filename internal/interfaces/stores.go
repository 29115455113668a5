package interfaces

import (
	"context"
	"errors"
	"time"

	"support-dojo/server/internal/models"
)

// ErrNotFound is returned by stores when a key or conversation is absent.
var ErrNotFound = errors.New("not found")

// KVStore is the narrow key-value contract used for the gateway's response
// cache and for persisted persona memory. Implementations: redis, in-memory.
type KVStore interface {
	// Get returns the stored value, or ErrNotFound when the key is absent
	// or expired.
	Get(ctx context.Context, key string) (string, error)
	// SetWithTTL stores value under key, expiring after ttl. A ttl of zero
	// means no expiration.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ContextStore is the conversation-context store of record. The gateway
// never writes through this interface; the orchestrator does.
type ContextStore interface {
	Get(ctx context.Context, conversationID string) (*models.ConversationContext, error)
	Initialize(ctx context.Context, conversationID, scenarioID, personaID string, data *models.ContextData) (*models.ConversationContext, error)
	Save(ctx context.Context, conv *models.ConversationContext) error
	Delete(ctx context.Context, conversationID string) (bool, error)
}

// MetricsSink accepts exchange records. Implementations must never block
// or fail the calling exchange.
type MetricsSink interface {
	RecordExchange(m models.ExchangeMetrics)
}

// NoopMetrics discards every record. Used when no sink is configured.
type NoopMetrics struct{}

func (NoopMetrics) RecordExchange(models.ExchangeMetrics) {}
