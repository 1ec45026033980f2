package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/polymorphcorp/profilegpt/internal/domain"
)

// TokenLength is the size of the opaque browser session token.
const TokenLength = 8

// MaxConversationTurns bounds the transcript kept per session.
const MaxConversationTurns = 20

// Store keeps per-session state server-side, keyed by the opaque cookie
// token. The query counter uses INCR so read-then-increment is atomic per
// request; everything else has a single writer (the owning session).
type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewStore(client redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "profilegpt"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

// NewToken generates a fresh 8-character opaque session token.
func NewToken() string {
	return uuid.NewString()[:TokenLength]
}

func (s *Store) QueryCount(ctx context.Context, sessionID string) (int, error) {
	v, err := s.client.Get(ctx, s.countKey(sessionID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get query count: %w", err)
	}
	return v, nil
}

// IncrementQueryCount atomically bumps the counter and returns the new value.
func (s *Store) IncrementQueryCount(ctx context.Context, sessionID string) (int, error) {
	key := s.countKey(sessionID)
	v, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment query count: %w", err)
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return 0, fmt.Errorf("refresh count ttl: %w", err)
	}
	return int(v), nil
}

func (s *Store) Conversation(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	raw, err := s.client.Get(ctx, s.convKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	var turns []domain.Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	return turns, nil
}

// AppendTurn adds a message to the transcript, keeping only the most
// recent MaxConversationTurns entries.
func (s *Store) AppendTurn(ctx context.Context, sessionID, role, content string) error {
	turns, err := s.Conversation(ctx, sessionID)
	if err != nil {
		return err
	}
	turns = append(turns, domain.Turn{Role: role, Content: content})
	if len(turns) > MaxConversationTurns {
		turns = turns[len(turns)-MaxConversationTurns:]
	}
	payload, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	if err := s.client.Set(ctx, s.convKey(sessionID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("set conversation: %w", err)
	}
	return nil
}

// MarkExtensionRequested flags the session so a second submission is
// blocked client-session-side; the durable state lives in the ledger.
func (s *Store) MarkExtensionRequested(ctx context.Context, sessionID, requestID string) error {
	if err := s.client.Set(ctx, s.extKey(sessionID), requestID, s.ttl).Err(); err != nil {
		return fmt.Errorf("mark extension requested: %w", err)
	}
	return nil
}

func (s *Store) ExtensionRequested(ctx context.Context, sessionID string) (bool, string, error) {
	requestID, err := s.client.Get(ctx, s.extKey(sessionID)).Result()
	if err == redis.Nil {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("get extension marker: %w", err)
	}
	return true, requestID, nil
}

// Reset clears all session state and returns the query count it had.
func (s *Store) Reset(ctx context.Context, sessionID string) (int, error) {
	count, err := s.QueryCount(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	keys := []string{s.countKey(sessionID), s.convKey(sessionID), s.extKey(sessionID)}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("reset session: %w", err)
	}
	return count, nil
}

// State assembles a read-only view of the session.
func (s *Store) State(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	count, err := s.QueryCount(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	turns, err := s.Conversation(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	requested, requestID, err := s.ExtensionRequested(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &domain.SessionState{
		SessionID:          sessionID,
		QueryCount:         count,
		Conversation:       turns,
		ExtensionRequested: requested,
		ExtensionRequestID: requestID,
	}, nil
}

func (s *Store) countKey(sessionID string) string { return s.prefix + ":sess:" + sessionID + ":count" }
func (s *Store) convKey(sessionID string) string  { return s.prefix + ":sess:" + sessionID + ":conv" }
func (s *Store) extKey(sessionID string) string   { return s.prefix + ":sess:" + sessionID + ":ext" }
