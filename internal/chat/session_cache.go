package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Turn is one exchange in a conversation.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// SessionCache stores recent conversation turns per chat session.
type SessionCache interface {
	History(ctx context.Context, sessionID string) ([]Turn, error)
	Append(ctx context.Context, sessionID string, turns ...Turn) error
}

// maxTurns bounds how much history is replayed into the prompt.
const maxTurns = 12

// sessionTTL expires idle conversations.
const sessionTTL = 2 * time.Hour

// RedisSessionCache keeps conversation history in a Redis list per session.
type RedisSessionCache struct {
	rdb *redis.Client
}

// NewRedisSessionCache connects to Redis and verifies connectivity.
// Callers fall back to the in-memory cache when this fails.
func NewRedisSessionCache(addr, password string, db int) (*RedisSessionCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed (%s): %w", addr, err)
	}

	return &RedisSessionCache{rdb: rdb}, nil
}

// Close shuts down the underlying redis client.
func (c *RedisSessionCache) Close() error {
	return c.rdb.Close()
}

func sessionKey(sessionID string) string {
	return "chat:session:" + sessionID
}

// History returns the most recent turns for a session, oldest first.
func (c *RedisSessionCache) History(ctx context.Context, sessionID string) ([]Turn, error) {
	raw, err := c.rdb.LRange(ctx, sessionKey(sessionID), int64(-maxTurns), -1).Result()
	if err != nil {
		return nil, err
	}
	turns := make([]Turn, 0, len(raw))
	for _, item := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			continue // skip corrupt entries rather than failing the chat
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Append pushes turns onto the session list and refreshes its TTL.
func (c *RedisSessionCache) Append(ctx context.Context, sessionID string, turns ...Turn) error {
	key := sessionKey(sessionID)
	pipe := c.rdb.Pipeline()
	for _, t := range turns {
		payload, err := json.Marshal(t)
		if err != nil {
			return err
		}
		pipe.RPush(ctx, key, payload)
	}
	pipe.LTrim(ctx, key, int64(-4*maxTurns), -1)
	pipe.Expire(ctx, key, sessionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// MemorySessionCache is the in-process fallback when Redis is not
// configured. Suitable for a single instance only.
type MemorySessionCache struct {
	mu       sync.Mutex
	sessions map[string][]Turn
}

// NewMemorySessionCache builds an empty in-memory cache.
func NewMemorySessionCache() *MemorySessionCache {
	return &MemorySessionCache{sessions: make(map[string][]Turn)}
}

// History returns the most recent turns for a session.
func (c *MemorySessionCache) History(ctx context.Context, sessionID string) ([]Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	turns := c.sessions[sessionID]
	if len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// Append adds turns to a session.
func (c *MemorySessionCache) Append(ctx context.Context, sessionID string, turns ...Turn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sessionID] = append(c.sessions[sessionID], turns...)
	return nil
}
