package integrity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// cachedResult is the redis payload for a completed similarity check.
type cachedResult struct {
	Score           float64 `json:"score"`
	MatchedSourceID *string `json:"matchedSourceId,omitempty"`
}

// Cache memoizes similarity results so a re-submitted answer (last-write-
// wins allows any number of retries) does not re-run the detector. The
// engine works identically without it.
type Cache struct {
	log    *zap.Logger
	client *goredis.Client
	ttl    time.Duration
}

// NewCache connects to redis and verifies the connection with a short ping.
func NewCache(log *zap.Logger, addr, password string, ttl time.Duration) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Cache{log: log, client: client, ttl: ttl}, nil
}

// Ping verifies the redis connection. Nil-safe: a disabled cache reports
// healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// key hashes the text so long answers do not become redis keys.
func (c *Cache) key(sessionID, questionID, text string) string {
	digest := sha256.Sum256([]byte(text))
	return "plagiarism:" + sessionID + ":" + questionID + ":" + hex.EncodeToString(digest[:8])
}

func (c *Cache) get(ctx context.Context, sessionID, questionID, text string) (*cachedResult, bool) {
	if c == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, c.key(sessionID, questionID, text)).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.log.Warn("Plagiarism cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var result cachedResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false
	}
	return &result, true
}

func (c *Cache) set(ctx context.Context, sessionID, questionID, text string, result cachedResult) {
	if c == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(sessionID, questionID, text), payload, c.ttl).Err(); err != nil {
		c.log.Warn("Plagiarism cache write failed", zap.Error(err))
	}
}
