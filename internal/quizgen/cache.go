package quizgen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/classrally/classrally/internal/quiz"
)

const defaultCacheTTL = time.Hour

// Cache memoizes generated question sets in Redis. Generation calls an
// external model and is by far the slowest operation in the system, so a host
// regenerating from the same material gets the cached set.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) key(req Request) string {
	sum := sha256.Sum256([]byte(req.Content))
	return strings.Join([]string{
		"quizgen",
		req.Difficulty,
		fmt.Sprint(req.NumQuestions),
		hex.EncodeToString(sum[:8]),
	}, ":")
}

// Get returns the cached question set for req, or nil on a miss.
func (c *Cache) Get(ctx context.Context, req Request) ([]quiz.Question, error) {
	data, err := c.client.Get(ctx, c.key(req)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var questions []quiz.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// Set stores a generated question set.
func (c *Cache) Set(ctx context.Context, req Request, questions []quiz.Question) error {
	data, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(req), data, c.ttl).Err()
}
