package quizgen

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classrally/classrally/internal/quiz"
)

func TestCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cache := NewCache(client, 0)
	ctx := context.Background()

	req := Request{Content: "Chapter 3", Difficulty: quiz.DifficultyMedium, NumQuestions: 10}

	got, err := cache.Get(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, got, "miss returns nil without error")

	questions := []quiz.Question{
		{Text: "Capital of France?", Options: []string{"Berlin", "Paris"}, Correct: 1},
	}
	require.NoError(t, cache.Set(ctx, req, questions))

	got, err = cache.Get(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, questions, got)

	// a different request misses
	other := Request{Content: "Chapter 4", Difficulty: quiz.DifficultyMedium, NumQuestions: 10}
	got, err = cache.Get(ctx, other)
	require.NoError(t, err)
	assert.Nil(t, got)
}
