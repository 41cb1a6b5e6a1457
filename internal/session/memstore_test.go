package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classrally/classrally/internal/quiz"
)

func storeDoc() *Document {
	return NewDocument(hostID, "Ms. Lopez", quiz.Quiz{
		Title: "Geography",
		Questions: []quiz.Question{
			{Text: "Capital of France?", Options: []string{"Berlin", "Paris"}, Correct: 1},
		},
		DurationSeconds: 20,
	}, time.UnixMilli(1_000_000))
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "123456", storeDoc()))
	assert.ErrorIs(t, store.Create(ctx, "123456", storeDoc()), ErrAlreadyExists)

	doc, err := store.Get(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, StatusLobby, doc.Status)

	_, err = store.Get(ctx, "654321")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreGetReturnsClone(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, "123456", storeDoc()))

	doc, err := store.Get(ctx, "123456")
	require.NoError(t, err)
	doc.Status = StatusFinished

	fresh, err := store.Get(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, StatusLobby, fresh.Status, "mutating a snapshot must not leak into the store")
}

func TestMemoryStoreMergeFailureLeavesDocumentUntouched(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, "123456", storeDoc()))

	// starting with no teams fails its precondition
	_, err := store.Merge(ctx, "123456", StartPlaying{RequesterID: hostID, StartedAt: 5})
	assert.ErrorIs(t, err, ErrNoTeams)

	doc, err := store.Get(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, StatusLobby, doc.Status)
}

func TestMemoryStoreSubscribeSeesSnapshotThenCommits(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, "123456", storeDoc()))

	updates, cancel, err := store.Subscribe(ctx, "123456")
	require.NoError(t, err)
	defer cancel()

	snapshot := <-updates
	assert.Equal(t, StatusLobby, snapshot.Status)

	_, err = store.Merge(ctx, "123456", JoinTeam{Name: "Foxes", JoinedAt: 10})
	require.NoError(t, err)
	_, err = store.Merge(ctx, "123456", StartPlaying{RequesterID: hostID, StartedAt: 20})
	require.NoError(t, err)

	joined := <-updates
	assert.Contains(t, joined.Teams, "Foxes")
	assert.Equal(t, StatusLobby, joined.Status)

	started := <-updates
	assert.Equal(t, StatusPlaying, started.Status)
}

func TestMemoryStoreSubscribeUnknownSession(t *testing.T) {
	store := NewMemoryStore()
	_, _, err := store.Subscribe(context.Background(), "000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreSlowSubscriberKeepsLatest(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, "123456", storeDoc()))

	updates, cancel, err := store.Subscribe(ctx, "123456")
	require.NoError(t, err)
	defer cancel()

	// overflow the subscriber buffer without draining
	for i := 0; i < subscriberBuffer+16; i++ {
		_, err := store.Merge(ctx, "123456", JoinTeam{Name: teamName(i), JoinedAt: int64(i)})
		require.NoError(t, err)
	}

	var last *Document
	for {
		select {
		case doc := <-updates:
			last = doc
			continue
		default:
		}
		break
	}

	require.NotNil(t, last)
	assert.Len(t, last.Teams, subscriberBuffer+16, "latest delivered snapshot reflects every commit")
}

func TestMemoryStoreCancelIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, "123456", storeDoc()))

	updates, cancel, err := store.Subscribe(ctx, "123456")
	require.NoError(t, err)

	cancel()
	cancel()

	_, open := <-updates
	// the snapshot may still be buffered; drain until closed
	for open {
		_, open = <-updates
	}
}

func TestMemoryStoreDropsFinishedSessionAfterLastDetach(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, "123456", storeDoc()))

	_, cancel, err := store.Subscribe(ctx, "123456")
	require.NoError(t, err)

	_, err = store.Merge(ctx, "123456", JoinTeam{Name: "Foxes", JoinedAt: 1})
	require.NoError(t, err)
	_, err = store.Merge(ctx, "123456", StartPlaying{RequesterID: hostID, StartedAt: 2})
	require.NoError(t, err)
	_, err = store.Merge(ctx, "123456", Finish{RequesterID: hostID})
	require.NoError(t, err)

	cancel()

	_, err = store.Get(ctx, "123456")
	assert.ErrorIs(t, err, ErrNotFound)
}

func teamName(i int) string {
	return "team-" + string(rune('a'+i%26)) + string(rune('a'+(i/26)%26))
}
