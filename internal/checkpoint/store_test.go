package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/conversation-engine/internal/model"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	state := model.NewThreadState("thread-1")
	state.Turns = []model.Turn{
		{ID: "t1", Kind: model.TurnUser, Content: "hello", CreatedAt: time.Now()},
	}
	require.NoError(t, store.Put(ctx, "thread-1", state))

	got, err := store.Get(ctx, "thread-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "thread-1", got.ThreadID)
	require.Len(t, got.Turns, 1)
	assert.Equal(t, "hello", got.Turns[0].Content)
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()

	got, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "thread-1", model.NewThreadState("thread-1")))

	existed, err := store.Delete(ctx, "thread-1")
	require.NoError(t, err)
	assert.True(t, existed)

	got, err := store.Get(ctx, "thread-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	existed, err = store.Delete(ctx, "thread-1")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestMemoryStoreDoesNotAliasCallerSlices(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	state := model.NewThreadState("thread-1")
	state.Turns = []model.Turn{{ID: "t1", Kind: model.TurnUser, Content: "original"}}
	require.NoError(t, store.Put(ctx, "thread-1", state))

	// Mutating the caller's copy after Put must not leak into the store.
	state.Turns[0].Content = "mutated"

	got, err := store.Get(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, "original", got.Turns[0].Content)

	// Mutating a Get result must not leak either.
	got.Turns[0].Content = "mutated again"
	again, err := store.Get(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Turns[0].Content)
}

func TestMemoryStorePutOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := model.NewThreadState("thread-1")
	first.Turns = []model.Turn{{ID: "t1", Kind: model.TurnUser, Content: "one"}}
	require.NoError(t, store.Put(ctx, "thread-1", first))

	second := model.NewThreadState("thread-1")
	second.Turns = []model.Turn{
		{ID: "t1", Kind: model.TurnUser, Content: "one"},
		{ID: "t2", Kind: model.TurnAssistant, Content: "two"},
	}
	require.NoError(t, store.Put(ctx, "thread-1", second))

	got, err := store.Get(ctx, "thread-1")
	require.NoError(t, err)
	assert.Len(t, got.Turns, 2)
}
