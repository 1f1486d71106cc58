package summary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/conversation-engine/internal/model"
)

func sampleSummary(threadID string, createdAt time.Time) model.ConversationSummary {
	return model.ConversationSummary{
		ThreadID:     threadID,
		Title:        "summary for " + threadID,
		MainTopics:   []string{"general"},
		KeyPoints:    []string{"a point"},
		UserGoals:    []string{"a goal"},
		CreatedAt:    createdAt,
		MessageCount: 4,
		Sentiment:    model.SentimentNeutral,
		Tags:         []string{"sample"},
		SummaryText:  "a short digest",
	}
}

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := newTestFileStore(t)

	want := sampleSummary("thread-1", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, store.Save(want))

	got, err := store.Load("thread-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Tags, got.Tags)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
}

func TestFileStoreLoadMissing(t *testing.T) {
	store := newTestFileStore(t)

	got, err := store.Load("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStoreSaveOverwrites(t *testing.T) {
	store := newTestFileStore(t)

	first := sampleSummary("thread-1", time.Now())
	require.NoError(t, store.Save(first))

	second := first
	second.Title = "updated title"
	require.NoError(t, store.Save(second))

	got, err := store.Load("thread-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "updated title", got.Title)

	all, err := store.List()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFileStoreDelete(t *testing.T) {
	store := newTestFileStore(t)

	require.NoError(t, store.Save(sampleSummary("thread-1", time.Now())))

	existed, err := store.Delete("thread-1")
	require.NoError(t, err)
	assert.True(t, existed)

	got, err := store.Load("thread-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	existed, err = store.Delete("thread-1")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestFileStoreListNewestFirst(t *testing.T) {
	store := newTestFileStore(t)

	base := time.Now()
	require.NoError(t, store.Save(sampleSummary("oldest", base.Add(-2*time.Hour))))
	require.NoError(t, store.Save(sampleSummary("newest", base)))
	require.NoError(t, store.Save(sampleSummary("middle", base.Add(-time.Hour))))

	all, err := store.List()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "newest", all[0].ThreadID)
	assert.Equal(t, "middle", all[1].ThreadID)
	assert.Equal(t, "oldest", all[2].ThreadID)
}

func TestSearchMatchesTagsAndTopicsCaseInsensitively(t *testing.T) {
	store := NewMemoryStore()

	ml := sampleSummary("ml-thread", time.Now())
	ml.Tags = []string{"ml", "python"}
	require.NoError(t, store.Save(ml))

	cooking := sampleSummary("cooking-thread", time.Now())
	cooking.MainTopics = []string{"recipes"}
	cooking.Tags = []string{"food"}
	require.NoError(t, store.Save(cooking))

	results, err := store.Search("PYTHON")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ml-thread", results[0].ThreadID)

	results, err = store.Search("recipes")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "cooking-thread", results[0].ThreadID)

	results, err = store.Search("blockchain")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchMatchesTitleAndSummaryText(t *testing.T) {
	store := NewMemoryStore()

	s := sampleSummary("thread-1", time.Now())
	s.Title = "Planning a Japan trip"
	s.SummaryText = "flights and hotels were compared"
	require.NoError(t, store.Save(s))

	for _, q := range []string{"japan", "HOTELS"} {
		results, err := store.Search(q)
		require.NoError(t, err)
		assert.Len(t, results, 1, "query %q", q)
	}
}
