package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persai-chat/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndLoadMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSession(ctx, "s1"))

	result := "3 results"
	msgs := []domain.Message{
		{Role: domain.RoleUser, Content: "hi", CreatedAt: 100},
		{Role: domain.RoleTool, Content: "3 results", CreatedAt: 101, ToolCall: &domain.ToolCallInfo{
			CallID:   "c1",
			ToolName: "search",
			Args:     map[string]string{"q": "go"},
			Result:   &result,
		}},
		{Role: domain.RoleAgent, Content: "found it", CreatedAt: 102},
	}
	require.NoError(t, store.AppendMessages(ctx, "s1", msgs))

	loaded, err := store.LoadMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, msgs[0], loaded[0])
	assert.Equal(t, msgs[2], loaded[2])

	require.NotNil(t, loaded[1].ToolCall)
	assert.Equal(t, "c1", loaded[1].ToolCall.CallID)
	assert.Equal(t, map[string]string{"q": "go"}, loaded[1].ToolCall.Args)
	require.NotNil(t, loaded[1].ToolCall.Result)
	assert.Equal(t, "3 results", *loaded[1].ToolCall.Result)
}

func TestAppendPreservesOrderAcrossTurns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSession(ctx, "s1"))
	require.NoError(t, store.AppendMessages(ctx, "s1", []domain.Message{
		{Role: domain.RoleUser, Content: "first", CreatedAt: 1},
		{Role: domain.RoleAgent, Content: "one", CreatedAt: 2},
	}))
	require.NoError(t, store.AppendMessages(ctx, "s1", []domain.Message{
		{Role: domain.RoleUser, Content: "second", CreatedAt: 3},
		{Role: domain.RoleAgent, Content: "two", CreatedAt: 4},
	}))

	loaded, err := store.LoadMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, loaded, 4)
	assert.Equal(t, "first", loaded[0].Content)
	assert.Equal(t, "two", loaded[3].Content)
}

func TestSaveSessionIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSession(ctx, "s1"))
	require.NoError(t, store.SaveSession(ctx, "s1"))

	latest, err := store.LatestSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s1", latest)
}

func TestLatestSessionEmptyStore(t *testing.T) {
	store := newTestStore(t)

	latest, err := store.LatestSession(context.Background())
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestLoadMessagesUnknownSession(t *testing.T) {
	store := newTestStore(t)

	msgs, err := store.LoadMessages(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
