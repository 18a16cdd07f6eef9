package session

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_MissingSession(t *testing.T) {
	store := newTestSQLiteStore(t)
	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSQLiteStore_AppendLoadOrder(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, "chat-1", NewUserTurn(fmt.Sprintf("msg %d", i))))
	}

	turns, err := store.Load(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, turns, 5)
	for i, turn := range turns {
		assert.Equal(t, fmt.Sprintf("msg %d", i), turn.Content)
	}
}

func TestSQLiteStore_ToolCallRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	call := NewAssistantTurn("", []ToolCall{
		{ID: "call_1", Name: "geocode", Arguments: json.RawMessage(`{"query":"olympus"}`)},
	})
	require.NoError(t, store.Append(ctx, "chat-1", call))
	require.NoError(t, store.Append(ctx, "chat-1", NewToolTurn("call_1", "geocode", `{"lat":47.8}`, false)))

	turns, err := store.Load(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.Len(t, turns[0].ToolCalls, 1)
	assert.Equal(t, "call_1", turns[0].ToolCalls[0].ID)
	assert.Equal(t, "call_1", turns[1].ToolCallID)
}

func TestSQLiteStore_Replace(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, store.Append(ctx, "chat-1", NewUserTurn(fmt.Sprintf("msg %d", i))))
	}

	require.NoError(t, store.Replace(ctx, "chat-1", []Turn{NewUserTurn("only")}))

	turns, err := store.Load(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "only", turns[0].Content)
}

func TestSQLiteStore_DeleteAndList(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "a", NewUserTurn("hi")))
	require.NoError(t, store.Append(ctx, "b", NewUserTurn("hi")))

	require.NoError(t, store.Delete(ctx, "a"))

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)

	_, err = store.Load(ctx, "a")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSQLiteStore_LastActivity(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "chat-1", NewUserTurn("hi")))

	ts, err := store.LastActivity(ctx, "chat-1")
	require.NoError(t, err)
	assert.False(t, ts.IsZero())

	_, err = store.LastActivity(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSQLiteStore_StatusLifecycle(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := store.Status(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, store.SetStatus(ctx, "nope", StatusExpired), ErrSessionNotFound)

	require.NoError(t, store.Create(ctx, "chat-1"))

	status, err := store.Status(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, status)

	require.NoError(t, store.SetStatus(ctx, "chat-1", StatusAborted))
	status, err = store.Status(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, StatusAborted, status)

	require.NoError(t, store.SetStatus(ctx, "chat-1", StatusActive))
	status, err = store.Status(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, status)

	assert.Error(t, store.SetStatus(ctx, "chat-1", Status("bogus")))
}

func TestManagerOverSQLite(t *testing.T) {
	store := newTestSQLiteStore(t)
	mgr := NewManager(store, 3)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		require.NoError(t, mgr.Append(ctx, "chat-1", NewUserTurn(fmt.Sprintf("msg %d", i))))
	}

	turns, err := mgr.Get(ctx, "chat-1")
	require.NoError(t, err)
	assert.Len(t, turns, 3)
	assert.Equal(t, "msg 3", turns[0].Content)
}
