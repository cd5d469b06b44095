package client

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradekeeper/internal/domain/ledger"
)

func TestSQLiteStore_SaveConflict(t *testing.T) {
	store := newTestStore(t)

	id, err := store.SaveConflict(&ledger.ConflictRecord{
		Table:         ledger.TableTrades,
		RecordID:      "rec-1",
		LocalPayload:  json.RawMessage(`{"qty":2}`),
		RemotePayload: json.RawMessage(`{"qty":5}`),
		RemoteVersion: 4,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	c, err := store.GetConflict(id)
	require.NoError(t, err)
	assert.Equal(t, ledger.TableTrades, c.Table)
	assert.Equal(t, "rec-1", c.RecordID)
	assert.JSONEq(t, `{"qty":2}`, string(c.LocalPayload))
	assert.JSONEq(t, `{"qty":5}`, string(c.RemotePayload))
	assert.Equal(t, 4, c.RemoteVersion)
	assert.Equal(t, ledger.ConflictOpen, c.Status)
	assert.Equal(t, ledger.ResolveManual, c.Strategy)
	assert.Nil(t, c.ResolvedAt)
}

func TestSQLiteStore_ListConflicts(t *testing.T) {
	store := newTestStore(t)

	first, err := store.SaveConflict(&ledger.ConflictRecord{
		Table:    ledger.TableTrades,
		RecordID: "rec-1",
	})
	require.NoError(t, err)
	_, err = store.SaveConflict(&ledger.ConflictRecord{
		Table:    ledger.TablePositions,
		RecordID: "rec-2",
	})
	require.NoError(t, err)

	open, err := store.ListConflicts(ledger.ConflictOpen)
	require.NoError(t, err)
	assert.Len(t, open, 2)

	require.NoError(t, store.MarkConflictResolved(first, ledger.ResolveManual))

	open, err = store.ListConflicts(ledger.ConflictOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "rec-2", open[0].RecordID)

	resolved, err := store.ListConflicts(ledger.ConflictResolved)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.NotNil(t, resolved[0].ResolvedAt)
}

func TestSQLiteStore_MarkConflictResolved(t *testing.T) {
	store := newTestStore(t)

	id, err := store.SaveConflict(&ledger.ConflictRecord{
		Table:    ledger.TableTrades,
		RecordID: "rec-1",
	})
	require.NoError(t, err)

	require.NoError(t, store.MarkConflictResolved(id, ledger.ResolveManual))

	c, err := store.GetConflict(id)
	require.NoError(t, err)
	assert.Equal(t, ledger.ConflictResolved, c.Status)
	assert.Equal(t, ledger.ResolveManual, c.Strategy)

	// Повторное разрешение и неизвестный идентификатор — ошибки
	assert.Error(t, store.MarkConflictResolved(id, ledger.ResolveManual))
	assert.Error(t, store.MarkConflictResolved("no-such-conflict", ledger.ResolveManual))
}
