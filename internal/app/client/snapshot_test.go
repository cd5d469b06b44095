package client

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradekeeper/internal/domain/ledger"
)

func TestSQLiteStore_ExportImportRoundTrip(t *testing.T) {
	src := newTestStore(t)

	trade, err := src.Put(ledger.TableTrades, &ledger.Record{
		Payload: json.RawMessage(`{"symbol":"AAPL","qty":1}`),
	}, PutOptions{MaxRetries: 3})
	require.NoError(t, err)
	_, err = src.Put(ledger.TablePositions, &ledger.Record{
		ID:      "AAPL",
		Payload: json.RawMessage(`{"qty":10}`),
	}, PutOptions{MaxRetries: 3})
	require.NoError(t, err)

	// Удаленные записи тоже попадают в слепок
	require.NoError(t, src.Remove(ledger.TableTrades, trade.ID, PutOptions{MaxRetries: 3}))

	snapshot, err := src.Export()
	require.NoError(t, err)
	assert.False(t, snapshot.ExportedAt.IsZero())
	assert.Len(t, snapshot.Tables[ledger.TableTrades], 1)
	assert.Len(t, snapshot.Tables[ledger.TablePositions], 1)
	assert.True(t, snapshot.Tables[ledger.TableTrades][0].Deleted)

	dst := newTestStore(t)
	require.NoError(t, dst.Import(snapshot))

	pos, err := dst.Get(ledger.TablePositions, "AAPL")
	require.NoError(t, err)
	assert.JSONEq(t, `{"qty":10}`, string(pos.Payload))

	// Tombstone переносится как удаленная запись
	_, err = dst.Get(ledger.TableTrades, trade.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	withDeleted, err := dst.List(ledger.TableTrades, &ledger.RecordFilter{ShowDeleted: true})
	require.NoError(t, err)
	assert.Len(t, withDeleted, 1)
}

func TestSQLiteStore_ImportReplacesState(t *testing.T) {
	store := newTestStore(t)
	queue := NewQueueManager(store)

	_, err := store.Put(ledger.TableTrades, &ledger.Record{
		Payload: json.RawMessage(`{"qty":1}`),
	}, PutOptions{MaxRetries: 3})
	require.NoError(t, err)
	_, err = store.SaveConflict(&ledger.ConflictRecord{
		Table:    ledger.TableTrades,
		RecordID: "x",
	})
	require.NoError(t, err)

	err = store.Import(&ledger.Snapshot{
		Tables: map[string][]ledger.Record{
			ledger.TableTrades: {
				{ID: "imported", Payload: json.RawMessage(`{"qty":5}`), Version: 2, SyncStatus: ledger.StatusSynced},
			},
		},
		ExportedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	// Старое содержимое замещено целиком
	records, err := store.List(ledger.TableTrades, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "imported", records[0].ID)
	assert.Equal(t, 2, records[0].Version)

	// Очередь и конфликты описывали прежнее состояние — очищены
	ops, err := queue.ListPending()
	require.NoError(t, err)
	assert.Empty(t, ops)

	conflicts, err := store.ListConflicts(ledger.ConflictOpen)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestSQLiteStore_ImportDefaults(t *testing.T) {
	store := newTestStore(t)

	err := store.Import(&ledger.Snapshot{
		Tables: map[string][]ledger.Record{
			ledger.TableTrades: {
				{ID: "no-meta", Payload: json.RawMessage(`{}`), SyncStatus: "garbage"},
			},
		},
		ExportedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	records, err := store.List(ledger.TableTrades, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].Version)
	assert.Equal(t, ledger.StatusPending, records[0].SyncStatus)
	assert.False(t, records[0].CreatedAt.IsZero())
}

func TestSQLiteStore_ImportMalformed(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Put(ledger.TableTrades, &ledger.Record{
		Payload: json.RawMessage(`{"qty":1}`),
	}, PutOptions{MaxRetries: 3})
	require.NoError(t, err)

	tests := []struct {
		name     string
		snapshot *ledger.Snapshot
	}{
		{
			name:     "nil snapshot",
			snapshot: nil,
		},
		{
			name:     "missing export time",
			snapshot: &ledger.Snapshot{Tables: map[string][]ledger.Record{}},
		},
		{
			name:     "missing tables",
			snapshot: &ledger.Snapshot{ExportedAt: time.Now()},
		},
		{
			name: "empty table name",
			snapshot: &ledger.Snapshot{
				Tables:     map[string][]ledger.Record{"": {{ID: "x"}}},
				ExportedAt: time.Now(),
			},
		},
		{
			name: "record without id",
			snapshot: &ledger.Snapshot{
				Tables:     map[string][]ledger.Record{ledger.TableTrades: {{Payload: json.RawMessage(`{}`)}}},
				ExportedAt: time.Now(),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Import(tt.snapshot)
			assert.ErrorIs(t, err, ledger.ErrMalformedSnapshot)
		})
	}

	// Хранилище осталось нетронутым
	records, err := store.List(ledger.TableTrades, nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
