package client

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradekeeper/internal/domain/ledger"
)

func TestQueueManager_Enqueue(t *testing.T) {
	store := newTestStore(t)
	queue := NewQueueManager(store)

	opID, err := queue.Enqueue(ledger.OpCreate, ledger.TableTrades, "rec-1",
		json.RawMessage(`{"qty":1}`), 1, 3)
	require.NoError(t, err)
	require.NotEmpty(t, opID)

	op, err := queue.Get(opID)
	require.NoError(t, err)
	assert.Equal(t, ledger.OpCreate, op.Type)
	assert.Equal(t, "rec-1", op.RecordID)
	assert.Equal(t, ledger.StatusPending, op.Status)
	assert.Equal(t, 0, op.RetryCount)
	assert.Equal(t, 3, op.MaxRetries)
}

func TestQueueManager_Rebase(t *testing.T) {
	store := newTestStore(t)
	queue := NewQueueManager(store)

	first, err := queue.Enqueue(ledger.OpUpdate, ledger.TableTrades, "rec-1",
		json.RawMessage(`{"qty":2}`), 1, 3)
	require.NoError(t, err)
	second, err := queue.Enqueue(ledger.OpUpdate, ledger.TableTrades, "rec-1",
		json.RawMessage(`{"qty":3}`), 1, 3)
	require.NoError(t, err)
	other, err := queue.Enqueue(ledger.OpUpdate, ledger.TableTrades, "rec-2",
		json.RawMessage(`{"qty":9}`), 1, 3)
	require.NoError(t, err)

	// Завершенные операции перебазирование не трогает
	require.NoError(t, queue.MarkOutcome(first, ledger.OutcomeSuccess))

	require.NoError(t, queue.Rebase(ledger.TableTrades, "rec-1", 5))

	op, err := queue.Get(second)
	require.NoError(t, err)
	assert.Equal(t, 5, op.BaseVersion)

	op, err = queue.Get(first)
	require.NoError(t, err)
	assert.Equal(t, 1, op.BaseVersion)

	// Чужие записи не затронуты
	op, err = queue.Get(other)
	require.NoError(t, err)
	assert.Equal(t, 1, op.BaseVersion)
}

func TestQueueManager_EnqueueInvalidType(t *testing.T) {
	store := newTestStore(t)
	queue := NewQueueManager(store)

	_, err := queue.Enqueue("merge", ledger.TableTrades, "rec-1", nil, 1, 3)
	assert.Error(t, err)
}

func TestQueueManager_ListPendingFIFO(t *testing.T) {
	store := newTestStore(t)
	queue := NewQueueManager(store)

	var ids []string
	for i := 0; i < 5; i++ {
		opID, err := queue.Enqueue(ledger.OpUpdate, ledger.TableTrades, "rec-1", nil, i+1, 3)
		require.NoError(t, err)
		ids = append(ids, opID)
	}

	ops, err := queue.ListPending()
	require.NoError(t, err)
	require.Len(t, ops, 5)

	// Порядок строго соответствует порядку постановки
	for i, op := range ops {
		assert.Equal(t, ids[i], op.OperationID)
	}
	for i := 1; i < len(ops); i++ {
		assert.Greater(t, ops[i].Seq, ops[i-1].Seq)
	}
}

func TestQueueManager_MarkOutcomeSuccess(t *testing.T) {
	store := newTestStore(t)
	queue := NewQueueManager(store)

	opID, err := queue.Enqueue(ledger.OpCreate, ledger.TableTrades, "rec-1", nil, 1, 3)
	require.NoError(t, err)

	require.NoError(t, queue.MarkOutcome(opID, ledger.OutcomeSuccess))

	op, err := queue.Get(opID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSynced, op.Status)

	// Повторное подтверждение успеха идемпотентно
	assert.NoError(t, queue.MarkOutcome(opID, ledger.OutcomeSuccess))

	// Любой другой результат по завершенной операции — ошибка
	err = queue.MarkOutcome(opID, ledger.OutcomeTransient)
	assert.ErrorIs(t, err, ledger.ErrOperationTerminal)
}

func TestQueueManager_MarkOutcomeTransientCap(t *testing.T) {
	store := newTestStore(t)
	queue := NewQueueManager(store)

	opID, err := queue.Enqueue(ledger.OpUpdate, ledger.TableTrades, "rec-1", nil, 1, 2)
	require.NoError(t, err)

	// Первый временный сбой: счетчик растет, операция еще жива
	require.NoError(t, queue.MarkOutcome(opID, ledger.OutcomeTransient))
	op, err := queue.Get(opID)
	require.NoError(t, err)
	assert.Equal(t, 1, op.RetryCount)
	assert.Equal(t, ledger.StatusPending, op.Status)

	// Второй сбой исчерпывает бюджет
	require.NoError(t, queue.MarkOutcome(opID, ledger.OutcomeTransient))
	op, err = queue.Get(opID)
	require.NoError(t, err)
	assert.Equal(t, 2, op.RetryCount)
	assert.Equal(t, ledger.StatusFailed, op.Status)

	// Счетчик никогда не превышает бюджет
	err = queue.MarkOutcome(opID, ledger.OutcomeTransient)
	assert.ErrorIs(t, err, ledger.ErrOperationTerminal)
	op, err = queue.Get(opID)
	require.NoError(t, err)
	assert.LessOrEqual(t, op.RetryCount, op.MaxRetries)
}

func TestQueueManager_MarkOutcomePermanent(t *testing.T) {
	store := newTestStore(t)
	queue := NewQueueManager(store)

	opID, err := queue.Enqueue(ledger.OpDelete, ledger.TableTrades, "rec-1", nil, 1, 5)
	require.NoError(t, err)

	require.NoError(t, queue.MarkOutcome(opID, ledger.OutcomePermanent))

	op, err := queue.Get(opID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, op.Status)
	assert.Equal(t, 0, op.RetryCount)

	failed, err := queue.ListFailed()
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, opID, failed[0].OperationID)

	pending, err := queue.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestQueueManager_Cleanup(t *testing.T) {
	store := newTestStore(t)
	queue := NewQueueManager(store)

	doneID, err := queue.Enqueue(ledger.OpCreate, ledger.TableTrades, "rec-1", nil, 1, 3)
	require.NoError(t, err)
	require.NoError(t, queue.MarkOutcome(doneID, ledger.OutcomeSuccess))

	pendingID, err := queue.Enqueue(ledger.OpUpdate, ledger.TableTrades, "rec-2", nil, 1, 3)
	require.NoError(t, err)

	removed, err := queue.Cleanup(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	// Незавершенные операции очистка не трогает
	op, err := queue.Get(pendingID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, op.Status)

	_, err = queue.Get(doneID)
	assert.Error(t, err)
}
