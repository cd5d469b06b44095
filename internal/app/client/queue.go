package client

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tradekeeper/internal/domain/ledger"
)

// QueueManager — долговечная упорядоченная очередь мутаций.
// Операция становится долговечной до возврата из Enqueue; терминальные
// операции (synced, failed) никогда не обрабатываются повторно.
type QueueManager struct {
	store *SQLiteStore
}

func NewQueueManager(store *SQLiteStore) *QueueManager {
	return &QueueManager{store: store}
}

// Enqueue создает операцию со статусом pending и нулевым счетчиком
// попыток. Запись коммитится до возврата.
func (q *QueueManager) Enqueue(opType ledger.OperationType, table, recordID string, payload []byte, baseVersion, maxRetries int) (string, error) {
	if !opType.Valid() {
		return "", fmt.Errorf("неизвестный тип операции: %s", opType)
	}

	op := &ledger.MutationOperation{
		OperationID: uuid.NewString(),
		Type:        opType,
		Table:       table,
		RecordID:    recordID,
		Payload:     payload,
		BaseVersion: baseVersion,
		MaxRetries:  maxRetries,
		Status:      ledger.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	tx, err := q.store.db.Begin()
	if err != nil {
		return "", fmt.Errorf("ошибка открытия транзакции: %w", err)
	}
	defer tx.Rollback()

	if err := insertMutation(tx, op); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("ошибка коммита: %w", err)
	}

	return op.OperationID, nil
}

// ListPending возвращает незавершенные операции в порядке создания
// (FIFO). Порядок операций по одной записи тем самым сохраняется.
func (q *QueueManager) ListPending() ([]*ledger.MutationOperation, error) {
	rows, err := q.store.db.Query(`
		SELECT seq, operation_id, operation_type, table_name, record_id,
		       payload, base_version, retry_count, max_retries, status, created_at
		FROM mutations
		WHERE status = 'pending'
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения очереди: %w", err)
	}
	defer rows.Close()

	var ops []*ledger.MutationOperation
	for rows.Next() {
		op, err := scanMutation(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования операции: %w", err)
		}
		ops = append(ops, op)
	}

	return ops, rows.Err()
}

// Get возвращает операцию по идентификатору.
func (q *QueueManager) Get(operationID string) (*ledger.MutationOperation, error) {
	row := q.store.db.QueryRow(`
		SELECT seq, operation_id, operation_type, table_name, record_id,
		       payload, base_version, retry_count, max_retries, status, created_at
		FROM mutations
		WHERE operation_id = ?
	`, operationID)

	op, err := scanMutation(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("операция не найдена: %s", operationID)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения операции: %w", err)
	}

	return op, nil
}

// MarkOutcome фиксирует результат попытки применения операции:
//   - success: операция становится synced;
//   - transient_failure: счетчик попыток растет, при исчерпании
//     бюджета операция становится failed;
//   - permanent_failure: операция становится failed немедленно.
//
// Повторный success по уже завершенной операции — no-op.
func (q *QueueManager) MarkOutcome(operationID string, outcome ledger.Outcome) error {
	op, err := q.Get(operationID)
	if err != nil {
		return err
	}

	// Терминальные операции не трогаем: повторное подтверждение
	// идемпотентно, все прочее — ошибка вызывающего.
	if op.Status.IsTerminal() {
		if outcome == ledger.OutcomeSuccess && op.Status == ledger.StatusSynced {
			return nil
		}
		return fmt.Errorf("%w: %s", ledger.ErrOperationTerminal, operationID)
	}

	switch outcome {
	case ledger.OutcomeSuccess:
		_, err = q.store.db.Exec(`UPDATE mutations SET status = 'synced' WHERE operation_id = ?`, operationID)

	case ledger.OutcomeTransient:
		// retry_count никогда не превышает max_retries
		newCount := op.RetryCount + 1
		status := ledger.StatusPending
		if newCount >= op.MaxRetries {
			newCount = op.MaxRetries
			status = ledger.StatusFailed
		}
		_, err = q.store.db.Exec(`UPDATE mutations SET retry_count = ?, status = ? WHERE operation_id = ?`,
			newCount, status, operationID)

	case ledger.OutcomePermanent:
		_, err = q.store.db.Exec(`UPDATE mutations SET status = 'failed' WHERE operation_id = ?`, operationID)

	default:
		return fmt.Errorf("неизвестный результат операции: %s", outcome)
	}

	if err != nil {
		return fmt.Errorf("ошибка обновления операции: %w", err)
	}

	return nil
}

// Rebase выставляет base_version всем незавершенным операциям записи.
// Вызывается после подтверждения сервером более ранней операции той же
// записи: последующие операции применяются поверх новой серверной
// версии, а не версии на момент постановки в очередь.
func (q *QueueManager) Rebase(table, recordID string, version int) error {
	_, err := q.store.db.Exec(`
		UPDATE mutations SET base_version = ?
		WHERE table_name = ? AND record_id = ? AND status = 'pending'
	`, version, table, recordID)
	if err != nil {
		return fmt.Errorf("ошибка обновления базовой версии: %w", err)
	}
	return nil
}

// ListFailed возвращает операции с исчерпанным бюджетом — они
// требуют ручного вмешательства и сами больше не повторяются.
func (q *QueueManager) ListFailed() ([]*ledger.MutationOperation, error) {
	rows, err := q.store.db.Query(`
		SELECT seq, operation_id, operation_type, table_name, record_id,
		       payload, base_version, retry_count, max_retries, status, created_at
		FROM mutations
		WHERE status = 'failed'
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения очереди: %w", err)
	}
	defer rows.Close()

	var ops []*ledger.MutationOperation
	for rows.Next() {
		op, err := scanMutation(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования операции: %w", err)
		}
		ops = append(ops, op)
	}

	return ops, rows.Err()
}

// Cleanup удаляет завершенные операции старше указанного порога.
// Очередь никогда не чистится неявно.
func (q *QueueManager) Cleanup(olderThan time.Time) (int64, error) {
	res, err := q.store.db.Exec(`
		DELETE FROM mutations
		WHERE status IN ('synced', 'failed') AND created_at < ?
	`, olderThan.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки очереди: %w", err)
	}

	return res.RowsAffected()
}

func scanMutation(row rowScanner) (*ledger.MutationOperation, error) {
	var op ledger.MutationOperation
	var payload []byte
	var createdAt string

	if err := row.Scan(&op.Seq, &op.OperationID, &op.Type, &op.Table, &op.RecordID,
		&payload, &op.BaseVersion, &op.RetryCount, &op.MaxRetries, &op.Status, &createdAt); err != nil {
		return nil, err
	}

	op.Payload = payload
	op.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	return &op, nil
}
