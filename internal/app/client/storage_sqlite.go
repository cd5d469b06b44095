package client

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"tradekeeper/internal/domain/ledger"
)

// SQLiteStore — локальное долговечное хранилище. Записи, очередь
// мутаций и конфликты живут в одной базе, поэтому запись и постановка
// операции в очередь коммитятся одной транзакцией.
type SQLiteStore struct {
	db *sql.DB
}

// PutOptions управляет побочным эффектом записи.
type PutOptions struct {
	// LocalOnly отключает постановку мутации в очередь —
	// для чисто локальных данных (кэш котировок).
	LocalOnly bool
	// MaxRetries — бюджет попыток для порожденной операции.
	MaxRetries int
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка открытия базы данных: %v", ledger.ErrStorageUnavailable, err)
	}

	store := &SQLiteStore{db: db}

	// Создаем таблицы
	if err := store.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ошибка инициализации таблиц: %v", ledger.ErrStorageUnavailable, err)
	}

	return store, nil
}

func (s *SQLiteStore) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			id TEXT NOT NULL,
			table_name TEXT NOT NULL,
			payload BLOB NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			sync_status TEXT NOT NULL DEFAULT 'pending',
			deleted BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at_local DATETIME NOT NULL,
			PRIMARY KEY (table_name, id)
		);

		CREATE TABLE IF NOT EXISTS mutations (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			operation_id TEXT NOT NULL UNIQUE,
			operation_type TEXT NOT NULL,
			table_name TEXT NOT NULL,
			record_id TEXT NOT NULL,
			payload BLOB,
			base_version INTEGER NOT NULL DEFAULT 0,
			retry_count INTEGER NOT NULL DEFAULT 0,
			max_retries INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conflicts (
			conflict_id TEXT PRIMARY KEY,
			table_name TEXT NOT NULL,
			record_id TEXT NOT NULL,
			local_payload BLOB,
			remote_payload BLOB,
			remote_version INTEGER NOT NULL DEFAULT 0,
			resolution_strategy TEXT NOT NULL DEFAULT 'manual',
			status TEXT NOT NULL DEFAULT 'open',
			created_at DATETIME NOT NULL,
			resolved_at DATETIME
		);

		CREATE INDEX IF NOT EXISTS idx_records_status ON records(sync_status);
		CREATE INDEX IF NOT EXISTS idx_mutations_status ON mutations(status);
		CREATE INDEX IF NOT EXISTS idx_mutations_record ON mutations(table_name, record_id);
		CREATE INDEX IF NOT EXISTS idx_conflicts_status ON conflicts(status);
	`)

	return err
}

// Put вставляет или перезаписывает запись по id и, если не запрошено
// обратное, той же транзакцией ставит мутацию в очередь. Никогда не
// зависит от состояния сети.
func (s *SQLiteStore) Put(table string, rec *ledger.Record, opt PutOptions) (*ledger.Record, error) {
	now := time.Now().UTC()

	opType := ledger.OpUpdate
	existing, err := s.Get(table, rec.ID)
	switch {
	case rec.ID == "":
		rec.ID = uuid.NewString()
		rec.Version = 1
		rec.CreatedAt = now
		opType = ledger.OpCreate
	case err != nil:
		// Запись с заданным id еще не существует
		rec.Version = 1
		rec.CreatedAt = now
		opType = ledger.OpCreate
	default:
		rec.Version = existing.Version
		rec.CreatedAt = existing.CreatedAt
	}

	rec.Table = table
	rec.UpdatedAtLocal = now
	if opt.LocalOnly {
		rec.SyncStatus = ledger.StatusSynced
	} else {
		rec.SyncStatus = ledger.StatusPending

		// Запись с открытым конфликтом заморожена для новых мутаций:
		// сначала конфликт разрешается, потом правки
		open, cerr := s.hasOpenConflict(table, rec.ID)
		if cerr != nil {
			return nil, cerr
		}
		if open {
			return nil, fmt.Errorf("%w: %s/%s", ledger.ErrConflict, table, rec.ID)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия транзакции: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO records (id, table_name, payload, version, sync_status, deleted, created_at, updated_at_local)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (table_name, id) DO UPDATE SET
			payload = excluded.payload,
			version = excluded.version,
			sync_status = excluded.sync_status,
			deleted = excluded.deleted,
			updated_at_local = excluded.updated_at_local
	`, rec.ID, table, []byte(rec.Payload), rec.Version, rec.SyncStatus, rec.Deleted,
		rec.CreatedAt.Format(time.RFC3339Nano), rec.UpdatedAtLocal.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения записи: %w", err)
	}

	if !opt.LocalOnly {
		if err := insertMutation(tx, &ledger.MutationOperation{
			OperationID: uuid.NewString(),
			Type:        opType,
			Table:       table,
			RecordID:    rec.ID,
			Payload:     rec.Payload,
			BaseVersion: rec.Version,
			MaxRetries:  opt.MaxRetries,
			Status:      ledger.StatusPending,
			CreatedAt:   now,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ошибка коммита: %w", err)
	}

	return rec, nil
}

// Remove помечает запись удаленной и ставит delete-операцию в очередь.
/// Идемпотентна: удаление несуществующего id не ошибка.
func (s *SQLiteStore) Remove(table, id string, opt PutOptions) error {
	rec, err := s.Get(table, id)
	if err != nil {
		// Нечего удалять
		return nil
	}

	if !opt.LocalOnly {
		open, cerr := s.hasOpenConflict(table, id)
		if cerr != nil {
			return cerr
		}
		if open {
			return fmt.Errorf("%w: %s/%s", ledger.ErrConflict, table, id)
		}
	}

	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("ошибка открытия транзакции: %w", err)
	}
	defer tx.Rollback()

	if opt.LocalOnly {
		if _, err := tx.Exec(`DELETE FROM records WHERE table_name = ? AND id = ?`, table, id); err != nil {
			return fmt.Errorf("ошибка удаления записи: %w", err)
		}
	} else {
		_, err = tx.Exec(`
			UPDATE records SET deleted = 1, sync_status = ?, updated_at_local = ?
			WHERE table_name = ? AND id = ?
		`, ledger.StatusPending, now.Format(time.RFC3339Nano), table, id)
		if err != nil {
			return fmt.Errorf("ошибка удаления записи: %w", err)
		}

		if err := insertMutation(tx, &ledger.MutationOperation{
			OperationID: uuid.NewString(),
			Type:        ledger.OpDelete,
			Table:       table,
			RecordID:    id,
			BaseVersion: rec.Version,
			MaxRetries:  opt.MaxRetries,
			Status:      ledger.StatusPending,
			CreatedAt:   now,
		}); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка коммита: %w", err)
	}

	return nil
}

func insertMutation(tx *sql.Tx, op *ledger.MutationOperation) error {
	_, err := tx.Exec(`
		INSERT INTO mutations (operation_id, operation_type, table_name, record_id,
		                       payload, base_version, retry_count, max_retries, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, op.OperationID, op.Type, op.Table, op.RecordID, []byte(op.Payload),
		op.BaseVersion, op.RetryCount, op.MaxRetries, op.Status,
		op.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("ошибка постановки операции в очередь: %w", err)
	}
	return nil
}

// Get возвращает запись по id. Удаленные записи не возвращаются.
func (s *SQLiteStore) Get(table, id string) (*ledger.Record, error) {
	row := s.db.QueryRow(`
		SELECT id, table_name, payload, version, sync_status, deleted, created_at, updated_at_local
		FROM records
		WHERE table_name = ? AND id = ? AND deleted = 0
	`, table, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s/%s", ledger.ErrNotFound, table, id)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения записи: %w", err)
	}

	return rec, nil
}

// List возвращает записи таблицы по фильтру. Пустая таблица — пустой
// результат, не ошибка. Повторный вызов перечитывает хранилище.
func (s *SQLiteStore) List(table string, filter *ledger.RecordFilter) ([]*ledger.Record, error) {
	if filter == nil {
		filter = &ledger.RecordFilter{}
	}

	query := `
		SELECT id, table_name, payload, version, sync_status, deleted, created_at, updated_at_local
		FROM records WHERE table_name = ?`
	args := []interface{}{table}

	if !filter.ShowDeleted {
		query += " AND deleted = 0"
	}
	if filter.SyncStatus != "" {
		query += " AND sync_status = ?"
		args = append(args, filter.SyncStatus)
	}

	query += " ORDER BY updated_at_local DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	var records []*ledger.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*ledger.Record, error) {
	var rec ledger.Record
	var payload []byte
	var createdAt, updatedAt string

	if err := row.Scan(&rec.ID, &rec.Table, &payload, &rec.Version, &rec.SyncStatus,
		&rec.Deleted, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	rec.Payload = payload

	// Парсим временные метки
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.UpdatedAtLocal, _ = time.Parse(time.RFC3339Nano, updatedAt)

	return &rec, nil
}

// setRecordVersion выставляет версию после подтверждения сервером.
func (s *SQLiteStore) setRecordVersion(table, id string, version int) error {
	_, err := s.db.Exec(`UPDATE records SET version = ? WHERE table_name = ? AND id = ?`,
		version, table, id)
	if err != nil {
		return fmt.Errorf("ошибка обновления версии: %w", err)
	}
	return nil
}

// RefreshRecordStatus пересчитывает статус синхронизации записи:
// открытый конфликт или незавершенные операции держат pending,
// исчерпанные операции дают failed, иначе synced.
func (s *SQLiteStore) RefreshRecordStatus(table, id string) error {
	var openConflicts, pendingOps, failedOps int

	err := s.db.QueryRow(`SELECT COUNT(*) FROM conflicts WHERE table_name = ? AND record_id = ? AND status = 'open'`,
		table, id).Scan(&openConflicts)
	if err != nil {
		return fmt.Errorf("ошибка подсчета конфликтов: %w", err)
	}

	err = s.db.QueryRow(`SELECT COUNT(*) FROM mutations WHERE table_name = ? AND record_id = ? AND status = 'pending'`,
		table, id).Scan(&pendingOps)
	if err != nil {
		return fmt.Errorf("ошибка подсчета операций: %w", err)
	}

	err = s.db.QueryRow(`SELECT COUNT(*) FROM mutations WHERE table_name = ? AND record_id = ? AND status = 'failed'`,
		table, id).Scan(&failedOps)
	if err != nil {
		return fmt.Errorf("ошибка подсчета операций: %w", err)
	}

	status := ledger.StatusSynced
	switch {
	case openConflicts > 0 || pendingOps > 0:
		status = ledger.StatusPending
	case failedOps > 0:
		status = ledger.StatusFailed
	}

	_, err = s.db.Exec(`UPDATE records SET sync_status = ? WHERE table_name = ? AND id = ?`,
		status, table, id)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса: %w", err)
	}

	return nil
}

// applyRemote перезаписывает запись серверной версией, не порождая
// мутацию (используется при скачивании изменений и разрешении
// конфликта в пользу сервера).
func (s *SQLiteStore) applyRemote(table string, rec *ledger.Record) error {
	now := time.Now().UTC()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err := s.db.Exec(`
		INSERT INTO records (id, table_name, payload, version, sync_status, deleted, created_at, updated_at_local)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (table_name, id) DO UPDATE SET
			payload = excluded.payload,
			version = excluded.version,
			sync_status = excluded.sync_status,
			deleted = excluded.deleted,
			updated_at_local = excluded.updated_at_local
	`, rec.ID, table, []byte(rec.Payload), rec.Version, ledger.StatusSynced, rec.Deleted,
		createdAt.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("ошибка применения серверной записи: %w", err)
	}

	return nil
}

// Stats возвращает счетчики по таблицам, незавершенным операциям и
// открытым конфликтам.
func (s *SQLiteStore) Stats() (*ledger.StoreStats, error) {
	stats := &ledger.StoreStats{Tables: make(map[string]int)}

	rows, err := s.db.Query(`SELECT table_name, COUNT(*) FROM records WHERE deleted = 0 GROUP BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчета записей: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var table string
		var count int
		if err := rows.Scan(&table, &count); err != nil {
			return nil, fmt.Errorf("ошибка сканирования: %w", err)
		}
		stats.Tables[table] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM mutations WHERE status = 'pending'`).Scan(&stats.PendingSync); err != nil {
		return nil, fmt.Errorf("ошибка подсчета очереди: %w", err)
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM conflicts WHERE status = 'open'`).Scan(&stats.OpenConflicts); err != nil {
		return nil, fmt.Errorf("ошибка подсчета конфликтов: %w", err)
	}

	return stats, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
