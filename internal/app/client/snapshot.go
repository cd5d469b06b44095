package client

import (
	"fmt"
	"time"

	"tradekeeper/internal/domain/ledger"
)

// Export собирает полный слепок хранилища, включая удаленные записи
// и записи, ожидающие синхронизации. Слепок пригоден для переноса
// журнала на другую машину.
func (s *SQLiteStore) Export() (*ledger.Snapshot, error) {
	rows, err := s.db.Query(`
		SELECT id, table_name, payload, version, sync_status, deleted, created_at, updated_at_local
		FROM records
		ORDER BY table_name, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка чтения записей: %v", ledger.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	snapshot := &ledger.Snapshot{
		Tables:     make(map[string][]ledger.Record),
		ExportedAt: time.Now().UTC(),
	}

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		snapshot.Tables[rec.Table] = append(snapshot.Tables[rec.Table], *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: ошибка чтения записей: %v", ledger.ErrStorageUnavailable, err)
	}

	return snapshot, nil
}

// Import замещает содержимое хранилища слепком. Операция атомарна:
// либо применяется весь слепок, либо хранилище остается нетронутым.
// Очередь мутаций и конфликты при импорте очищаются — они описывали
// состояние, которого больше нет.
func (s *SQLiteStore) Import(snapshot *ledger.Snapshot) error {
	if snapshot == nil || snapshot.ExportedAt.IsZero() {
		return fmt.Errorf("%w: отсутствует метка времени экспорта", ledger.ErrMalformedSnapshot)
	}
	if snapshot.Tables == nil {
		return fmt.Errorf("%w: отсутствуют таблицы", ledger.ErrMalformedSnapshot)
	}

	for table, records := range snapshot.Tables {
		if table == "" {
			return fmt.Errorf("%w: пустое имя таблицы", ledger.ErrMalformedSnapshot)
		}
		for i := range records {
			if records[i].ID == "" {
				return fmt.Errorf("%w: запись без идентификатора в таблице %s", ledger.ErrMalformedSnapshot, table)
			}
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: ошибка начала транзакции: %v", ledger.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	for _, query := range []string{
		`DELETE FROM records`,
		`DELETE FROM mutations`,
		`DELETE FROM conflicts`,
	} {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("%w: ошибка очистки хранилища: %v", ledger.ErrStorageUnavailable, err)
		}
	}

	now := time.Now().UTC()
	for table, records := range snapshot.Tables {
		for i := range records {
			rec := records[i]

			createdAt := rec.CreatedAt
			if createdAt.IsZero() {
				createdAt = now
			}
			updatedAt := rec.UpdatedAtLocal
			if updatedAt.IsZero() {
				updatedAt = now
			}
			status := rec.SyncStatus
			if !status.Valid() {
				status = ledger.StatusPending
			}
			version := rec.Version
			if version <= 0 {
				version = 1
			}

			_, err := tx.Exec(`
				INSERT INTO records (id, table_name, payload, version, sync_status, deleted, created_at, updated_at_local)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				rec.ID, table, []byte(rec.Payload), version, status, rec.Deleted,
				createdAt.Format(time.RFC3339Nano), updatedAt.Format(time.RFC3339Nano))
			if err != nil {
				return fmt.Errorf("%w: ошибка вставки записи %s/%s: %v", ledger.ErrStorageUnavailable, table, rec.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: ошибка фиксации импорта: %v", ledger.ErrStorageUnavailable, err)
	}

	return nil
}
