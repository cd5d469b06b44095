package client

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tradekeeper/internal/domain/ledger"
)

// SaveConflict фиксирует расхождение локального и серверного
// состояния. Конфликт живет до явного разрешения.
func (s *SQLiteStore) SaveConflict(c *ledger.ConflictRecord) (string, error) {
	if c.ConflictID == "" {
		c.ConflictID = uuid.NewString()
	}
	if c.Strategy == "" {
		c.Strategy = ledger.ResolveManual
	}
	c.Status = ledger.ConflictOpen
	c.CreatedAt = time.Now().UTC()

	_, err := s.db.Exec(`
		INSERT INTO conflicts (conflict_id, table_name, record_id, local_payload,
		                       remote_payload, remote_version, resolution_strategy, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ConflictID, c.Table, c.RecordID, []byte(c.LocalPayload), []byte(c.RemotePayload),
		c.RemoteVersion, c.Strategy, c.Status, c.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("ошибка сохранения конфликта: %w", err)
	}

	return c.ConflictID, nil
}

// GetConflict возвращает конфликт по идентификатору.
func (s *SQLiteStore) GetConflict(conflictID string) (*ledger.ConflictRecord, error) {
	row := s.db.QueryRow(`
		SELECT conflict_id, table_name, record_id, local_payload, remote_payload,
		       remote_version, resolution_strategy, status, created_at, resolved_at
		FROM conflicts
		WHERE conflict_id = ?
	`, conflictID)

	c, err := scanConflict(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("конфликт не найден: %s", conflictID)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения конфликта: %w", err)
	}

	return c, nil
}

// ListConflicts возвращает конфликты с указанным статусом.
func (s *SQLiteStore) ListConflicts(status ledger.ConflictStatus) ([]*ledger.ConflictRecord, error) {
	rows, err := s.db.Query(`
		SELECT conflict_id, table_name, record_id, local_payload, remote_payload,
		       remote_version, resolution_strategy, status, created_at, resolved_at
		FROM conflicts
		WHERE status = ?
		ORDER BY created_at ASC
	`, status)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения конфликтов: %w", err)
	}
	defer rows.Close()

	var conflicts []*ledger.ConflictRecord
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования конфликта: %w", err)
		}
		conflicts = append(conflicts, c)
	}

	return conflicts, rows.Err()
}

// hasOpenConflict проверяет, ждет ли запись разрешения конфликта.
func (s *SQLiteStore) hasOpenConflict(table, recordID string) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(1) FROM conflicts
		WHERE table_name = ? AND record_id = ? AND status = 'open'
	`, table, recordID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки конфликтов: %w", err)
	}
	return count > 0, nil
}

// MarkConflictResolved закрывает конфликт с выбранной стратегией.
func (s *SQLiteStore) MarkConflictResolved(conflictID string, strategy ledger.ResolutionStrategy) error {
	now := time.Now().UTC()
	res, err := s.db.Exec(`
		UPDATE conflicts SET status = ?, resolution_strategy = ?, resolved_at = ?
		WHERE conflict_id = ? AND status = 'open'
	`, ledger.ConflictResolved, strategy, now.Format(time.RFC3339Nano), conflictID)
	if err != nil {
		return fmt.Errorf("ошибка разрешения конфликта: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("конфликт не найден или уже разрешен: %s", conflictID)
	}

	return nil
}

func scanConflict(row rowScanner) (*ledger.ConflictRecord, error) {
	var c ledger.ConflictRecord
	var localPayload, remotePayload []byte
	var createdAt string
	var resolvedAt sql.NullString

	if err := row.Scan(&c.ConflictID, &c.Table, &c.RecordID, &localPayload, &remotePayload,
		&c.RemoteVersion, &c.Strategy, &c.Status, &createdAt, &resolvedAt); err != nil {
		return nil, err
	}

	c.LocalPayload = localPayload
	c.RemotePayload = remotePayload
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if resolvedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, resolvedAt.String)
		c.ResolvedAt = &t
	}

	return &c, nil
}
