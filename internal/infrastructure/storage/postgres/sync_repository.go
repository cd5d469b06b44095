package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"

	"tradekeeper/internal/domain/sync"
)

// SyncRepository — реализация репозитория синхронизации для PostgreSQL
type SyncRepository struct {
	db  *Storage
	log *slog.Logger
}

// NewSyncRepository создает новый репозиторий синхронизации
func NewSyncRepository(db *Storage, log *slog.Logger) *SyncRepository {
	return &SyncRepository{
		db:  db,
		log: log,
	}
}

// GetRecord возвращает запись по таблице и идентификатору
func (r *SyncRepository) GetRecord(ctx context.Context, accountID int, table, recordID string) (*sync.ServerRecord, error) {
	query := `
		SELECT id, user_id, table_name, payload, version, deleted, created_at, updated_at
		FROM records
		WHERE user_id = $1 AND table_name = $2 AND id = $3
	`

	var rec sync.ServerRecord
	err := r.db.Pool().QueryRow(ctx, query, accountID, table, recordID).Scan(
		&rec.ID,
		&rec.AccountID,
		&rec.Table,
		&rec.Payload,
		&rec.Version,
		&rec.Deleted,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sync.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return &rec, nil
}

// SaveRecord сохраняет запись. Запись с меньшей версией не
// перезаписывает более новую.
func (r *SyncRepository) SaveRecord(ctx context.Context, rec *sync.ServerRecord) error {
	query := `
		INSERT INTO records (id, user_id, table_name, payload, version, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, table_name, id) DO UPDATE SET
			payload = EXCLUDED.payload,
			version = EXCLUDED.version,
			deleted = EXCLUDED.deleted,
			updated_at = EXCLUDED.updated_at
		WHERE records.version < EXCLUDED.version
	`

	_, err := r.db.Pool().Exec(ctx, query,
		rec.ID,
		rec.AccountID,
		rec.Table,
		rec.Payload,
		rec.Version,
		rec.Deleted,
		rec.CreatedAt,
		rec.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	return nil
}

// ListChangedSince возвращает записи, измененные после указанного времени.
// Удаленные записи включаются: клиент должен узнать об удалении.
func (r *SyncRepository) ListChangedSince(ctx context.Context, accountID int, since time.Time, limit, offset int) ([]sync.ServerRecord, error) {
	query := `
		SELECT id, user_id, table_name, payload, version, deleted, created_at, updated_at
		FROM records
		WHERE user_id = $1 AND updated_at > $2
		ORDER BY updated_at ASC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.Pool().Query(ctx, query, accountID, since, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query changed records: %w", err)
	}
	defer rows.Close()

	var records []sync.ServerRecord
	for rows.Next() {
		var rec sync.ServerRecord
		err := rows.Scan(
			&rec.ID,
			&rec.AccountID,
			&rec.Table,
			&rec.Payload,
			&rec.Version,
			&rec.Deleted,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// CountRecords возвращает число неудаленных записей пользователя
func (r *SyncRepository) CountRecords(ctx context.Context, accountID int) (int, error) {
	var total int
	err := r.db.Pool().QueryRow(ctx,
		`SELECT count(*) FROM records WHERE user_id = $1 AND deleted = false`,
		accountID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return total, nil
}

// SaveConflict сохраняет конфликт
func (r *SyncRepository) SaveConflict(ctx context.Context, c *sync.Conflict) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	query := `
		INSERT INTO sync_conflicts
			(id, user_id, table_name, record_id, client_payload, server_payload,
			 base_version, server_version, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		c.ID,
		c.AccountID,
		c.Table,
		c.RecordID,
		c.ClientPayload,
		c.ServerPayload,
		c.BaseVersion,
		c.ServerVersion,
		c.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save conflict: %w", err)
	}

	return nil
}

// ListOpenConflicts возвращает неразрешенные конфликты пользователя
func (r *SyncRepository) ListOpenConflicts(ctx context.Context, accountID int) ([]sync.Conflict, error) {
	query := `
		SELECT id, user_id, table_name, record_id, client_payload, server_payload,
		       base_version, server_version, resolved, resolution, created_at, resolved_at
		FROM sync_conflicts
		WHERE user_id = $1 AND resolved = false
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []sync.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, *c)
	}

	return conflicts, rows.Err()
}

// GetConflictByID возвращает конфликт по ID
func (r *SyncRepository) GetConflictByID(ctx context.Context, conflictID string) (*sync.Conflict, error) {
	query := `
		SELECT id, user_id, table_name, record_id, client_payload, server_payload,
		       base_version, server_version, resolved, resolution, created_at, resolved_at
		FROM sync_conflicts
		WHERE id = $1
	`

	row := r.db.Pool().QueryRow(ctx, query, conflictID)
	c, err := scanConflict(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sync.ErrConflictNotFound
		}
		return nil, err
	}

	return c, nil
}

// ResolveConflict помечает конфликт разрешенным
func (r *SyncRepository) ResolveConflict(ctx context.Context, conflictID, resolution string, resolvedData []byte) error {
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE sync_conflicts
		SET resolved = true, resolution = $1, resolved_data = $2, resolved_at = $3
		WHERE id = $4 AND resolved = false
	`, resolution, resolvedData, time.Now(), conflictID)
	if err != nil {
		return fmt.Errorf("failed to resolve conflict: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sync.ErrConflictNotFound
	}

	return nil
}

// GetStatus возвращает статус синхронизации пользователя
func (r *SyncRepository) GetStatus(ctx context.Context, accountID int) (*sync.Status, error) {
	query := `
		SELECT user_id, last_sync_time, sync_version
		FROM sync_status
		WHERE user_id = $1
	`

	var status sync.Status
	var lastSyncTime *time.Time

	err := r.db.Pool().QueryRow(ctx, query, accountID).Scan(
		&status.AccountID,
		&lastSyncTime,
		&status.SyncVersion,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Пользователь еще не синхронизировался
			return &sync.Status{AccountID: accountID}, nil
		}
		return nil, fmt.Errorf("failed to get sync status: %w", err)
	}

	if lastSyncTime != nil {
		status.LastSyncTime = *lastSyncTime
	}

	return &status, nil
}

// TouchStatus фиксирует момент последней синхронизации
func (r *SyncRepository) TouchStatus(ctx context.Context, accountID int, at time.Time) error {
	query := `
		INSERT INTO sync_status (user_id, last_sync_time, sync_version)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id) DO UPDATE SET
			last_sync_time = EXCLUDED.last_sync_time,
			sync_version = sync_status.sync_version + 1
	`

	_, err := r.db.Pool().Exec(ctx, query, accountID, at)
	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}

	return nil
}

func scanConflict(row pgx.Row) (*sync.Conflict, error) {
	var c sync.Conflict
	var resolution *string
	var resolvedAt *time.Time

	err := row.Scan(
		&c.ID,
		&c.AccountID,
		&c.Table,
		&c.RecordID,
		&c.ClientPayload,
		&c.ServerPayload,
		&c.BaseVersion,
		&c.ServerVersion,
		&c.Resolved,
		&resolution,
		&c.CreatedAt,
		&resolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("failed to scan conflict: %w", err)
	}

	if resolution != nil {
		c.Resolution = *resolution
	}
	c.ResolvedAt = resolvedAt

	return &c, nil
}
