package sync

import (
	"context"
	"time"
)

// Repository — хранилище серверного состояния синхронизации.
type Repository interface {
	// Записи
	GetRecord(ctx context.Context, accountID int, table, recordID string) (*ServerRecord, error)
	SaveRecord(ctx context.Context, rec *ServerRecord) error
	ListChangedSince(ctx context.Context, accountID int, since time.Time, limit, offset int) ([]ServerRecord, error)
	CountRecords(ctx context.Context, accountID int) (int, error)

	// Конфликты
	SaveConflict(ctx context.Context, c *Conflict) error
	ListOpenConflicts(ctx context.Context, accountID int) ([]Conflict, error)
	GetConflictByID(ctx context.Context, conflictID string) (*Conflict, error)
	ResolveConflict(ctx context.Context, conflictID, resolution string, resolvedData []byte) error

	// Статус
	GetStatus(ctx context.Context, accountID int) (*Status, error)
	TouchStatus(ctx context.Context, accountID int, at time.Time) error
}
