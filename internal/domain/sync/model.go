package sync

import (
	"encoding/json"
	"time"
)

// ServerRecord — запись на стороне сервера (источника истины).
type ServerRecord struct {
	ID        string          `json:"id"`
	AccountID int             `json:"account_id"`
	Table     string          `json:"table"`
	Payload   json.RawMessage `json:"payload"`
	Version   int             `json:"version"`
	Deleted   bool            `json:"deleted"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Conflict — серверная запись о расхождении версий.
type Conflict struct {
	ID            string          `json:"id"`
	AccountID     int             `json:"account_id"`
	Table         string          `json:"table"`
	RecordID      string          `json:"record_id"`
	ClientPayload json.RawMessage `json:"client_payload"`
	ServerPayload json.RawMessage `json:"server_payload"`
	BaseVersion   int             `json:"base_version"`
	ServerVersion int             `json:"server_version"`
	Resolved      bool            `json:"resolved"`
	Resolution    string          `json:"resolution,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
}

// Status — состояние синхронизации аккаунта.
type Status struct {
	AccountID     int       `json:"account_id"`
	LastSyncTime  time.Time `json:"last_sync_time"`
	TotalRecords  int       `json:"total_records"`
	OpenConflicts int       `json:"open_conflicts"`
	SyncVersion   int64     `json:"sync_version"`
}

// ServiceConfig — настройки сервиса синхронизации.
type ServiceConfig struct {
	BatchSize      int `json:"batch_size"`
	MaxSyncRecords int `json:"max_sync_records"`
}
