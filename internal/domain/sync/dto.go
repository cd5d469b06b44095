package sync

import (
	"encoding/json"
	"time"
)

// ApplyRequest — одна операция клиента, применяемая к серверному
// состоянию. Контракт удаленного источника истины.
type ApplyRequest struct {
	Table         string          `json:"table" enum:"trades,positions"`
	OperationType string          `json:"operation_type" enum:"create,update,delete"`
	RecordID      string          `json:"record_id"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	BaseVersion   int             `json:"base_version" minimum:"0"`
}

/// ApplyResponse сообщает результат применения: либо операция принята
// (applied), либо состояние разошлось (conflict) и возвращается
// серверная версия данных.
type ApplyResponse struct {
	Status        string          `json:"status"`
	Error         string          `json:"error,omitempty"`
	Applied       bool            `json:"applied"`
	Conflict      bool            `json:"conflict"`
	ServerPayload json.RawMessage `json:"server_payload,omitempty"`
	ServerVersion int             `json:"server_version,omitempty"`
}

// GetChangesRequest — запрос изменений после указанного времени.
type GetChangesRequest struct {
	LastSyncTime time.Time `json:"last_sync_time" format:"date-time"`
	Limit        int       `json:"limit" minimum:"1" maximum:"1000" default:"100"`
	Offset       int       `json:"offset" minimum:"0" default:"0"`
}

// GetChangesResponse — порция измененных записей.
type GetChangesResponse struct {
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	Records    []ServerRecord `json:"records,omitempty"`
	HasMore    bool           `json:"has_more,omitempty"`
	ServerTime time.Time      `json:"server_time,omitempty"`
}

// GetStatusResponse — статус синхронизации аккаунта.
type GetStatusResponse struct {
	Status string  `json:"status"`
	Error  string  `json:"error,omitempty"`
	Data   *Status `json:"data,omitempty"`
}

// GetConflictsResponse — список неразрешенных конфликтов.
type GetConflictsResponse struct {
	Status string     `json:"status"`
	Error  string     `json:"error,omitempty"`
	Data   []Conflict `json:"data,omitempty"`
}

// ResolveConflictRequest — явное разрешение конфликта.
type ResolveConflictRequest struct {
	Resolution   string          `json:"resolution" enum:"client,server,merged"`
	ResolvedData json.RawMessage `json:"resolved_data,omitempty"`
}

// ResolveConflictResponse — результат разрешения.
type ResolveConflictResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}
