package ledger

import (
	"encoding/json"
	"time"
)

// Record — локальная запись домена (сделка, позиция, котировка).
// Владелец — локальное хранилище; статус синхронизации меняет только
// движок синхронизации.
type Record struct {
	ID             string          `json:"id"`
	Table          string          `json:"table"`
	Payload        json.RawMessage `json:"payload"`
	Version        int             `json:"version"`
	SyncStatus     SyncStatus      `json:"sync_status"`
	Deleted        bool            `json:"deleted"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAtLocal time.Time       `json:"updated_at_local"`
}

// MutationOperation — долговечная запись об одном локальном изменении,
// ожидающем применения на сервере.
type MutationOperation struct {
	OperationID string          `json:"operation_id"`
	Seq         int64           `json:"seq"`
	Type        OperationType   `json:"operation_type"`
	Table       string          `json:"table"`
	RecordID    string          `json:"record_id"`
	Payload     json.RawMessage `json:"payload"`
	BaseVersion int             `json:"base_version"`
	RetryCount  int             `json:"retry_count"`
	MaxRetries  int             `json:"max_retries"`
	Status      SyncStatus      `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ConflictRecord фиксирует расхождение локального и серверного
// состояния одной записи. Разрешается только явным действием.
type ConflictRecord struct {
	ConflictID    string             `json:"conflict_id"`
	Table         string             `json:"table"`
	RecordID      string             `json:"record_id"`
	LocalPayload  json.RawMessage    `json:"local_payload"`
	RemotePayload json.RawMessage    `json:"remote_payload"`
	RemoteVersion int                `json:"remote_version"`
	Strategy      ResolutionStrategy `json:"resolution_strategy"`
	Status        ConflictStatus     `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	ResolvedAt    *time.Time         `json:"resolved_at,omitempty"`
}

// Snapshot — полный слепок хранилища для экспорта/импорта.
type Snapshot struct {
	Tables     map[string][]Record `json:"tables"`
	ExportedAt time.Time           `json:"exported_at"`
}

// StoreStats — счетчики для операционных панелей.
type StoreStats struct {
	Tables        map[string]int `json:"tables"`
	PendingSync   int            `json:"pending_sync"`
	OpenConflicts int            `json:"open_conflicts"`
}

// RecordFilter — фильтр выборки записей.
type RecordFilter struct {
	SyncStatus  SyncStatus
	ShowDeleted bool
	Limit       int
	Offset      int
}

// PassResult — сводка одного прохода синхронизации.
// Сам проход никогда не возвращает ошибку: все сбои изолированы
// в операциях.
type PassResult struct {
	Succeeded  int           `json:"succeeded"`
	Retried    int           `json:"retried"`
	Failed     int           `json:"failed"`
	Conflicted int           `json:"conflicted"`
	Downloaded int           `json:"downloaded"`
	StartTime  time.Time     `json:"start_time"`
	Duration   time.Duration `json:"duration"`
}
