package ledger

// SyncStatus — статус синхронизации локальной записи.
type SyncStatus string

const (
	StatusPending SyncStatus = "pending"
	StatusSynced  SyncStatus = "synced"
	StatusFailed  SyncStatus = "failed"
)

// OperationType — тип мутации, попадающей в очередь.
type OperationType string

const (
	OpCreate OperationType = "create"
	OpUpdate OperationType = "update"
	OpDelete OperationType = "delete"
)

// Outcome — результат попытки применения операции на сервере.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeTransient Outcome = "transient_failure"
	OutcomePermanent Outcome = "permanent_failure"
)

// ResolutionStrategy — стратегия разрешения конфликта. Конфликты
// закрываются только явным решением пользователя, автоматических
// стратегий нет.
type ResolutionStrategy string

const (
	ResolveManual ResolutionStrategy = "manual"
)

// ConflictStatus — состояние конфликта.
type ConflictStatus string

const (
	ConflictOpen     ConflictStatus = "open"
	ConflictResolved ConflictStatus = "resolved"
)

// Известные таблицы локального хранилища.
const (
	TableTrades    = "trades"
	TablePositions = "positions"
	TableQuotes    = "quotes" // локальный кэш котировок, не синхронизируется
)

// IsTerminal сообщает, достигла ли операция терминального состояния.
// Терминальные операции никогда не обрабатываются повторно.
func (s SyncStatus) IsTerminal() bool {
	return s == StatusSynced || s == StatusFailed
}

// Valid проверяет допустимость статуса.
func (s SyncStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSynced, StatusFailed:
		return true
	}
	return false
}

// Valid проверяет допустимость типа операции.
func (t OperationType) Valid() bool {
	switch t {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}
