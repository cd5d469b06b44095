package ledger

import "errors"

var (
	// ErrStorageUnavailable — локальное хранилище не удалось открыть.
	// Фатальная ошибка, всплывает из Initialize.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrTransientSync — сетевая ошибка или таймаут, операция будет
	// повторена в пределах бюджета попыток.
	ErrTransientSync = errors.New("transient sync failure")

	// ErrPermanentSync — сервер отклонил операцию, повторов не будет.
	ErrPermanentSync = errors.New("permanent sync failure")

	// ErrConflict — расхождение локального и серверного состояния,
	// требует явного разрешения.
	ErrConflict = errors.New("sync conflict")

	// ErrMalformedSnapshot — импортируемый слепок не прошел валидацию.
	ErrMalformedSnapshot = errors.New("malformed snapshot")

	// ErrNotFound — запись не найдена в локальном хранилище.
	ErrNotFound = errors.New("record not found")

	// ErrOperationTerminal — операция уже в терминальном состоянии.
	ErrOperationTerminal = errors.New("operation is terminal")
)
