package clock

import "time"

// Clock абстрагирует источник времени, чтобы периодические процессы
// (мониторинг соединения, автосинхронизация) можно было тестировать
// без ожидания реального времени.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
	After(d time.Duration) <-chan time.Time
}

// Ticker — минимальный интерфейс поверх time.Ticker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// System возвращает часы на основе пакета time.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

func (systemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

type systemTicker struct {
	t *time.Ticker
}

func (s *systemTicker) C() <-chan time.Time { return s.t.C }
func (s *systemTicker) Stop()               { s.t.Stop() }
