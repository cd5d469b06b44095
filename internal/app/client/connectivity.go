package client

import (
	"context"
	gosync "sync"
	"time"

	"golang.org/x/exp/slog"

	"tradekeeper/internal/utils/clock"
)

// Prober проверяет доступность сервера
type Prober interface {
	HealthCheck(ctx context.Context) error
}

// ConnectivityState — состояние соединения с сервером
type ConnectivityState int

const (
	StateUnknown ConnectivityState = iota
	StateOffline
	StateOnline
)

func (s ConnectivityState) String() string {
	switch s {
	case StateOnline:
		return "online"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// ConnectivityMonitor периодически проверяет доступность сервера и
// уведомляет подписчиков о смене состояния. Переход offline->online
// порождает ровно одно уведомление, сколько бы проверок подряд ни
// подтвердили доступность.
type ConnectivityMonitor struct {
	prober   Prober
	log      *slog.Logger
	clk      clock.Clock
	interval time.Duration
	timeout  time.Duration

	mu       gosync.Mutex
	state    ConnectivityState
	handlers []func(online bool)
}

func NewConnectivityMonitor(prober Prober, log *slog.Logger, clk clock.Clock, interval time.Duration) *ConnectivityMonitor {
	if clk == nil {
		clk = clock.System()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &ConnectivityMonitor{
		prober:   prober,
		log:      log,
		clk:      clk,
		interval: interval,
		timeout:  3 * time.Second,
		state:    StateUnknown,
	}
}

// Subscribe регистрирует обработчик смены состояния. Обработчики
// вызываются синхронно из горутины монитора.
func (m *ConnectivityMonitor) Subscribe(handler func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

// State возвращает последнее известное состояние
func (m *ConnectivityMonitor) State() ConnectivityState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Run выполняет проверки до отмены контекста. Первая проверка
// выполняется сразу, дальше по тикеру.
func (m *ConnectivityMonitor) Run(ctx context.Context) {
	m.log.Info("Запуск мониторинга соединения", "interval", m.interval)

	m.probe(ctx)

	ticker := m.clk.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("Мониторинг соединения остановлен")
			return
		case <-ticker.C():
			m.probe(ctx)
		}
	}
}

func (m *ConnectivityMonitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.prober.HealthCheck(probeCtx)

	next := StateOnline
	if err != nil {
		next = StateOffline
	}

	m.mu.Lock()
	prev := m.state
	m.state = next
	handlers := make([]func(online bool), len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	// Уведомляем только при смене состояния
	if prev == next {
		return
	}

	m.log.Info("Смена состояния соединения",
		"from", prev.String(),
		"to", next.String(),
	)

	// Первый результат после запуска тоже считается переходом:
	// подписчики узнают исходное состояние
	online := next == StateOnline
	for _, h := range handlers {
		h(online)
	}
}
