package client

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradekeeper/internal/utils/clock"
)

// fakeProber — управляемая проверка доступности сервера.
type fakeProber struct {
	mu    gosync.Mutex
	err   error
	calls chan struct{}
}

func newFakeProber(err error) *fakeProber {
	return &fakeProber{err: err, calls: make(chan struct{}, 16)}
}

func (p *fakeProber) HealthCheck(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case p.calls <- struct{}{}:
	default:
	}
	return p.err
}

func (p *fakeProber) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func TestConnectivityMonitor_Transitions(t *testing.T) {
	prober := newFakeProber(errors.New("нет соединения"))
	monitor := NewConnectivityMonitor(prober, discardLogger(), clock.NewFake(time.Now()), time.Second)

	var notifications []bool
	monitor.Subscribe(func(online bool) {
		notifications = append(notifications, online)
	})

	ctx := context.Background()

	assert.Equal(t, StateUnknown, monitor.State())

	// Первый результат считается переходом
	monitor.probe(ctx)
	assert.Equal(t, StateOffline, monitor.State())
	assert.Equal(t, []bool{false}, notifications)

	// Повторное подтверждение состояния уведомлений не порождает
	monitor.probe(ctx)
	monitor.probe(ctx)
	assert.Equal(t, []bool{false}, notifications)

	// Восстановление соединения — ровно одно уведомление
	prober.setErr(nil)
	monitor.probe(ctx)
	monitor.probe(ctx)
	assert.Equal(t, StateOnline, monitor.State())
	assert.Equal(t, []bool{false, true}, notifications)

	// Потеря соединения
	prober.setErr(errors.New("таймаут"))
	monitor.probe(ctx)
	assert.Equal(t, []bool{false, true, false}, notifications)
}

func TestConnectivityMonitor_Run(t *testing.T) {
	prober := newFakeProber(nil)
	clk := clock.NewFake(time.Now())
	monitor := NewConnectivityMonitor(prober, discardLogger(), clk, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		monitor.Run(ctx)
		close(stopped)
	}()

	// Первая проверка выполняется сразу
	select {
	case <-prober.calls:
	case <-time.After(time.Second):
		t.Fatal("первая проверка не выполнена")
	}

	// Следующие проверки идут по тикеру
	waitProbe := func() {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			clk.Advance(time.Second)
			select {
			case <-prober.calls:
				return
			case <-deadline:
				t.Fatal("проверка по тикеру не выполнена")
			case <-time.After(5 * time.Millisecond):
			}
		}
	}
	waitProbe()

	require.Equal(t, StateOnline, monitor.State())

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("мониторинг не остановился")
	}
}

func TestConnectivityState_String(t *testing.T) {
	assert.Equal(t, "online", StateOnline.String())
	assert.Equal(t, "offline", StateOffline.String())
	assert.Equal(t, "unknown", StateUnknown.String())
}
