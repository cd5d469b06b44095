package clock

import (
	"sync"
	"time"
)

// Fake — детерминированные часы для тестов. Время двигается только
// явным вызовом Advance.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	timers  []*fakeTimer
}

// NewFake создает фейковые часы с указанным начальным временем.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTicker{
		ch:     make(chan time.Time, 1),
		period: d,
		next:   f.now.Add(d),
	}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTimer{
		ch:   make(chan time.Time, 1),
		when: f.now.Add(d),
	}
	f.timers = append(f.timers, t)
	return t.ch
}

// Advance сдвигает время вперед и доставляет все сработавшие тики
// и таймеры.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)

	for _, t := range f.tickers {
		for !t.stopped && !t.next.After(f.now) {
			select {
			case t.ch <- t.next:
			default:
			}
			t.next = t.next.Add(t.period)
		}
	}

	remaining := f.timers[:0]
	for _, t := range f.timers {
		if !t.when.After(f.now) {
			t.ch <- t.when
			continue
		}
		remaining = append(remaining, t)
	}
	f.timers = remaining
}

type fakeTicker struct {
	ch      chan time.Time
	period  time.Duration
	next    time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stopped = true }

type fakeTimer struct {
	ch   chan time.Time
	when time.Time
}
