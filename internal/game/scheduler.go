package game

import (
	"sync"
	"time"
)

// Scheduler runs the one authoritative timer per running lobby.
type Scheduler struct {
	interval time.Duration

	mu     sync.Mutex
	timers map[string]chan struct{}
	wg     sync.WaitGroup
}

func NewScheduler(interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{interval: interval, timers: make(map[string]chan struct{})}
}

// Start ticks s until Stop is called or the game is over. Starting an
// already running lobby is a no-op.
func (sc *Scheduler) Start(s *Session) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if _, ok := sc.timers[s.Code()]; ok {
		return
	}
	stop := make(chan struct{})
	sc.timers[s.Code()] = stop
	sc.wg.Add(1)
	go sc.run(s, stop)
}

func (sc *Scheduler) run(s *Session, stop chan struct{}) {
	defer sc.wg.Done()
	t := time.NewTicker(sc.interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			s.Tick()
			if s.Phase() == PhaseGameOver {
				sc.Stop(s.Code())
				return
			}
		}
	}
}

func (sc *Scheduler) Stop(code string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if stop, ok := sc.timers[code]; ok {
		close(stop)
		delete(sc.timers, code)
	}
}

func (sc *Scheduler) Running(code string) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	_, ok := sc.timers[code]
	return ok
}

// Close stops every timer and waits for the goroutines to exit.
func (sc *Scheduler) Close() {
	sc.mu.Lock()
	for code, stop := range sc.timers {
		close(stop)
		delete(sc.timers, code)
	}
	sc.mu.Unlock()
	sc.wg.Wait()
}
