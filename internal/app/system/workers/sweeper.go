// internal/app/system/workers/sweeper.go
package workers

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// SweepFunc drops expired in-memory state and reports how many entries it
// removed.
type SweepFunc func() int

// Sweeper is a background worker that periodically prunes in-memory
// lockout and rate-limit state so idle keys do not accumulate.
type Sweeper struct {
	tasks    map[string]SweepFunc
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSweeper creates a sweeper that runs every task once per interval.
func NewSweeper(logger *zap.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		tasks:    make(map[string]SweepFunc),
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Add registers a named task. Call before Start.
func (w *Sweeper) Add(name string, fn SweepFunc) {
	w.tasks[name] = fn
}

// Start begins the background sweep loop.
func (w *Sweeper) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("sweeper started",
		zap.Duration("interval", w.interval),
		zap.Int("tasks", len(w.tasks)))
}

// Stop signals the worker to stop and waits for it to finish. Safe to call
// more than once.
func (w *Sweeper) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.log.Info("sweeper stopped")
}

// RunOnce sweeps every task immediately and returns the total removed.
func (w *Sweeper) RunOnce() int {
	total := 0
	for name, fn := range w.tasks {
		n := fn()
		if n > 0 {
			w.log.Debug("swept expired entries", zap.String("task", name), zap.Int("count", n))
		}
		total += n
	}
	return total
}

func (w *Sweeper) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce()
		}
	}
}
