// internal/app/system/workers/cascaderesume.go
package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Resumer completes journaled cascades left pending.
type Resumer interface {
	Resume(ctx context.Context, grace time.Duration, batch int64) (int, error)
}

// resumeBatch caps how many entries one tick processes.
const resumeBatch = 50

// CascadeResume is a background worker that rolls forward interrupted
// cascading soft-deletes.
type CascadeResume struct {
	engine   Resumer
	log      *zap.Logger
	interval time.Duration
	grace    time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewCascadeResume creates a new resume worker.
//
// Parameters:
//   - engine: the cascade engine
//   - logger: zap logger for logging
//   - interval: how often to look for pending entries (e.g., 1 minute)
//   - grace: how long an entry must sit untouched before it is resumed, so
//     cascades still in flight are left alone
func NewCascadeResume(engine Resumer, logger *zap.Logger, interval, grace time.Duration) *CascadeResume {
	return &CascadeResume{
		engine:   engine,
		log:      logger,
		interval: interval,
		grace:    grace,
		stopCh:   make(chan struct{}),
	}
}

// Start runs one pass immediately, then begins the background loop.
func (w *CascadeResume) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("cascade resume worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("grace", w.grace))
}

// Stop signals the worker to stop and waits for it to finish. Safe to call
// more than once.
func (w *CascadeResume) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		w.log.Info("cascade resume worker stopped")
	})
}

func (w *CascadeResume) run() {
	defer w.wg.Done()

	w.resume()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.resume()
		}
	}
}

func (w *CascadeResume) resume() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := w.engine.Resume(ctx, w.grace, resumeBatch)
	if err != nil {
		w.log.Error("failed to resume pending cascades", zap.Error(err))
		return
	}

	if count > 0 {
		w.log.Info("resumed pending cascades", zap.Int("count", count))
	}
}
