package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/newthinker/buddy/internal/command"
	"github.com/newthinker/buddy/internal/metrics"
	"github.com/newthinker/buddy/internal/notifier"
	"github.com/newthinker/buddy/internal/report"
	"github.com/newthinker/buddy/internal/router"
	"github.com/newthinker/buddy/internal/storage/history"
	"go.uber.org/zap"
)

// App is the notification service: it owns the router and its dedup cache,
// the command dispatcher and the optional periodic run-all. The HTTP service
// is started and stopped separately and only calls into it.
type App struct {
	logger     *zap.Logger
	runner     *Runner
	router     *router.Router
	notifiers  *notifier.Registry
	dispatcher *command.Dispatcher
	history    history.Store
	metrics    *metrics.Registry

	name     string
	interval time.Duration

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	lastRun time.Time
}

// New creates a new App instance
func New(runner *Runner, rt *router.Router, dispatcher *command.Dispatcher, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		logger:     logger,
		runner:     runner,
		router:     rt,
		dispatcher: dispatcher,
		history:    history.NewMemoryStore(0),
		name:       "buddy",
	}
}

// SetName sets the bot name used in the startup announcement.
func (a *App) SetName(name string) {
	if name == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.name = name
}

// SetInterval sets the run-all interval. Zero disables the periodic run.
func (a *App) SetInterval(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.interval = d
}

// Start runs the notification service until ctx is done or Stop is called
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app already running")
	}
	a.running = true

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	interval := a.interval
	name := a.name
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	a.logger.Info("buddy starting",
		zap.Int("tickers", len(a.runner.Defaults().Tickers)),
		zap.Duration("interval", interval),
	)

	if a.router != nil {
		a.router.StartCleanupRoutine(ctx, 0)
		started := time.Now().UTC()
		a.router.Reply("startup:"+started.Format(time.RFC3339Nano), name+" has successfully logged in")
	}

	if interval <= 0 {
		<-ctx.Done()
		a.logger.Info("buddy shutting down")
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("buddy shutting down")
			return ctx.Err()
		case <-ticker.C:
			a.RunOnce(ctx)
		}
	}
}

// Stop stops the service loop
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

// RunOnce runs every default ticker once.
func (a *App) RunOnce(ctx context.Context) ([]report.Report, error) {
	reports, err := a.runner.RunAll(ctx)

	a.mu.Lock()
	a.lastRun = time.Now()
	a.mu.Unlock()

	if err != nil {
		a.logger.Warn("run-all finished with errors", zap.Int("reports", len(reports)), zap.Error(err))
	} else {
		a.logger.Info("run-all finished", zap.Int("reports", len(reports)))
	}
	return reports, err
}

// Runner returns the backtest runner.
func (a *App) Runner() *Runner { return a.runner }

// Router returns the report router.
func (a *App) Router() *router.Router { return a.router }

// Dispatcher returns the command dispatcher.
func (a *App) Dispatcher() *command.Dispatcher { return a.dispatcher }

// History returns the search history store.
func (a *App) History() history.Store { return a.history }

// Metrics returns the metrics registry, nil when disabled.
func (a *App) Metrics() *metrics.Registry { return a.metrics }

// Notifiers returns the notifier registry.
func (a *App) Notifiers() *notifier.Registry { return a.notifiers }

// GetStats returns application statistics
func (a *App) GetStats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := map[string]any{
		"running":    a.running,
		"tickers":    len(a.runner.Defaults().Tickers),
		"strategies": len(a.runner.Engine().Strategies().List()),
		"interval":   a.interval.String(),
	}
	if !a.lastRun.IsZero() {
		stats["last_run"] = a.lastRun.UTC().Format(time.RFC3339)
	}
	if a.notifiers != nil {
		stats["notifiers"] = a.notifiers.Len()
	}
	if a.router != nil {
		stats["router"] = a.router.GetStats()
	}
	return stats
}
