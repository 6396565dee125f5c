// Package router delivers reports and replies to the notifier registry,
// dropping messages already delivered within the dedup window.
package router

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/newthinker/buddy/internal/metrics"
	"github.com/newthinker/buddy/internal/notifier"
	"github.com/newthinker/buddy/internal/report"
	"go.uber.org/zap"
)

// Config holds router configuration
type Config struct {
	DedupTTL  time.Duration `mapstructure:"dedup_ttl"`
	DedupSize int           `mapstructure:"dedup_size"`
}

// DefaultConfig returns default router configuration
func DefaultConfig() Config {
	return Config{
		DedupTTL:  10 * time.Second,
		DedupSize: 1024,
	}
}

// Router routes reports to notifiers with deduplication
type Router struct {
	cfg      Config
	registry *notifier.Registry
	metrics  *metrics.Registry
	logger   *zap.Logger
	seen     *cache
}

// New creates a new router. A nil registry drops every message after dedup.
func New(cfg Config, registry *notifier.Registry, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = def.DedupTTL
	}
	if cfg.DedupSize <= 0 {
		cfg.DedupSize = def.DedupSize
	}
	return &Router{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
		seen:     newCache(cfg.DedupSize, cfg.DedupTTL),
	}
}

// SetMetrics enables delivery counters
func (r *Router) SetMetrics(m *metrics.Registry) {
	r.metrics = m
}

// Route delivers rep unless a report with the same id went out within the
// dedup window. Delivery failures are logged and counted, never retried.
// It reports whether the message was handed to the notifiers.
func (r *Router) Route(rep report.Report) bool {
	key := rep.ID
	if key == "" {
		key = rep.Text()
	}
	if !r.seen.Add(key) {
		r.duplicate(key)
		return false
	}
	if r.registry == nil {
		return true
	}

	errs := r.registry.NotifyAll(rep)
	r.record(errs)
	r.logger.Info("report routed",
		zap.String("ticker", rep.Ticker),
		zap.String("signal", rep.LastSignal.Label()),
		zap.Int("notifiers", r.registry.Len()),
		zap.Int("errors", len(errs)),
	)
	return true
}

// Reply delivers a free-form message keyed by id, typically the id of the
// chat message being answered.
func (r *Router) Reply(id, text string) bool {
	if id == "" {
		id = text
	}
	if !r.seen.Add(id) {
		r.duplicate(id)
		return false
	}
	if r.registry == nil {
		return true
	}

	for _, chunk := range report.Split(text, report.MaxMessageLength) {
		r.record(r.registry.BroadcastText(chunk))
	}
	return true
}

// Seen marks id as handled and reports whether it already was.
func (r *Router) Seen(id string) bool {
	if r.seen.Add(id) {
		return false
	}
	r.duplicate(id)
	return true
}

func (r *Router) duplicate(key string) {
	r.logger.Debug("duplicate message dropped", zap.String("key", key))
	if r.metrics != nil {
		r.metrics.RecordDuplicate()
	}
}

func (r *Router) record(errs map[string]error) {
	for name, err := range errs {
		r.logger.Error("notifier failed",
			zap.String("notifier", name),
			zap.Error(err),
		)
	}
	if r.metrics == nil || r.registry == nil {
		return
	}
	for _, n := range r.registry.GetAll() {
		status := "success"
		if _, failed := errs[n.Name()]; failed {
			status = "error"
		}
		r.metrics.RecordNotification(n.Name(), status)
	}
}

// CleanupExpired removes entries older than the dedup window.
func (r *Router) CleanupExpired() int {
	return r.seen.Purge()
}

// StartCleanupRoutine starts a background goroutine that periodically purges
// the dedup cache until ctx is done.
func (r *Router) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.cfg.DedupTTL
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := r.CleanupExpired()
				if removed > 0 {
					r.logger.Debug("cleaned up dedup entries", zap.Int("removed", removed))
				}
			}
		}
	}()
}

// GetStats returns router statistics
func (r *Router) GetStats() map[string]any {
	return map[string]any{
		"dedup_entries":     r.seen.Len(),
		"dedup_size":        r.cfg.DedupSize,
		"dedup_ttl_seconds": r.cfg.DedupTTL.Seconds(),
	}
}

// cache is a bounded set of keys with per-entry expiry. When full, the
// oldest entry is evicted.
type cache struct {
	mu      sync.Mutex
	size    int
	ttl     time.Duration
	entries map[string]time.Time
	order   []string
	now     func() time.Time
}

func newCache(size int, ttl time.Duration) *cache {
	return &cache{
		size:    size,
		ttl:     ttl,
		entries: make(map[string]time.Time, size),
		now:     time.Now,
	}
}

// Add inserts key and returns false when it is already present and unexpired.
func (c *cache) Add(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	at, ok := c.entries[key]
	if ok && now.Sub(at) < c.ttl {
		return false
	}
	if ok {
		// refreshed keys move to the tail so eviction stays oldest first
		c.order = slices.DeleteFunc(c.order, func(k string) bool { return k == key })
	} else {
		for len(c.entries) >= c.size && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
	}
	c.order = append(c.order, key)
	c.entries[key] = now
	return true
}

// Purge drops expired entries and returns how many were removed.
func (c *cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	kept := c.order[:0]
	removed := 0
	for _, key := range c.order {
		if now.Sub(c.entries[key]) >= c.ttl {
			delete(c.entries, key)
			removed++
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
	return removed
}

func (c *cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
