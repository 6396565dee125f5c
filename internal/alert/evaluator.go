package alert

import (
	"sync"
	"time"
)

// DefaultCooldown is the minimum gap between two firings of the same rule for
// the same subject.
const DefaultCooldown = 5 * time.Minute

// Notifier interface for sending alerts.
type Notifier interface {
	Name() string
	Notify(msg string) error
}

// Evaluator evaluates alert rules per subject and sends notifications.
type Evaluator struct {
	rules     []Rule
	notifiers []Notifier
	cooldown  time.Duration

	// keyed by subject + "/" + rule name
	pending   map[string]time.Time
	lastFired map[string]time.Time

	now func() time.Time

	mu sync.Mutex
}

// NewEvaluator creates a new alert evaluator for rules.
func NewEvaluator(rules []Rule, notifiers ...Notifier) *Evaluator {
	return &Evaluator{
		rules:     rules,
		notifiers: notifiers,
		cooldown:  DefaultCooldown,
		pending:   make(map[string]time.Time),
		lastFired: make(map[string]time.Time),
		now:       time.Now,
	}
}

// SetCooldown sets the cooldown duration between alerts. Non-positive values
// keep the default.
func (e *Evaluator) SetCooldown(d time.Duration) {
	if d <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cooldown = d
}

// Rules returns the configured rules.
func (e *Evaluator) Rules() []Rule {
	return e.rules
}

// Evaluate evaluates a single rule for subject and fires the notifiers when
// it triggers. It returns the message sent, or "" when nothing fired.
func (e *Evaluator) Evaluate(subject string, rule Rule, metrics map[string]float64) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	key := subject + "/" + rule.Name

	if !rule.Evaluate(metrics) {
		delete(e.pending, key)
		return ""
	}

	if rule.For > 0 {
		pendingSince, isPending := e.pending[key]
		if !isPending {
			e.pending[key] = now
			return ""
		}
		if now.Sub(pendingSince) < rule.For {
			return ""
		}
	}

	if lastFired, ok := e.lastFired[key]; ok && now.Sub(lastFired) < e.cooldown {
		return ""
	}

	msg := rule.FormatMessage(subject, metrics)
	for _, n := range e.notifiers {
		_ = n.Notify(msg)
	}

	e.lastFired[key] = now
	delete(e.pending, key)
	return msg
}

// EvaluateAll evaluates every rule for subject and returns the messages sent.
func (e *Evaluator) EvaluateAll(subject string, metrics map[string]float64) []string {
	var fired []string
	for _, rule := range e.rules {
		if msg := e.Evaluate(subject, rule, metrics); msg != "" {
			fired = append(fired, msg)
		}
	}
	return fired
}

// advanceTime is for testing - advances the internal clock.
func (e *Evaluator) advanceTime(d time.Duration) {
	oldNow := e.now
	e.now = func() time.Time {
		return oldNow().Add(d)
	}
}
