package alert

import (
	"testing"
	"time"
)

type mockNotifier struct {
	sent []string
}

func (m *mockNotifier) Name() string { return "mock" }
func (m *mockNotifier) Notify(msg string) error {
	m.sent = append(m.sent, msg)
	return nil
}

func TestEvaluator_EvaluateRule(t *testing.T) {
	notifier := &mockNotifier{}
	rule := Rule{
		Name:     "deep_drawdown",
		Expr:     "max_drawdown > 20",
		For:      time.Minute,
		Severity: "warning",
		Message:  "Drawdown is deep",
	}
	eval := NewEvaluator([]Rule{rule}, notifier)

	metrics := map[string]float64{MetricMaxDrawdown: 35}
	eval.Evaluate("NVDA", rule, metrics)

	// First evaluation starts the pending timer, doesn't fire
	if len(notifier.sent) != 0 {
		t.Errorf("expected no notification on first eval, got %d", len(notifier.sent))
	}

	eval.advanceTime(2 * time.Minute)
	msg := eval.Evaluate("NVDA", rule, metrics)

	if len(notifier.sent) != 1 {
		t.Fatalf("expected 1 notification after duration, got %d", len(notifier.sent))
	}
	if msg != notifier.sent[0] {
		t.Errorf("returned %q, sent %q", msg, notifier.sent[0])
	}
}

func TestEvaluator_Cooldown(t *testing.T) {
	notifier := &mockNotifier{}
	rule := Rule{Name: "loss", Expr: "rate < 0", Severity: "critical", Message: "Losing money"}
	eval := NewEvaluator([]Rule{rule}, notifier)
	eval.SetCooldown(5 * time.Minute)

	metrics := map[string]float64{MetricRate: -12.5}
	eval.Evaluate("NVDA", rule, metrics)
	eval.Evaluate("NVDA", rule, metrics)
	eval.Evaluate("NVDA", rule, metrics)

	if len(notifier.sent) != 1 {
		t.Errorf("expected 1 notification due to cooldown, got %d", len(notifier.sent))
	}

	eval.advanceTime(6 * time.Minute)
	eval.Evaluate("NVDA", rule, metrics)
	if len(notifier.sent) != 2 {
		t.Errorf("expected a second notification after cooldown, got %d", len(notifier.sent))
	}
}

func TestEvaluator_SubjectsAreIndependent(t *testing.T) {
	notifier := &mockNotifier{}
	rule := Rule{Name: "loss", Expr: "rate < 0", Message: "Losing money"}
	eval := NewEvaluator([]Rule{rule}, notifier)

	metrics := map[string]float64{MetricRate: -1}
	eval.Evaluate("NVDA", rule, metrics)
	eval.Evaluate("QQQ", rule, metrics)

	if len(notifier.sent) != 2 {
		t.Errorf("expected one notification per subject, got %d", len(notifier.sent))
	}
}

func TestEvaluator_RuleNotTriggered(t *testing.T) {
	notifier := &mockNotifier{}
	rule := Rule{Name: "loss", Expr: "rate < 0", Severity: "warning", Message: "Losing money"}
	eval := NewEvaluator([]Rule{rule}, notifier)

	if msg := eval.Evaluate("NVDA", rule, map[string]float64{MetricRate: 4.2}); msg != "" {
		t.Errorf("expected no message, got %q", msg)
	}
	if len(notifier.sent) != 0 {
		t.Errorf("expected no notification, got %d", len(notifier.sent))
	}
}

func TestEvaluator_EvaluateAll(t *testing.T) {
	notifier := &mockNotifier{}
	eval := NewEvaluator([]Rule{
		{Name: "loss", Expr: "rate < 0", Severity: "critical", Message: "Losing money"},
		{Name: "lagging", Expr: "excess_rate < -10", Severity: "warning", Message: "Behind benchmark"},
	}, notifier)

	// Only loss triggers
	fired := eval.EvaluateAll("NVDA", map[string]float64{MetricRate: -3, MetricExcessRate: -2})

	if len(fired) != 1 || len(notifier.sent) != 1 {
		t.Errorf("expected 1 notification, got %d fired and %d sent", len(fired), len(notifier.sent))
	}
}

func TestEvaluator_SetCooldownIgnoresNonPositive(t *testing.T) {
	eval := NewEvaluator(nil)
	eval.SetCooldown(0)
	if eval.cooldown != DefaultCooldown {
		t.Errorf("cooldown = %v, want %v", eval.cooldown, DefaultCooldown)
	}
}

func TestRule_Evaluate(t *testing.T) {
	tests := []struct {
		expr     string
		metrics  map[string]float64
		expected bool
	}{
		{"rate > 10", map[string]float64{"rate": 12.5}, true},
		{"rate > 10", map[string]float64{"rate": 3}, false},
		{"rate < -5", map[string]float64{"rate": -7}, true},
		{"rate < -5", map[string]float64{"rate": -2}, false},
		{"sharpe >= 1", map[string]float64{"sharpe": 1}, true},
		{"sharpe >= 1", map[string]float64{"sharpe": 0.9}, false},
		{"max_drawdown <= 20", map[string]float64{"max_drawdown": 15}, true},
		{"max_drawdown <= 20", map[string]float64{"max_drawdown": 25}, false},
		{"invested != 0", map[string]float64{"invested": 100}, true},
		{"invested == 0", map[string]float64{"invested": 100}, false},
		{"missing > 0", map[string]float64{}, false},
		{"rate >> 1", map[string]float64{"rate": 5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			rule := Rule{Expr: tt.expr}
			result := rule.Evaluate(tt.metrics)
			if result != tt.expected {
				t.Errorf("expr %q with metrics %v: expected %v, got %v",
					tt.expr, tt.metrics, tt.expected, result)
			}
		})
	}
}

func TestRule_Validate(t *testing.T) {
	if err := (&Rule{Name: "ok", Expr: "rate < -1.5"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (&Rule{Expr: "rate < 0"}).Validate(); err == nil {
		t.Error("expected error for missing name")
	}
	if err := (&Rule{Name: "bad", Expr: "rate is low"}).Validate(); err == nil {
		t.Error("expected error for malformed expression")
	}
}

func TestRule_FormatMessage(t *testing.T) {
	rule := Rule{
		Name:     "deep_drawdown",
		Expr:     "max_drawdown > 20",
		Severity: "warning",
		Message:  "Drawdown above 20%",
	}

	msg := rule.FormatMessage("NVDA", map[string]float64{MetricMaxDrawdown: 31.456})

	want := "[WARNING] NVDA deep_drawdown: Drawdown above 20% (max_drawdown=31.46)"
	if msg != want {
		t.Errorf("unexpected message: %s", msg)
	}
}

func TestEvaluator_PendingClearsWhenRuleNoLongerTriggers(t *testing.T) {
	notifier := &mockNotifier{}
	rule := Rule{
		Name:     "deep_drawdown",
		Expr:     "max_drawdown > 20",
		For:      time.Minute,
		Severity: "warning",
		Message:  "Drawdown is deep",
	}
	eval := NewEvaluator([]Rule{rule}, notifier)

	// First: trigger rule to start pending
	eval.Evaluate("NVDA", rule, map[string]float64{MetricMaxDrawdown: 30})

	// Second: rule no longer triggers - should clear pending
	eval.Evaluate("NVDA", rule, map[string]float64{MetricMaxDrawdown: 5})

	// Third: advance time and re-trigger - should start new pending
	eval.advanceTime(2 * time.Minute)
	eval.Evaluate("NVDA", rule, map[string]float64{MetricMaxDrawdown: 30})

	if len(notifier.sent) != 0 {
		t.Errorf("expected no notification (pending cleared), got %d", len(notifier.sent))
	}
}
