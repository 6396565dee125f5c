package alert

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Metric names available to rule expressions.
const (
	MetricRate          = "rate"
	MetricBalance       = "balance"
	MetricInvested      = "invested"
	MetricMaxDrawdown   = "max_drawdown"
	MetricSharpe        = "sharpe"
	MetricBenchmarkRate = "benchmark_rate"
	MetricExcessRate    = "excess_rate"
)

// "metric op value"; supports >, <, >=, <=, ==, !=
var exprPattern = regexp.MustCompile(`^(\w+)\s*(>=|<=|==|!=|>|<)\s*(-?[\d.]+)$`)

// Rule defines an alert on the metrics of a finished backtest.
type Rule struct {
	Name     string        `mapstructure:"name"`
	Expr     string        `mapstructure:"expr"`
	For      time.Duration `mapstructure:"for"`
	Severity string        `mapstructure:"severity"`
	Message  string        `mapstructure:"message"`
}

type condition struct {
	metric    string
	op        string
	threshold float64
}

func (r *Rule) parse() (condition, error) {
	matches := exprPattern.FindStringSubmatch(strings.TrimSpace(r.Expr))
	if len(matches) != 4 {
		return condition{}, fmt.Errorf("rule %q: malformed expression %q", r.Name, r.Expr)
	}
	threshold, err := strconv.ParseFloat(matches[3], 64)
	if err != nil {
		return condition{}, fmt.Errorf("rule %q: bad threshold: %w", r.Name, err)
	}
	return condition{metric: matches[1], op: matches[2], threshold: threshold}, nil
}

// Validate reports whether the rule can be evaluated.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	_, err := r.parse()
	return err
}

// Evaluate evaluates the rule expression against metrics. A malformed
// expression or a missing metric never triggers.
func (r *Rule) Evaluate(metrics map[string]float64) bool {
	c, err := r.parse()
	if err != nil {
		return false
	}

	value, exists := metrics[c.metric]
	if !exists {
		return false
	}

	switch c.op {
	case ">":
		return value > c.threshold
	case "<":
		return value < c.threshold
	case ">=":
		return value >= c.threshold
	case "<=":
		return value <= c.threshold
	case "==":
		return value == c.threshold
	case "!=":
		return value != c.threshold
	default:
		return false
	}
}

// FormatMessage formats the alert message for subject with the value of the
// metric the rule watches.
func (r *Rule) FormatMessage(subject string, metrics map[string]float64) string {
	severity := r.Severity
	if severity == "" {
		severity = "info"
	}
	msg := fmt.Sprintf("[%s] %s %s: %s", strings.ToUpper(severity), subject, r.Name, r.Message)
	if c, err := r.parse(); err == nil {
		if v, ok := metrics[c.metric]; ok {
			msg += fmt.Sprintf(" (%s=%.2f)", c.metric, v)
		}
	}
	return strings.TrimSpace(msg)
}
