package notifier

import (
	"github.com/newthinker/buddy/internal/report"
)

// Config holds notifier configuration
type Config struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

// Notifier delivers backtest reports to a messaging sink. A rejected
// delivery wraps core.ErrUpstreamDelivery.
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init initializes the notifier with configuration
	Init(cfg Config) error

	// Send delivers a single report
	Send(r report.Report) error

	// SendText delivers a free-form message such as a command reply
	SendText(text string) error
}
