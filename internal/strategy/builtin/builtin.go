// Package builtin wires the shipped strategy variants into a registry.
package builtin

import (
	"github.com/newthinker/buddy/internal/core"
	"github.com/newthinker/buddy/internal/strategy"
	"github.com/newthinker/buddy/internal/strategy/monthly"
	"github.com/newthinker/buddy/internal/strategy/trend"
)

// NewRegistry returns a registry holding the trend and modified monthly
// strategies. params is keyed by strategy name; missing entries keep defaults.
func NewRegistry(params map[string]map[string]any) (*strategy.Registry, error) {
	reg := strategy.NewRegistry()

	t := trend.New(trend.DefaultPeriod)
	if err := t.Init(strategy.Config{Params: params[t.Name()]}); err != nil {
		return nil, core.WrapError(core.ErrInvalidParameters, err)
	}
	reg.Register(t, "basic")

	m := monthly.New(monthly.DefaultFastPeriod, monthly.DefaultSlowPeriod)
	if err := m.Init(strategy.Config{Params: params[m.Name()]}); err != nil {
		return nil, core.WrapError(core.ErrInvalidParameters, err)
	}
	reg.Register(m, "2", "monthly")

	return reg, nil
}
