package collector

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/newthinker/buddy/internal/core"
)

// Memory serves preloaded histories. It backs offline runs and tests.
type Memory struct {
	mu     sync.RWMutex
	series map[string]*Series
}

// NewMemory creates an empty in-memory provider
func NewMemory() *Memory {
	return &Memory{series: make(map[string]*Series)}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) SupportedMarkets() []core.Market {
	return []core.Market{core.MarketUS, core.MarketKR, core.MarketHK, core.MarketJP}
}

func (m *Memory) Init(cfg Config) error { return nil }

// Add stores the full history of symbol. A zero firstAvailable means the
// first point is the listing date.
func (m *Memory) Add(symbol string, points []core.OHLCV, firstAvailable time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[strings.ToUpper(symbol)] = NewSeries(strings.ToUpper(symbol), points, firstAvailable)
}

func (m *Memory) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	s, ok := m.series[strings.ToUpper(symbol)]
	m.mu.RUnlock()
	if !ok {
		return nil, core.Errorf(core.ErrNoMarketData, "unknown symbol %s", symbol)
	}

	from, to := core.Day(start), core.Day(end)
	points := make([]core.OHLCV, 0, len(s.Points))
	for _, p := range s.Points {
		d := p.Date()
		if d.Before(from) || d.After(to) {
			continue
		}
		points = append(points, p)
	}
	return &Series{Symbol: s.Symbol, Points: points, FirstAvailable: s.FirstAvailable}, nil
}
