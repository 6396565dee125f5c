package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/buddy/internal/alert"
	"github.com/newthinker/buddy/internal/backtest"
	"github.com/newthinker/buddy/internal/core"
	"github.com/newthinker/buddy/internal/metrics"
	"github.com/newthinker/buddy/internal/report"
	"github.com/newthinker/buddy/internal/router"
	"github.com/newthinker/buddy/internal/ticker"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Defaults are the request parameters used when a caller names only a ticker.
type Defaults struct {
	Start    time.Time
	End      time.Time // zero means today
	Initial  decimal.Decimal
	Monthly  decimal.Decimal
	Strategy string
	Tickers  []string
	Pause    time.Duration
}

// Outcome is one user run with its benchmark comparison.
type Outcome struct {
	Result    *backtest.Result
	Benchmark *backtest.Result
	Report    report.Report
	Alerts    []string
}

// Metrics returns the values alert rules are evaluated against.
func (o *Outcome) Metrics() map[string]float64 {
	res := o.Result
	m := map[string]float64{
		alert.MetricRate:        res.Rate.InexactFloat64(),
		alert.MetricBalance:     res.Balance.InexactFloat64(),
		alert.MetricInvested:    res.Invested.InexactFloat64(),
		alert.MetricMaxDrawdown: res.Stats.MaxDrawdown,
		alert.MetricSharpe:      res.Stats.SharpeRatio,
	}
	if o.Benchmark != nil {
		m[alert.MetricBenchmarkRate] = o.Benchmark.Rate.InexactFloat64()
		m[alert.MetricExcessRate] = res.Rate.Sub(o.Benchmark.Rate).InexactFloat64()
	}
	return m
}

// Runner runs backtests, compares them with the benchmark and hands the
// reports to the router. It holds no per-run state.
type Runner struct {
	engine    *backtest.Engine
	benchmark *backtest.Benchmark
	directory *ticker.Directory
	router    *router.Router
	alerts    *alert.Evaluator
	metrics   *metrics.Registry
	defaults  Defaults
	logger    *zap.Logger
	now       func() time.Time
}

// NewRunner creates a runner. benchmark, directory and rt may be nil.
func NewRunner(engine *backtest.Engine, benchmark *backtest.Benchmark, directory *ticker.Directory, rt *router.Router, defaults Defaults, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if directory == nil {
		directory = ticker.NewDirectory(nil)
	}
	return &Runner{
		engine:    engine,
		benchmark: benchmark,
		directory: directory,
		router:    rt,
		defaults:  defaults,
		logger:    logger,
		now:       time.Now,
	}
}

// SetMetrics enables backtest counters
func (r *Runner) SetMetrics(m *metrics.Registry) {
	r.metrics = m
}

// SetAlerts enables alert rules on every finished run. Fired alerts are sent
// through the router.
func (r *Runner) SetAlerts(e *alert.Evaluator) {
	r.alerts = e
}

// WithRouter returns a copy of r that routes reports to rt. A nil rt keeps
// reports local.
func (r *Runner) WithRouter(rt *router.Router) *Runner {
	c := *r
	c.router = rt
	return &c
}

// Engine returns the backtest engine.
func (r *Runner) Engine() *backtest.Engine {
	return r.engine
}

// Directory returns the ticker directory.
func (r *Runner) Directory() *ticker.Directory {
	return r.directory
}

// Defaults returns the configured request defaults.
func (r *Runner) Defaults() Defaults {
	return r.defaults
}

// Request builds a request for symbol from the defaults.
func (r *Runner) Request(symbol string) backtest.Request {
	end := r.defaults.End
	if end.IsZero() {
		end = core.Day(r.now())
	}
	return backtest.Request{
		Ticker:   strings.ToUpper(strings.TrimSpace(symbol)),
		Start:    r.defaults.Start,
		End:      end,
		Initial:  r.defaults.Initial,
		Monthly:  r.defaults.Monthly,
		Strategy: r.defaults.Strategy,
	}
}

// Validate checks req and its strategy without fetching any data.
func (r *Runner) Validate(req backtest.Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	_, err := r.engine.Strategies().Resolve(req.Strategy)
	return err
}

// Run executes req, its benchmark run and routes the report. A benchmark
// failure drops the comparison but keeps the user result.
func (r *Runner) Run(ctx context.Context, req backtest.Request) (*Outcome, error) {
	start := time.Now()
	res, err := r.engine.Run(ctx, req)
	r.record(req.Strategy, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	var bench *backtest.Result
	if r.benchmark != nil && r.benchmark.Ticker() != res.Ticker {
		bench, err = r.benchmark.Run(ctx, res)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("benchmark run failed",
				zap.String("ticker", res.Ticker),
				zap.String("benchmark", r.benchmark.Ticker()),
				zap.Error(err),
			)
			bench = nil
		}
	}

	out := &Outcome{
		Result:    res,
		Benchmark: bench,
		Report:    report.FromResult(res, bench, r.directory.Name(res.Ticker)),
	}
	if r.router != nil {
		r.router.Route(out.Report)
	}
	if r.alerts != nil {
		out.Alerts = r.alerts.EvaluateAll(res.Ticker, out.Metrics())
		if r.metrics != nil && len(out.Alerts) > 0 {
			r.metrics.RecordAlerts(res.Ticker, len(out.Alerts))
		}
		for _, msg := range out.Alerts {
			if r.router != nil {
				r.router.Reply("alert:"+out.Report.ID+":"+msg, msg)
			}
		}
	}

	r.logger.Info("backtest finished",
		zap.String("ticker", res.Ticker),
		zap.String("strategy", res.Strategy),
		zap.String("rate", res.Rate.StringFixed(2)),
		zap.String("artifact", res.ArtifactPath),
	)
	return out, nil
}

func (r *Runner) record(strategy string, err error, d time.Duration) {
	if r.metrics == nil {
		return
	}
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, core.ErrNoMarketData):
		status = "no_data"
	case errors.Is(err, core.ErrInvalidParameters), errors.Is(err, core.ErrInvalidDateRange), errors.Is(err, core.ErrInvalidStrategy):
		status = "invalid"
	default:
		status = "error"
	}
	if strategy == "" {
		strategy = "default"
	}
	r.metrics.RecordBacktest(strategy, status, d.Seconds())
}

// RunOne runs the default request for symbol. An empty strategy keeps the
// default one.
func (r *Runner) RunOne(ctx context.Context, symbol, strategy string) (report.Report, error) {
	req := r.Request(symbol)
	if strategy != "" {
		req.Strategy = strategy
	}
	out, err := r.Run(ctx, req)
	if err != nil {
		return report.Report{}, err
	}
	return out.Report, nil
}

// RunAll runs every default ticker in order, pausing between runs. Failed
// tickers are logged and skipped; their errors are joined into the result.
func (r *Runner) RunAll(ctx context.Context) ([]report.Report, error) {
	var reports []report.Report
	var errs []error

	for i, symbol := range r.defaults.Tickers {
		if i > 0 && r.defaults.Pause > 0 {
			select {
			case <-ctx.Done():
				return reports, ctx.Err()
			case <-time.After(r.defaults.Pause):
			}
		}
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		rep, err := r.RunOne(ctx, symbol, "")
		if err != nil {
			r.logger.Error("backtest failed", zap.String("ticker", symbol), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
			continue
		}
		reports = append(reports, rep)
	}
	return reports, errors.Join(errs...)
}
