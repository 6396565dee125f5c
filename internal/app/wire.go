package app

import (
	"fmt"
	"sort"

	"github.com/newthinker/buddy/internal/alert"
	"github.com/newthinker/buddy/internal/backtest"
	"github.com/newthinker/buddy/internal/collector"
	"github.com/newthinker/buddy/internal/collector/alpaca"
	"github.com/newthinker/buddy/internal/collector/yahoo"
	"github.com/newthinker/buddy/internal/command"
	"github.com/newthinker/buddy/internal/config"
	"github.com/newthinker/buddy/internal/core"
	"github.com/newthinker/buddy/internal/metrics"
	"github.com/newthinker/buddy/internal/notifier"
	"github.com/newthinker/buddy/internal/notifier/email"
	"github.com/newthinker/buddy/internal/notifier/telegram"
	"github.com/newthinker/buddy/internal/notifier/webhook"
	"github.com/newthinker/buddy/internal/router"
	"github.com/newthinker/buddy/internal/storage/archive"
	"github.com/newthinker/buddy/internal/storage/history"
	"github.com/newthinker/buddy/internal/strategy/builtin"
	"github.com/newthinker/buddy/internal/ticker"
	"go.uber.org/zap"
)

// DefaultStrategy is used by run-all when none is configured.
const DefaultStrategy = "modified_monthly"

// Build wires every component from cfg.
func Build(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	artifacts, err := NewArtifactStore(cfg.Storage.Artifacts)
	if err != nil {
		return nil, err
	}

	provider, err := NewProvider(cfg.Collector, logger)
	if err != nil {
		return nil, err
	}

	params := make(map[string]map[string]any, len(cfg.Strategies))
	for name, s := range cfg.Strategies {
		params[name] = s.Params
	}
	strategies, err := builtin.NewRegistry(params)
	if err != nil {
		return nil, err
	}

	engine := backtest.New(provider, strategies, artifacts, logger.Named("backtest"))
	bench := backtest.NewBenchmark(engine, cfg.Backtest.Benchmark)

	directory := ticker.NewDirectory(nil)
	if cfg.Tickers.Path != "" {
		directory, err = ticker.Load(cfg.Tickers.Path)
		if err != nil {
			return nil, err
		}
	}

	notifiers, err := NewNotifiers(cfg.Notifiers)
	if err != nil {
		return nil, err
	}

	rt := router.New(router.Config{
		DedupTTL:  cfg.Router.DedupTTL,
		DedupSize: cfg.Router.DedupSize,
	}, notifiers, logger.Named("router"))

	defaults, err := DefaultsFrom(cfg.Backtest)
	if err != nil {
		return nil, err
	}
	if _, err := strategies.Resolve(defaults.Strategy); err != nil {
		return nil, err
	}
	runner := NewRunner(engine, bench, directory, rt, defaults, logger.Named("runner"))
	if cfg.Alerts.Enabled {
		evaluator, err := NewAlerts(cfg.Alerts, logger.Named("alert"))
		if err != nil {
			return nil, err
		}
		runner.SetAlerts(evaluator)
	}

	dispatcher := command.New(command.Config{Name: cfg.Bot.Name}, runner, artifacts, directory, logger.Named("command"))
	dispatcher.SetDeduper(rt)
	dispatcher.SetStrategies(strategies)

	var store history.Store = history.NewMemoryStore(cfg.Storage.History.MaxEntries)
	if cfg.Storage.History.Path != "" {
		store, err = history.OpenFile(cfg.Storage.History.Path, cfg.Storage.History.MaxEntries)
		if err != nil {
			return nil, err
		}
	}

	if reg != nil {
		rt.SetMetrics(reg)
		runner.SetMetrics(reg)
		dispatcher.SetMetrics(reg)
	}

	a := New(runner, rt, dispatcher, logger)
	a.notifiers = notifiers
	a.history = store
	a.metrics = reg
	a.SetInterval(cfg.Schedule.Interval)
	a.SetName(cfg.Bot.Name)

	logger.Info("components wired",
		zap.String("provider", provider.Name()),
		zap.String("artifacts", cfg.Storage.Artifacts.Type),
		zap.Int("notifiers", notifiers.Len()),
		zap.Int("tickers", directory.Len()),
	)
	return a, nil
}

// NewArtifactStore opens the configured artifact storage.
func NewArtifactStore(cfg config.ArtifactsConfig) (*backtest.ArtifactStore, error) {
	var storage archive.Storage
	switch cfg.Type {
	case "", "localfs":
		path := cfg.Path
		if path == "" {
			path = "."
		}
		fs, err := archive.NewLocalFS(path)
		if err != nil {
			return nil, err
		}
		storage = fs
	case "s3":
		s3, err := archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		storage = s3
	default:
		return nil, core.Errorf(core.ErrConfigInvalid, "unknown artifact storage type %q", cfg.Type)
	}

	format := backtest.FormatCSV
	if cfg.Format != "" {
		format = backtest.Format(cfg.Format)
	}
	return backtest.NewArtifactStore(storage, format, cfg.Dir), nil
}

// NewProvider initializes the configured price provider behind the market
// router and the retry wrapper.
func NewProvider(cfg config.CollectorConfig, logger *zap.Logger) (collector.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	providers := collector.NewRegistry()
	providers.Register(yahoo.New())
	providers.Register(alpaca.New())

	name := cfg.Provider
	if name == "" {
		name = "yahoo"
	}
	p, ok := providers.Get(name)
	if !ok {
		return nil, core.Errorf(core.ErrConfigInvalid, "unknown collector provider %q, have %v", name, providers.Names())
	}

	ccfg := collector.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	}
	if name == "alpaca" {
		ccfg.APIKey = cfg.Alpaca.APIKey
		ccfg.APISecret = cfg.Alpaca.APISecret
		ccfg.Extra = map[string]any{"feed": cfg.Alpaca.Feed}
	}
	if err := p.Init(ccfg); err != nil {
		return nil, fmt.Errorf("initializing %s: %w", name, err)
	}

	// Markets the configured provider does not trade go to Yahoo.
	routed := collector.Route(p)
	if name != "yahoo" {
		fallback, _ := providers.Get("yahoo")
		if err := fallback.Init(collector.Config{Timeout: cfg.Timeout}); err != nil {
			return nil, fmt.Errorf("initializing yahoo: %w", err)
		}
		routed = collector.Route(p, fallback)
	}
	logger.Debug("price provider ready",
		zap.String("provider", name),
		zap.Any("markets", routed.SupportedMarkets()),
	)

	return collector.WithRetry(routed, cfg.Retries+1, cfg.RetryDelay, logger.Named("collector")), nil
}

// NewNotifiers builds the enabled notifiers. Unknown names are an error.
func NewNotifiers(cfgs map[string]config.NotifierConfig) (*notifier.Registry, error) {
	reg := notifier.NewRegistry()

	names := make([]string, 0, len(cfgs))
	for name := range cfgs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		nc := cfgs[name]
		if !nc.Enabled {
			continue
		}

		var n notifier.Notifier
		params := map[string]any{}
		switch name {
		case "webhook":
			n = &webhook.Webhook{}
			params["url"] = nc.URL
			params["username"] = nc.Username
			params["headers"] = nc.Headers
		case "telegram":
			n = &telegram.Telegram{}
			params["bot_token"] = nc.BotToken
			params["chat_id"] = nc.ChatID
			if nc.URL != "" {
				params["api_url"] = nc.URL
			}
		case "email":
			n = &email.Email{}
			params["host"] = nc.Host
			params["port"] = nc.Port
			params["username"] = nc.Username
			params["password"] = nc.Password
			params["from"] = nc.From
			params["to"] = nc.To
		default:
			return nil, core.Errorf(core.ErrConfigInvalid, "unknown notifier %q", name)
		}

		if err := n.Init(notifier.Config{Type: name, Params: params}); err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
		if err := reg.Register(n); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// NewAlerts builds the alert evaluator. Fired alerts are logged here and
// relayed to chat by the runner.
func NewAlerts(cfg config.AlertsConfig, logger *zap.Logger) (*alert.Evaluator, error) {
	rules := make([]alert.Rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		rule := alert.Rule{
			Name:     r.Name,
			Expr:     r.Expr,
			For:      r.For,
			Severity: r.Severity,
			Message:  r.Message,
		}
		if err := rule.Validate(); err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
		rules = append(rules, rule)
	}
	e := alert.NewEvaluator(rules, logNotifier{logger})
	e.SetCooldown(cfg.Cooldown)
	return e, nil
}

type logNotifier struct {
	logger *zap.Logger
}

func (n logNotifier) Name() string { return "log" }

func (n logNotifier) Notify(msg string) error {
	n.logger.Warn("alert fired", zap.String("message", msg))
	return nil
}

// DefaultsFrom parses the backtest defaults.
func DefaultsFrom(cfg config.BacktestConfig) (Defaults, error) {
	start, err := cfg.StartDate()
	if err != nil {
		return Defaults{}, err
	}
	end, err := cfg.EndDate()
	if err != nil {
		return Defaults{}, err
	}
	initial, monthly, err := cfg.Amounts()
	if err != nil {
		return Defaults{}, err
	}
	pause := cfg.Pause
	if pause < 0 {
		pause = 0
	}
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = DefaultStrategy
	}
	return Defaults{
		Start:    start,
		End:      end,
		Initial:  initial,
		Monthly:  monthly,
		Strategy: strategy,
		Tickers:  cfg.Tickers,
		Pause:    pause,
	}, nil
}
