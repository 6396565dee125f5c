// Package command implements the chat command surface: run-all, run-one,
// show-all, ticker search and health-check.
package command

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/newthinker/buddy/internal/backtest"
	"github.com/newthinker/buddy/internal/metrics"
	"github.com/newthinker/buddy/internal/report"
	"github.com/newthinker/buddy/internal/strategy"
	"github.com/newthinker/buddy/internal/ticker"
	"go.uber.org/zap"
)

// Command names
const (
	CmdBuddy   = "buddy"
	CmdStock   = "stock"
	CmdShowAll = "show_all"
	CmdTicker  = "ticker"
	CmdPing    = "ping"
	CmdHelp    = "help"
)

// Backtester runs backtests and returns their reports.
type Backtester interface {
	RunOne(ctx context.Context, symbol, strategy string) (report.Report, error)
	RunAll(ctx context.Context) ([]report.Report, error)
}

// Artifacts lists and reloads stored result tables.
type Artifacts interface {
	List(ctx context.Context) ([]string, error)
	Load(ctx context.Context, p string) ([]backtest.Row, error)
}

// Deduper reports whether a message id was already handled.
type Deduper interface {
	Seen(id string) bool
}

// Config holds dispatcher configuration
type Config struct {
	Name          string // bot name used in ping replies
	StockStrategy string // strategy for single-ticker runs
}

// DefaultConfig returns default dispatcher configuration
func DefaultConfig() Config {
	return Config{
		Name:          "buddy",
		StockStrategy: "1",
	}
}

// Message is an incoming command.
type Message struct {
	ID     string `json:"id,omitempty"`
	Author string `json:"author,omitempty"`
	Text   string `json:"text"`
}

// Reply holds the messages to send back, each within the chat size limit.
type Reply struct {
	Command   string   `json:"command"`
	Messages  []string `json:"messages"`
	Duplicate bool     `json:"duplicate,omitempty"`
}

// Info describes one command for help output.
type Info struct {
	Name  string
	Usage string
	Help  string
}

// Dispatcher parses chat messages and runs the matching command.
type Dispatcher struct {
	cfg        Config
	backtester Backtester
	artifacts  Artifacts
	directory  *ticker.Directory
	dedup      Deduper
	strategies *strategy.Registry
	metrics    *metrics.Registry
	logger     *zap.Logger
}

// New creates a dispatcher. artifacts and directory may be nil.
func New(cfg Config, b Backtester, artifacts Artifacts, directory *ticker.Directory, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.StockStrategy == "" {
		cfg.StockStrategy = def.StockStrategy
	}
	if directory == nil {
		directory = ticker.NewDirectory(nil)
	}
	return &Dispatcher{
		cfg:        cfg,
		backtester: b,
		artifacts:  artifacts,
		directory:  directory,
		logger:     logger,
	}
}

// SetDeduper drops messages whose id was already handled
func (d *Dispatcher) SetDeduper(dd Deduper) {
	d.dedup = dd
}

// SetStrategies lists the available strategies in help output.
func (d *Dispatcher) SetStrategies(r *strategy.Registry) {
	d.strategies = r
}

// SetMetrics enables command counters
func (d *Dispatcher) SetMetrics(m *metrics.Registry) {
	d.metrics = m
}

// Commands lists the supported commands.
func Commands() []Info {
	return []Info{
		{CmdBuddy, "buddy", "Backtest every default ticker and compare with the benchmark"},
		{CmdStock, "stock <ticker> | stock K <korean name>", "Backtest one ticker"},
		{CmdShowAll, "show_all", "Summarize every stored result"},
		{CmdTicker, "ticker <query>", "Search tickers by symbol or name"},
		{CmdPing, "ping", "Health check"},
		{CmdHelp, "help", "List commands"},
	}
}

// Parse splits text into a command name and its argument string. A leading
// "!" or "/" is ignored.
func Parse(text string) (name, args string) {
	text = strings.TrimSpace(text)
	text = strings.TrimLeft(text, "!/")
	name, args, _ = strings.Cut(text, " ")
	return strings.ToLower(name), strings.TrimSpace(args)
}

// Handle runs msg and returns the reply. Failures are reported as
// human-readable messages, never as errors.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) Reply {
	name, args := Parse(msg.Text)
	reply := Reply{Command: name}

	if msg.ID != "" && d.dedup != nil && d.dedup.Seen(msg.ID) {
		d.logger.Debug("duplicate command dropped", zap.String("id", msg.ID), zap.String("command", name))
		d.record(name, "duplicate")
		reply.Duplicate = true
		return reply
	}

	var ok bool
	switch name {
	case CmdBuddy:
		reply.Messages, ok = d.buddy(ctx)
	case CmdStock:
		reply.Messages, ok = d.stock(ctx, args)
	case CmdShowAll:
		reply.Messages, ok = d.showAll(ctx)
	case CmdTicker:
		reply.Messages, ok = d.ticker(args), true
	case CmdPing:
		reply.Messages, ok = []string{fmt.Sprintf("pong: %s", d.cfg.Name)}, true
	case CmdHelp, "":
		reply.Command = CmdHelp
		reply.Messages, ok = d.help(), true
	default:
		d.record("unknown", "error")
		reply.Messages = []string{fmt.Sprintf("Unknown command: %s. Type help for the list of commands.", name)}
		return reply
	}

	status := "success"
	if !ok {
		status = "error"
	}
	d.record(reply.Command, status)
	d.logger.Info("command handled",
		zap.String("command", reply.Command),
		zap.String("author", msg.Author),
		zap.String("status", status),
		zap.Int("messages", len(reply.Messages)),
	)
	return reply
}

func (d *Dispatcher) record(name, status string) {
	if d.metrics != nil {
		d.metrics.RecordCommand(name, status)
	}
}

func (d *Dispatcher) buddy(ctx context.Context) ([]string, bool) {
	reports, err := d.backtester.RunAll(ctx)
	var out []string
	for _, rep := range reports {
		out = append(out, report.Split(rep.Text(), report.MaxMessageLength)...)
	}
	if err != nil {
		d.logger.Warn("run-all finished with errors", zap.Error(err))
		out = append(out, report.Split(fmt.Sprintf("An error occurred: %v", err), report.MaxMessageLength)...)
		if len(reports) == 0 {
			return out, false
		}
	}
	return append(out, "Backtesting results have been organized."), true
}

func (d *Dispatcher) stock(ctx context.Context, args string) ([]string, bool) {
	out := []string{fmt.Sprintf("Arguments passed by command: %s", args)}
	if args == "" {
		return append(out, "Please enter a ticker or stock name."), false
	}

	symbol := strings.ToUpper(args)
	if len(args) > 2 && strings.EqualFold(args[:2], "k ") {
		name := strings.TrimSpace(args[2:])
		resolved, err := d.directory.ResolveKorean(name)
		if err != nil {
			return append(out, fmt.Sprintf("Cannot find the stock %s.", name)), false
		}
		symbol = resolved
	} else if resolved, err := d.directory.Resolve(args); err == nil {
		symbol = resolved
	}

	rep, err := d.backtester.RunOne(ctx, symbol, d.cfg.StockStrategy)
	if err != nil {
		return append(out, fmt.Sprintf("An error occurred: %v", err)), false
	}
	return append(out, report.Split(rep.Text(), report.MaxMessageLength)...), true
}

func (d *Dispatcher) showAll(ctx context.Context) ([]string, bool) {
	if d.artifacts == nil {
		return []string{"No results to display."}, true
	}
	paths, err := d.artifacts.List(ctx)
	if err != nil {
		return []string{fmt.Sprintf("An error occurred: %v", err)}, false
	}
	if len(paths) == 0 {
		return []string{"No results to display."}, true
	}
	sort.Strings(paths)

	lines := make([]string, 0, len(paths))
	for _, p := range paths {
		rows, err := d.artifacts.Load(ctx, p)
		if err != nil {
			return []string{fmt.Sprintf("An error occurred: %v", err)}, false
		}
		s := backtest.Summarize(rows)
		name := strings.TrimSuffix(path.Base(p), path.Ext(p))
		lines = append(lines, fmt.Sprintf("%s: %s %%, %s $ (%s)\n",
			name, report.Amount(s.Rate), report.Amount(s.Balance), s.LastSignal.Label()))
	}

	out := report.Chunk("Results:\n", "Results (continued):\n", lines, report.MaxMessageLength)
	return append(out, "All results have been successfully displayed."), true
}

func (d *Dispatcher) ticker(query string) []string {
	if query == "" {
		return []string{"Please enter ticker stock name or ticker."}
	}
	matches := d.directory.Search(query)
	if len(matches) == 0 {
		return []string{"No search results."}
	}

	lines := make([]string, len(matches))
	for i, e := range matches {
		name := e.Name
		if name == "" {
			name = e.KoreanName
		}
		lines[i] = fmt.Sprintf("%s - %s\n", e.Symbol, name)
	}
	return report.Chunk("Search results:\n", "Search results (continued):\n", lines, report.MaxMessageLength)
}

func (d *Dispatcher) help() []string {
	lines := make([]string, 0, len(Commands()))
	for _, c := range Commands() {
		lines = append(lines, fmt.Sprintf("%s - %s\n", c.Usage, c.Help))
	}
	if d.strategies != nil {
		lines = append(lines, "\nStrategies:\n")
		for _, s := range d.strategies.List() {
			lines = append(lines, fmt.Sprintf("%s (%s) - %s\n", s.ID(), s.Name(), s.Description()))
		}
	}
	return report.Chunk("Commands:\n", "Commands (continued):\n", lines, report.MaxMessageLength)
}
