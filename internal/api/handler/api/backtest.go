// internal/api/handler/api/backtest.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/buddy/internal/api/job"
	"github.com/newthinker/buddy/internal/api/response"
	"github.com/newthinker/buddy/internal/app"
	"github.com/newthinker/buddy/internal/backtest"
	"github.com/newthinker/buddy/internal/core"
	"github.com/newthinker/buddy/internal/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	backtestTimeout = 5 * time.Minute
	jobType         = "backtest"
)

// Runner runs backtests on behalf of the HTTP surface.
type Runner interface {
	Request(symbol string) backtest.Request
	Validate(req backtest.Request) error
	Run(ctx context.Context, req backtest.Request) (*app.Outcome, error)
}

// BacktestRequest is the request body for starting a backtest. Empty fields
// keep the configured defaults.
type BacktestRequest struct {
	Ticker   string `json:"ticker"`
	Symbol   string `json:"symbol,omitempty"`
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`
	Initial  string `json:"initial,omitempty"`
	Monthly  string `json:"monthly,omitempty"`
	Strategy string `json:"strategy,omitempty"`
}

// BenchmarkResult is the benchmark side of a finished job.
type BenchmarkResult struct {
	Ticker       string          `json:"ticker"`
	Rate         decimal.Decimal `json:"rate"`
	Invested     decimal.Decimal `json:"invested"`
	Balance      decimal.Decimal `json:"balance"`
	ArtifactPath string          `json:"artifact_path,omitempty"`
}

// BacktestResult is the payload of a finished job.
type BacktestResult struct {
	Ticker        string           `json:"ticker"`
	Name          string           `json:"name"`
	Strategy      string           `json:"strategy"`
	Start         string           `json:"start"`
	MinDataDate   string           `json:"min_data_date"`
	End           string           `json:"end"`
	Initial       decimal.Decimal  `json:"initial"`
	Monthly       decimal.Decimal  `json:"monthly"`
	Contributions int              `json:"contributions"`
	Invested      decimal.Decimal  `json:"invested"`
	Balance       decimal.Decimal  `json:"balance"`
	Rate          decimal.Decimal  `json:"rate"`
	LastSignal    string           `json:"last_signal"`
	ArtifactPath  string           `json:"artifact_path,omitempty"`
	MaxDrawdown   float64          `json:"max_drawdown"`
	SharpeRatio   float64          `json:"sharpe_ratio"`
	Benchmark     *BenchmarkResult `json:"benchmark,omitempty"`
	Report        string           `json:"report"`
	Alerts        []string         `json:"alerts,omitempty"`
}

// NewBacktestResult flattens an outcome for JSON.
func NewBacktestResult(out *app.Outcome) BacktestResult {
	res := out.Result
	r := BacktestResult{
		Ticker:        res.Ticker,
		Name:          out.Report.Name,
		Strategy:      res.Strategy,
		Start:         res.Start.Format(time.DateOnly),
		MinDataDate:   res.MinDataDate.Format(time.DateOnly),
		End:           res.End.Format(time.DateOnly),
		Initial:       res.Initial,
		Monthly:       res.Monthly,
		Contributions: res.Contributions,
		Invested:      res.Invested,
		Balance:       res.Balance,
		Rate:          res.Rate,
		LastSignal:    res.LastSignal.Label(),
		ArtifactPath:  res.ArtifactPath,
		MaxDrawdown:   res.Stats.MaxDrawdown,
		SharpeRatio:   res.Stats.SharpeRatio,
		Report:        out.Report.Detail(),
		Alerts:        out.Alerts,
	}
	if b := out.Benchmark; b != nil {
		r.Benchmark = &BenchmarkResult{
			Ticker:       b.Ticker,
			Rate:         b.Rate,
			Invested:     b.Invested,
			Balance:      b.Balance,
			ArtifactPath: b.ArtifactPath,
		}
	}
	return r
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	jobStore *job.Store
	runner   Runner
	metrics  *metrics.Registry
	logger   *zap.Logger
}

// NewBacktestHandler creates a new backtest handler.
func NewBacktestHandler(jobStore *job.Store, runner Runner, logger *zap.Logger) *BacktestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BacktestHandler{
		jobStore: jobStore,
		runner:   runner,
		logger:   logger,
	}
}

// SetMetrics enables the active job gauge
func (h *BacktestHandler) SetMetrics(m *metrics.Registry) {
	h.metrics = m
}

// Create validates the request and starts a backtest job.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidParameters, err))
		return
	}

	req, err := h.request(body)
	if err != nil {
		response.Fail(w, err)
		return
	}
	if err := h.runner.Validate(req); err != nil {
		response.Fail(w, err)
		return
	}

	j := h.jobStore.Create(jobType)
	h.gauge()

	go h.runBacktest(j.ID, req)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	})
}

// request applies the body on top of the configured defaults.
func (h *BacktestHandler) request(body BacktestRequest) (backtest.Request, error) {
	ticker := strings.TrimSpace(body.Ticker)
	if ticker == "" {
		ticker = strings.TrimSpace(body.Symbol)
	}
	if ticker == "" {
		return backtest.Request{}, core.Errorf(core.ErrInvalidParameters, "ticker is required")
	}

	req := h.runner.Request(ticker)
	if body.Start != "" {
		t, err := time.Parse(time.DateOnly, body.Start)
		if err != nil {
			return req, core.WrapError(core.ErrInvalidParameters, err)
		}
		req.Start = t
	}
	if body.End != "" {
		t, err := time.Parse(time.DateOnly, body.End)
		if err != nil {
			return req, core.WrapError(core.ErrInvalidParameters, err)
		}
		req.End = t
	}
	if body.Initial != "" {
		d, err := decimal.NewFromString(body.Initial)
		if err != nil {
			return req, core.WrapError(core.ErrInvalidParameters, err)
		}
		req.Initial = d
	}
	if body.Monthly != "" {
		d, err := decimal.NewFromString(body.Monthly)
		if err != nil {
			return req, core.WrapError(core.ErrInvalidParameters, err)
		}
		req.Monthly = d
	}
	if body.Strategy != "" {
		req.Strategy = body.Strategy
	}
	return req, nil
}

// runBacktest executes the backtest and updates job status.
func (h *BacktestHandler) runBacktest(jobID string, req backtest.Request) {
	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	ctx, cancel := context.WithTimeout(context.Background(), backtestTimeout)
	defer cancel()
	out, err := h.runner.Run(ctx, req)
	defer h.gauge()

	if err != nil {
		h.logger.Warn("backtest job failed", zap.String("job_id", jobID), zap.String("ticker", req.Ticker), zap.Error(err))
		h.jobStore.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = jobError(err)
		})
		return
	}

	result := NewBacktestResult(out)
	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Progress = 100
		j.Result = result
	})
}

func (h *BacktestHandler) gauge() {
	if h.metrics != nil {
		h.metrics.SetJobsActive(jobType, h.jobStore.Active(jobType))
	}
}

func jobError(err error) *core.Error {
	var ce *core.Error
	if errors.As(err, &ce) {
		return ce
	}
	return core.WrapError(core.ErrBacktestFailed, err)
}

// GetStatus returns the status of a backtest job.
func (h *BacktestHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobStore.Get(r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}

	resp := map[string]any{
		"job_id":   j.ID,
		"status":   j.Status,
		"progress": j.Progress,
	}

	if j.Status == job.StatusComplete {
		resp["result"] = j.Result
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		resp["error"] = response.Detail(j.Error)
	}

	response.JSON(w, http.StatusOK, resp)
}

// List returns every live backtest job without results.
func (h *BacktestHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobStore.List()
	out := make([]map[string]any, 0, len(jobs))
	for _, j := range jobs {
		if j.Type != jobType {
			continue
		}
		out = append(out, map[string]any{
			"job_id":     j.ID,
			"status":     j.Status,
			"created_at": j.CreatedAt,
			"updated_at": j.UpdatedAt,
		})
	}
	response.JSON(w, http.StatusOK, map[string]any{"jobs": out, "total": len(out)})
}
