package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/newthinker/buddy/internal/collector"
	"github.com/newthinker/buddy/internal/core"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	userAgent      = "Mozilla/5.0 (compatible; buddy/1.0)"
)

// validSymbol matches stock symbols like AAPL, BRK-B, 005930.KS, 0700.HK
var validSymbol = regexp.MustCompile(`^[A-Za-z0-9^\-]{1,10}(\.[A-Za-z]{1,4})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo implements the Yahoo Finance chart provider
type Yahoo struct {
	client  *http.Client
	baseURL string
}

// New creates a new Yahoo provider
func New() *Yahoo {
	return &Yahoo{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: defaultBaseURL,
	}
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

func (y *Yahoo) SupportedMarkets() []core.Market {
	return []core.Market{core.MarketUS, core.MarketKR, core.MarketHK, core.MarketJP}
}

func (y *Yahoo) Init(cfg collector.Config) error {
	if cfg.BaseURL != "" {
		y.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		y.client.Timeout = cfg.Timeout
	}
	return nil
}

// toYahooSymbol converts internal symbol format to Yahoo format
func (y *Yahoo) toYahooSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	// Class shares: BRK.B -> BRK-B
	if i := strings.LastIndex(symbol, "."); i > 0 && len(symbol)-i == 2 && core.DetectMarket(symbol) == core.MarketUS {
		return symbol[:i] + "-" + symbol[i+1:]
	}
	return symbol
}

// FetchHistory fetches daily OHLCV data and the listing date
func (y *Yahoo) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*collector.Series, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, core.WrapError(core.ErrNoMarketData, err)
	}
	yahooSymbol := y.toYahooSymbol(symbol)

	// period2 is exclusive.
	url := fmt.Sprintf("%s/%s?interval=1d&period1=%d&period2=%d&events=history",
		y.baseURL, yahooSymbol, core.Day(start).Unix(), core.Day(end).AddDate(0, 0, 1).Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("fetching history: %w", err))
	}
	defer resp.Body.Close()

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, core.Errorf(core.ErrCollectorFailed, "unexpected status: %d", resp.StatusCode)
		}
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("decoding response: %w", err))
	}

	if result.Chart.Error != nil {
		if resp.StatusCode == http.StatusNotFound || result.Chart.Error.Code == "Not Found" {
			return nil, core.Errorf(core.ErrNoMarketData, "%s: %s", symbol, result.Chart.Error.Description)
		}
		return nil, core.Errorf(core.ErrCollectorFailed, "yahoo error: %s", result.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.Errorf(core.ErrCollectorFailed, "unexpected status: %d", resp.StatusCode)
	}

	if len(result.Chart.Result) == 0 {
		return nil, core.Errorf(core.ErrNoMarketData, "no data for symbol: %s", symbol)
	}

	r := result.Chart.Result[0]
	offset := int64(r.Meta.GmtOffset)

	var data []core.OHLCV
	if len(r.Indicators.Quote) > 0 {
		quotes := r.Indicators.Quote[0]
		data = make([]core.OHLCV, 0, len(r.Timestamp))
		for i, ts := range r.Timestamp {
			if i >= len(quotes.Close) || quotes.Close[i] == nil || *quotes.Close[i] <= 0 {
				continue // Skip missing data
			}
			data = append(data, core.OHLCV{
				Symbol:   strings.ToUpper(symbol),
				Interval: "1d",
				Open:     value(quotes.Open, i),
				High:     value(quotes.High, i),
				Low:      value(quotes.Low, i),
				Close:    *quotes.Close[i],
				Volume:   volume(quotes.Volume, i),
				// Exchange-local calendar day
				Time: core.Day(time.Unix(ts+offset, 0).UTC()),
			})
		}
	}

	var listed time.Time
	if r.Meta.FirstTradeDate != nil {
		listed = time.Unix(*r.Meta.FirstTradeDate+offset, 0).UTC()
	}

	return collector.NewSeries(strings.ToUpper(symbol), data, listed), nil
}

func value(xs []*float64, i int) float64 {
	if i < len(xs) && xs[i] != nil {
		return *xs[i]
	}
	return 0
}

func volume(xs []*int64, i int) int64 {
	if i < len(xs) && xs[i] != nil {
		return *xs[i]
	}
	return 0
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol         string `json:"symbol"`
	Currency       string `json:"currency"`
	FirstTradeDate *int64 `json:"firstTradeDate"`
	GmtOffset      int    `json:"gmtoffset"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}
