package core

import (
	"strings"
	"time"
)

// Market represents a trading market
type Market string

const (
	MarketUS Market = "US"
	MarketKR Market = "KR"
	MarketHK Market = "HK"
	MarketJP Market = "JP"
)

// OHLCV represents a daily candlestick. Close is the price the engine trades at.
type OHLCV struct {
	Symbol   string
	Interval string // "1d"
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   int64
	Time     time.Time
}

// Date returns the bar's calendar day at UTC midnight.
func (o OHLCV) Date() time.Time {
	return Day(o.Time)
}

// Day truncates t to its calendar day, keeping the wall-clock date in t's location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Action represents a trading signal action
type Action string

const (
	ActionBuy        Action = "buy"
	ActionSell       Action = "sell"
	ActionHold       Action = "hold"
	ActionStrongBuy  Action = "strong_buy"
	ActionStrongSell Action = "strong_sell"
)

// IsBuy reports whether the action is BUY-equivalent.
func (a Action) IsBuy() bool {
	return a == ActionBuy || a == ActionStrongBuy
}

// IsSell reports whether the action is SELL-equivalent.
func (a Action) IsSell() bool {
	return a == ActionSell || a == ActionStrongSell
}

// Label is the upper-case form used in reports and artifacts.
func (a Action) Label() string {
	return strings.ToUpper(string(a))
}

// ParseAction accepts either the stored or the label form.
func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionBuy, ActionSell, ActionHold, ActionStrongBuy, ActionStrongSell:
		return a, true
	}
	return "", false
}

// DetectMarket infers the listing market from a Yahoo-style exchange suffix.
func DetectMarket(symbol string) Market {
	s := strings.ToUpper(symbol)
	switch {
	case strings.HasSuffix(s, ".KS"), strings.HasSuffix(s, ".KQ"):
		return MarketKR
	case strings.HasSuffix(s, ".HK"):
		return MarketHK
	case strings.HasSuffix(s, ".T"):
		return MarketJP
	}
	return MarketUS
}
