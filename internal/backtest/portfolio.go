package backtest

import "github.com/shopspring/decimal"

// portfolio is the mutable state of one run.
type portfolio struct {
	cash     decimal.Decimal
	shares   decimal.Decimal
	invested decimal.Decimal
}

func (p *portfolio) deposit(amount decimal.Decimal) {
	p.cash = p.cash.Add(amount)
	p.invested = p.invested.Add(amount)
}

// buy converts up to amount of cash into fractional shares at price.
func (p *portfolio) buy(amount, price decimal.Decimal) {
	if amount.GreaterThan(p.cash) {
		amount = p.cash
	}
	if !amount.IsPositive() || !price.IsPositive() {
		return
	}
	p.shares = p.shares.Add(amount.Div(price))
	p.cash = p.cash.Sub(amount)
}

func (p *portfolio) value(price decimal.Decimal) decimal.Decimal {
	return p.shares.Mul(price).Add(p.cash)
}
