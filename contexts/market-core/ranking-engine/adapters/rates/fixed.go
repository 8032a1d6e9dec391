package ratesadapter

import (
	"context"

	"calyx/contexts/market-core/ranking-engine/ports"

	"github.com/shopspring/decimal"
)

// FixedConverter converts fiat amounts at a configured rate. It stands in
// for the host platform's exchange-rate service in single-node deployments.
type FixedConverter struct {
	Rate decimal.Decimal
}

func NewFixedConverter(rate decimal.Decimal) FixedConverter {
	return FixedConverter{Rate: rate}
}

func (c FixedConverter) ConvertFiatToSecondary(
	_ context.Context,
	amount decimal.Decimal,
) (decimal.Decimal, decimal.Decimal, error) {
	rate := c.Rate
	if !rate.IsPositive() {
		rate = decimal.NewFromInt(1)
	}
	return amount.Mul(rate), rate, nil
}

var _ ports.RateConverter = (FixedConverter{})
