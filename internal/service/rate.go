package service

import (
	"time"

	"lightning-timesheet/config"

	"github.com/shopspring/decimal"
)

var millisPerHour = decimal.NewFromInt(int64(time.Hour / time.Millisecond))

// AmountPerInterval returns the sats paid for one interval. An explicit
// amount_per_interval wins; otherwise the hourly rate is prorated over the
// interval, floored, and never below 1.
func AmountPerInterval(cfg config.SettlementConfig) int64 {
	if cfg.AmountPerInterval > 0 {
		return cfg.AmountPerInterval
	}

	amount := decimal.NewFromInt(cfg.HourlyRate).
		Mul(decimal.NewFromInt(int64(cfg.Interval / time.Millisecond))).
		Div(millisPerHour).
		Floor().
		IntPart()
	if amount < 1 {
		return 1
	}
	return amount
}
