// Package reporting renders performance reports from the analytics output.
package reporting

import (
	"time"

	"exchange-ledger/internal/analytics"
	"exchange-ledger/internal/holdings"
)

// Report is a complete performance report for one account.
type Report struct {
	GeneratedAt time.Time
	Source      string
	RefCurrency string

	Summary *analytics.Summary

	NAV            []analytics.Point
	RollingVol     []analytics.Point
	RollingReturns []analytics.Point

	BalanceWarnings []holdings.Warning
}
