package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position classification labels. Empty string means no label applies.
const (
	ClassProfit         = "Profit"
	ClassControlledLoss = "Controlled loss"
	ClassLoss           = "Loss"
	// Damage control labels embed the other leg's symbol, see Position.Classification.
)

// Position is the report row for one still-open swap-acquired lot: how the
// position performs against its USD acquisition cost, against holding the
// swapped-away asset instead, and against a fixed benchmark commodity.
// Unpriced marks rows where some leg could not be priced; their figures are
// partial and must be displayed flagged rather than trusted.
type Position struct {
	Symbol     string    `json:"symbol"`
	Tx         string    `json:"tx"`
	AcquiredAt time.Time `json:"acquired_at"`

	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	OriginalAmount  decimal.Decimal `json:"original_amount"`
	Ratio           decimal.Decimal `json:"ratio"`

	AcquisitionCost     decimal.Decimal `json:"acquisition_cost"`
	CurrentPrice        decimal.Decimal `json:"current_price"`
	CurrentCost         decimal.Decimal `json:"current_cost"`
	OtherSymbol         string          `json:"other_symbol"`
	SoldPartCurrentCost decimal.Decimal `json:"sold_part_current_cost"`

	Classification string `json:"classification,omitempty"`

	PnLUSD          decimal.Decimal `json:"pnl_usd"`
	PnLUSDPct       decimal.Decimal `json:"pnl_usd_pct"`
	PnLVsHold       decimal.Decimal `json:"pnl_vs_hold"`
	PnLVsHoldPct    decimal.Decimal `json:"pnl_vs_hold_pct"`
	PnLBenchmark    decimal.Decimal `json:"pnl_benchmark"`
	PnLBenchmarkPct decimal.Decimal `json:"pnl_benchmark_pct"`
	Benchmark       string          `json:"benchmark"`

	Unpriced bool `json:"unpriced,omitempty"`
}
