package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeSinkAddress is the designated account network fees are credited to.
// It is not a hex address on purpose; the registry passes it through
// unchanged.
const FeeSinkAddress = "network:fees"

// Change is one directional movement within a LineItem. Amount is always
// non-negative; direction is encoded by which account is debit (source,
// value decreases) versus credit (destination, value increases).
type Change struct {
	Tx              string          `json:"tx"`
	Debit           *Account        `json:"debit"`
	Credit          *Account        `json:"credit"`
	Symbol          string          `json:"symbol"`
	Amount          decimal.Decimal `json:"amount"`
	ContractAddress string          `json:"contract_address,omitempty"`
	IsFee           bool            `json:"is_fee,omitempty"`
}

// LineItem is the double-entry record of everything that happened within one
// on-chain transaction, keyed by transaction hash. Date comes from the first
// transfer seen for the hash.
//
// NetChanges accumulates signed per-account per-symbol deltas over all
// non-fee changes touching tracked accounts; SelfNetChanges restricts the
// same accumulation to tracked accounts only and is the basis for
// apparent-swap detection.
type LineItem struct {
	Tx             string                                `json:"tx"`
	Date           time.Time                             `json:"date"`
	Changes        []Change                              `json:"changes"`
	Fees           decimal.Decimal                       `json:"fees"`
	NetChanges     map[string]map[string]decimal.Decimal `json:"net_changes"`
	SelfNetChanges map[string]map[string]decimal.Decimal `json:"self_net_changes"`
	ApparentSwap   bool                                  `json:"apparent_swap"`
}

// AddNetChange accumulates a signed delta into one of the net-change maps.
func AddNetChange(m map[string]map[string]decimal.Decimal, address, symbol string, delta decimal.Decimal) {
	bySymbol, ok := m[address]
	if !ok {
		bySymbol = make(map[string]decimal.Decimal)
		m[address] = bySymbol
	}
	bySymbol[symbol] = bySymbol[symbol].Add(delta)
}
