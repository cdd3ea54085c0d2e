package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementType classifies a directional economic event derived from a
// LineItem. BUY/SELL come in pairs from apparent-swap items; DEPOSIT/WITHDRAW
// from everything else.
type MovementType string

const (
	MovementBuy      MovementType = "BUY"
	MovementSell     MovementType = "SELL"
	MovementDeposit  MovementType = "DEPOSIT"
	MovementWithdraw MovementType = "WITHDRAW"
)

// IsAcquisition reports whether the movement adds inventory.
func (t MovementType) IsAcquisition() bool {
	return t == MovementBuy || t == MovementDeposit
}

// IsDisposal reports whether the movement consumes inventory.
func (t MovementType) IsDisposal() bool {
	return t == MovementSell || t == MovementWithdraw
}

// Movement is one directional economic event with its resolved unit price.
// Amount is always positive. For the BUY/SELL legs of a swap the Other*
// fields carry the opposite leg so benchmark computations can reconstruct
// the trade later. PriceKnown is false when no price source (including the
// swap-implied fallback) could resolve a price; Cost is zero in that case
// and must be surfaced as unpriced, never trusted.
type Movement struct {
	Type    MovementType    `json:"type"`
	Date    time.Time       `json:"date"`
	Tx      string          `json:"tx"`
	Address string          `json:"address"`
	Symbol  string          `json:"symbol"`
	Amount  decimal.Decimal `json:"amount"`

	Price      decimal.Decimal `json:"price"`
	PriceKnown bool            `json:"price_known"`
	Cost       decimal.Decimal `json:"cost"`

	OtherSymbol     string          `json:"other_symbol,omitempty"`
	OtherAmount     decimal.Decimal `json:"other_amount,omitempty"`
	OtherPrice      decimal.Decimal `json:"other_price,omitempty"`
	OtherPriceKnown bool            `json:"other_price_known,omitempty"`
	OtherCost       decimal.Decimal `json:"other_cost,omitempty"`
}

// Lot is a quantity of a commodity acquired at a specific price, held in a
// per-symbol FIFO queue. Amount is the remaining quantity and is decremented
// in place as later disposals consume it; Price never changes.
type Lot struct {
	Symbol     string          `json:"symbol"`
	Amount     decimal.Decimal `json:"amount"`
	Price      decimal.Decimal `json:"price"`
	PriceKnown bool            `json:"price_known"`
	Original   *Movement       `json:"original"`
}

// SellRecord is one matched slice of a disposal against a single lot.
type SellRecord struct {
	Date      time.Time       `json:"date"`
	Tx        string          `json:"tx"`
	Symbol    string          `json:"symbol"`
	Amount    decimal.Decimal `json:"amount"`
	SellPrice decimal.Decimal `json:"sell_price"`
	BuyPrice  decimal.Decimal `json:"buy_price"`
	Gain      decimal.Decimal `json:"gain"`
	Unpriced  bool            `json:"unpriced,omitempty"`
}

// CommodityLedger is the per-symbol FIFO state, finalized after all
// movements for the symbol have been processed.
type CommodityLedger struct {
	Symbol                 string          `json:"symbol"`
	TotalGains             decimal.Decimal `json:"total_gains"`
	TotalCost              decimal.Decimal `json:"total_cost"`
	Inventory              []*Lot          `json:"inventory"`
	Sells                  []SellRecord    `json:"sells"`
	RemainingInventory     decimal.Decimal `json:"remaining_inventory"`
	RemainingInventoryCost decimal.Decimal `json:"remaining_inventory_cost"`
	CurrentAverageBuyPrice decimal.Decimal `json:"current_average_buy_price"`
}
