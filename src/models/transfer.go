package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// TransferKind tags the upstream list a transfer record came from. All four
// kinds project onto the same Transfer shape; the tag is kept so exports and
// diagnostics can tell a plain value transfer from an internal call.
type TransferKind string

const (
	KindNative   TransferKind = "native"
	KindInternal TransferKind = "internal"
	KindERC20    TransferKind = "erc20"
	KindERC1155  TransferKind = "erc1155"
)

// Transfer is an immutable record of a single on-chain value movement.
// Value is the raw integer string in base units; ContractAddress is empty
// for the native asset.
type Transfer struct {
	Hash            string       `json:"hash"`
	BlockNumber     string       `json:"block_number,omitempty"`
	TimeStamp       int64        `json:"time_stamp"`
	From            string       `json:"from"`
	To              string       `json:"to"`
	Value           string       `json:"value"`
	ContractAddress string       `json:"contract_address,omitempty"`
	TokenSymbol     string       `json:"token_symbol,omitempty"`
	TokenDecimal    string       `json:"token_decimal,omitempty"`
	Kind            TransferKind `json:"kind"`
}

// Time returns the transfer timestamp as time.Time (UTC).
func (t Transfer) Time() time.Time {
	return time.Unix(t.TimeStamp, 0).UTC()
}

// Amount converts the raw base-unit value into a decimal amount, shifting by
// TokenDecimal (18 when unset, matching the native asset).
func (t Transfer) Amount() decimal.Decimal {
	raw, err := decimal.NewFromString(t.Value)
	if err != nil {
		return decimal.Zero
	}
	decimals := int32(18)
	if t.TokenDecimal != "" {
		if d, err := strconv.ParseInt(t.TokenDecimal, 10, 32); err == nil {
			decimals = int32(d)
		}
	}
	return raw.Shift(-decimals)
}

// DedupKey is the identity under which transfers reported by multiple
// upstream sources collapse to one record.
func (t Transfer) DedupKey() string {
	return t.From + "|" + t.To + "|" + t.Value + "|" + t.TokenSymbol + "|" + t.ContractAddress
}

// Receipt carries the gas accounting of a mined transaction.
type Receipt struct {
	Hash              string `json:"hash"`
	GasUsed           string `json:"gas_used"`
	EffectiveGasPrice string `json:"effective_gas_price"`
}

// Fee returns gasUsed x effectiveGasPrice expressed in the native asset
// (18-decimal fixed point).
func (r Receipt) Fee() decimal.Decimal {
	gasUsed, err := decimal.NewFromString(r.GasUsed)
	if err != nil {
		return decimal.Zero
	}
	gasPrice, err := decimal.NewFromString(r.EffectiveGasPrice)
	if err != nil {
		return decimal.Zero
	}
	return gasUsed.Mul(gasPrice).Shift(-18)
}

// Transaction is the subset of transaction detail the engine consumes:
// the fee payer and the call data used for selector classification.
type Transaction struct {
	Hash     string `json:"hash"`
	From     string `json:"from"`
	Input    string `json:"input"`
	GasPrice string `json:"gas_price,omitempty"`
}
