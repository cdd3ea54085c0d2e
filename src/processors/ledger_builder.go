package processors

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/chainledger/src/models"
	"github.com/username/chainledger/src/utils"
)

// LedgerBuilder groups filtered transfers by transaction hash into balanced
// double-entry LineItems, computes per-item net balance deltas and network
// fees, and flags apparent swaps.
type LedgerBuilder struct {
	registry     *AccountRegistry
	normalizer   *Normalizer
	nativeSymbol string
	includeFees  bool
}

// LedgerResult is the builder's output: LineItems in chronological order
// (stable on equal timestamps, preserving discovery order) plus the
// contract-to-symbol registry accumulated along the way.
type LedgerResult struct {
	LineItems       []*models.LineItem
	ContractSymbols map[string]string
}

func NewLedgerBuilder(registry *AccountRegistry, normalizer *Normalizer, nativeSymbol string, includeFees bool) *LedgerBuilder {
	return &LedgerBuilder{
		registry:     registry,
		normalizer:   normalizer,
		nativeSymbol: nativeSymbol,
		includeFees:  includeFees,
	}
}

// Build runs the double-entry reconstruction over transfers that have
// already passed the normalizer's Filter. Receipts may hold several entries
// per hash; the maximum observed fee wins. Senders maps tx hash to the fee
// payer and falls back to the first transfer's from-address when absent.
func (b *LedgerBuilder) Build(transfers []models.Transfer, receipts map[string][]models.Receipt, senders map[string]string) (*LedgerResult, error) {
	// Chronological order with a stable tie-break on discovery order. FIFO
	// correctness downstream depends on this ordering being deterministic.
	sorted := make([]models.Transfer, len(transfers))
	copy(sorted, transfers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimeStamp < sorted[j].TimeStamp
	})

	items := make(map[string]*models.LineItem)
	var order []string
	contractSymbols := make(map[string]string)

	for _, t := range sorted {
		symbol := b.normalizer.ResolveSymbol(t, b.nativeSymbol)

		if t.ContractAddress != "" && symbol != "" {
			contract := utils.NormalizeAddress(t.ContractAddress)
			if previous, seen := contractSymbols[contract]; seen {
				if previous != symbol {
					return nil, fmt.Errorf("%w: contract %s seen as %q and %q (tx %s)",
						ErrSymbolCollision, contract, previous, symbol, t.Hash)
				}
			} else {
				contractSymbols[contract] = symbol
			}
		}

		debit := b.registry.GetOrCreate(t.From)
		credit := b.registry.GetOrCreate(t.To)

		if debit == credit {
			continue // self-transfer moves nothing
		}
		if !debit.Added && !credit.Added && (b.registry.Hidden(debit) || b.registry.Hidden(credit)) {
			continue
		}

		item, ok := items[t.Hash]
		if !ok {
			// The first transfer's time wins for the item date; later
			// transfers sharing the hash are simultaneous on-chain anyway.
			item = &models.LineItem{
				Tx:             t.Hash,
				Date:           t.Time(),
				NetChanges:     make(map[string]map[string]decimal.Decimal),
				SelfNetChanges: make(map[string]map[string]decimal.Decimal),
			}
			items[t.Hash] = item
			order = append(order, t.Hash)
		}

		item.Changes = append(item.Changes, models.Change{
			Tx:              t.Hash,
			Debit:           debit,
			Credit:          credit,
			Symbol:          symbol,
			Amount:          t.Amount(),
			ContractAddress: utils.NormalizeAddress(t.ContractAddress),
		})
	}

	if err := b.applyFees(items, receipts, senders); err != nil {
		return nil, err
	}

	result := &LedgerResult{ContractSymbols: contractSymbols}
	for _, hash := range order {
		item := items[hash]
		b.aggregateNetChanges(item)
		b.detectApparentSwap(item)
		result.LineItems = append(result.LineItems, item)
	}
	return result, nil
}

// applyFees computes each item's network fee from its receipts and, when fee
// accounting is enabled and the payer is tracked, appends the synthetic fee
// Change crediting the fee sink. The fee Change participates in double-entry
// balance but is excluded from net-change aggregation and swap detection.
func (b *LedgerBuilder) applyFees(items map[string]*models.LineItem, receipts map[string][]models.Receipt, senders map[string]string) error {
	for hash, item := range items {
		fee := decimal.Zero
		for _, r := range receipts[hash] {
			if f := r.Fee(); f.GreaterThan(fee) {
				fee = f
			}
		}
		if fee.IsZero() {
			continue
		}
		item.Fees = fee

		if !b.includeFees {
			continue
		}

		payer := senders[hash]
		if payer == "" && len(item.Changes) > 0 {
			payer = item.Changes[0].Debit.Address
		}
		payerAcc := b.registry.GetOrCreate(payer)
		if !payerAcc.Added {
			continue
		}

		item.Changes = append(item.Changes, models.Change{
			Tx:     hash,
			Debit:  payerAcc,
			Credit: b.registry.GetOrCreate(models.FeeSinkAddress),
			Symbol: b.nativeSymbol,
			Amount: fee,
			IsFee:  true,
		})
	}
	return nil
}

// aggregateNetChanges accumulates signed deltas (-amount debit, +amount
// credit) for every non-fee change touching a tracked account. NetChanges
// records every account the change touches; SelfNetChanges restricts to
// tracked accounts and drives swap detection.
func (b *LedgerBuilder) aggregateNetChanges(item *models.LineItem) {
	for _, c := range item.Changes {
		if c.IsFee {
			continue
		}
		if !c.Debit.Added && !c.Credit.Added {
			continue
		}

		models.AddNetChange(item.NetChanges, c.Debit.Address, c.Symbol, c.Amount.Neg())
		models.AddNetChange(item.NetChanges, c.Credit.Address, c.Symbol, c.Amount)

		if c.Debit.Added {
			models.AddNetChange(item.SelfNetChanges, c.Debit.Address, c.Symbol, c.Amount.Neg())
		}
		if c.Credit.Added {
			models.AddNetChange(item.SelfNetChanges, c.Credit.Address, c.Symbol, c.Amount)
		}
	}
}

// detectApparentSwap flags the item when exactly one tracked account changed
// in exactly two symbols with deltas of opposite sign. Multi-leg routed
// trades do not match and fall through to the deposit/withdrawal path; this
// heuristic is a documented approximation, not ground truth.
func (b *LedgerBuilder) detectApparentSwap(item *models.LineItem) {
	if len(item.SelfNetChanges) != 1 {
		return
	}
	for _, bySymbol := range item.SelfNetChanges {
		var nonzero []decimal.Decimal
		for _, delta := range bySymbol {
			if !delta.IsZero() {
				nonzero = append(nonzero, delta)
			}
		}
		if len(nonzero) == 2 && nonzero[0].Sign() != nonzero[1].Sign() {
			item.ApparentSwap = true
		}
	}
}
