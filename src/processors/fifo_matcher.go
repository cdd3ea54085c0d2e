package processors

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/chainledger/src/models"
)

// FIFOMatcher consumes the time-ordered movement stream and maintains one
// independent FIFO lot queue per commodity. Acquisitions push lots to the
// back; disposals consume from the front, oldest first, realizing gain per
// matched quantity. Integrity violations abort the run rather than silently
// producing negative inventory.
type FIFOMatcher struct{}

func NewFIFOMatcher() *FIFOMatcher { return &FIFOMatcher{} }

// Process runs the matcher over movements already sorted ascending by date.
// It returns the per-symbol ledgers with remaining-inventory totals
// finalized.
func (m *FIFOMatcher) Process(movements []models.Movement) (map[string]*models.CommodityLedger, error) {
	ledgers := make(map[string]*models.CommodityLedger)

	for i := range movements {
		mov := movements[i]
		ledger, ok := ledgers[mov.Symbol]
		if !ok {
			ledger = &models.CommodityLedger{Symbol: mov.Symbol}
			ledgers[mov.Symbol] = ledger
		}

		switch {
		case mov.Type.IsAcquisition():
			original := mov
			ledger.Inventory = append(ledger.Inventory, &models.Lot{
				Symbol:     mov.Symbol,
				Amount:     mov.Amount,
				Price:      mov.Price,
				PriceKnown: mov.PriceKnown,
				Original:   &original,
			})
		case mov.Type.IsDisposal():
			if err := m.liquidate(ledger, mov); err != nil {
				return nil, err
			}
		}
	}

	for _, ledger := range ledgers {
		finalize(ledger)
	}
	return ledgers, nil
}

// liquidate consumes inventory from the front of the queue until the
// disposal amount is covered.
func (m *FIFOMatcher) liquidate(ledger *models.CommodityLedger, mov models.Movement) error {
	if mov.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: %s of %s %s (tx %s)",
			ErrNonPositiveAmount, mov.Type, mov.Amount, mov.Symbol, mov.Tx)
	}
	if len(ledger.Inventory) == 0 {
		return fmt.Errorf("%w: %s %s with empty inventory (tx %s)",
			ErrDisposalBeforeAcquisition, mov.Type, mov.Symbol, mov.Tx)
	}

	remaining := mov.Amount
	for remaining.Sign() > 0 {
		if len(ledger.Inventory) == 0 {
			return fmt.Errorf("%w: %s oversold by %s (tx %s)",
				ErrOversold, mov.Symbol, remaining, mov.Tx)
		}

		front := ledger.Inventory[0]
		consumed := front.Amount
		if front.Amount.GreaterThan(remaining) {
			consumed = remaining
			front.Amount = front.Amount.Sub(consumed)
		} else {
			ledger.Inventory = ledger.Inventory[1:]
		}
		remaining = remaining.Sub(consumed)

		record := models.SellRecord{
			Date:      mov.Date,
			Tx:        mov.Tx,
			Symbol:    mov.Symbol,
			Amount:    consumed,
			SellPrice: mov.Price,
			BuyPrice:  front.Price,
		}
		if mov.PriceKnown && front.PriceKnown {
			record.Gain = consumed.Mul(mov.Price.Sub(front.Price))
			ledger.TotalGains = ledger.TotalGains.Add(record.Gain)
			ledger.TotalCost = ledger.TotalCost.Add(consumed.Mul(front.Price))
		} else {
			// Unresolved pricing degrades precision, never correctness:
			// the quantity is still consumed, the gain stays flagged.
			record.Unpriced = true
		}
		ledger.Sells = append(ledger.Sells, record)
	}
	return nil
}

func finalize(ledger *models.CommodityLedger) {
	remaining := decimal.Zero
	cost := decimal.Zero
	for _, lot := range ledger.Inventory {
		remaining = remaining.Add(lot.Amount)
		if lot.PriceKnown {
			cost = cost.Add(lot.Amount.Mul(lot.Price))
		}
	}
	ledger.RemainingInventory = remaining
	ledger.RemainingInventoryCost = cost

	// The floor guards division by zero once inventory is fully liquidated;
	// the resulting average is degenerate there and intentionally so.
	denominator := remaining
	if denominator.LessThan(decimal.NewFromInt(1)) {
		denominator = decimal.NewFromInt(1)
	}
	ledger.CurrentAverageBuyPrice = cost.Div(denominator)
}
