package processors

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/chainledger/src/models"
)

// PositionReporter derives current unrealized P&L and the
// damage-control/profit/controlled-loss/loss classification for every
// still-open lot that originated from a swap (BUY), comparing the position
// against its USD acquisition cost, against the "had I not swapped"
// counterfactual of the trade's other leg, and against a fixed benchmark
// commodity.
type PositionReporter struct {
	prices          PriceResolver
	benchmark       string
	profitThreshold decimal.Decimal
}

func NewPositionReporter(prices PriceResolver, benchmark string, profitThreshold decimal.Decimal) *PositionReporter {
	return &PositionReporter{
		prices:          prices,
		benchmark:       benchmark,
		profitThreshold: profitThreshold,
	}
}

// Report walks all open inventory, symbol by symbol. Plain DEPOSIT lots have
// no counterfactual side and are skipped; only swap-acquired lots are
// positions in this sense.
func (r *PositionReporter) Report(ledgers map[string]*models.CommodityLedger) []models.Position {
	symbols := make([]string, 0, len(ledgers))
	for symbol := range ledgers {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var positions []models.Position
	for _, symbol := range symbols {
		for _, lot := range ledgers[symbol].Inventory {
			if lot.Original == nil || lot.Original.Type != models.MovementBuy || lot.Amount.Sign() <= 0 {
				continue
			}
			positions = append(positions, r.position(lot))
		}
	}
	return positions
}

func (r *PositionReporter) position(lot *models.Lot) models.Position {
	original := lot.Original

	ratio := decimal.Zero
	if original.Amount.Sign() > 0 {
		ratio = lot.Amount.Div(original.Amount)
	}
	acquisitionCost := original.Cost.Mul(ratio)

	currentPrice, currentKnown := r.prices.CurrentPrice(lot.Symbol)
	currentCost := lot.Amount.Mul(currentPrice)

	otherPrice, otherKnown := r.prices.CurrentPrice(original.OtherSymbol)
	soldPartCurrentCost := original.OtherAmount.Mul(otherPrice).Mul(ratio)

	p := models.Position{
		Symbol:     lot.Symbol,
		Tx:         original.Tx,
		AcquiredAt: original.Date,

		RemainingAmount: lot.Amount,
		OriginalAmount:  original.Amount,
		Ratio:           ratio,

		AcquisitionCost:     acquisitionCost,
		CurrentPrice:        currentPrice,
		CurrentCost:         currentCost,
		OtherSymbol:         original.OtherSymbol,
		SoldPartCurrentCost: soldPartCurrentCost,

		Benchmark: r.benchmark,
		Unpriced:  !currentKnown || !otherKnown || !original.PriceKnown,
	}

	p.PnLUSD = currentCost.Sub(acquisitionCost)
	p.PnLUSDPct = percentOf(p.PnLUSD, acquisitionCost)
	p.PnLVsHold = currentCost.Sub(soldPartCurrentCost)
	p.PnLVsHoldPct = percentOf(p.PnLVsHold, soldPartCurrentCost)

	benchThen, thenKnown := r.prices.PriceAt(r.benchmark, original.Date)
	benchNow, nowKnown := r.prices.CurrentPrice(r.benchmark)
	if thenKnown && nowKnown && benchThen.Sign() > 0 && benchNow.Sign() > 0 {
		acquiredInBench := acquisitionCost.Div(benchThen)
		currentInBench := currentCost.Div(benchNow)
		p.PnLBenchmark = currentInBench.Sub(acquiredInBench)
		p.PnLBenchmarkPct = percentOf(p.PnLBenchmark, acquiredInBench)
	} else {
		p.Unpriced = true
	}

	p.Classification = r.classify(p)
	return p
}

// classify applies the four-way rules in order. The rules only make sense
// when both sides of the comparison are priced, so unpriced positions stay
// unlabeled.
func (r *PositionReporter) classify(p models.Position) string {
	if p.Unpriced {
		return ""
	}
	lostValue := p.CurrentCost.LessThan(p.AcquisitionCost)

	switch {
	case lostValue && p.CurrentCost.GreaterThan(p.SoldPartCurrentCost):
		return fmt.Sprintf("Damage control for %s", p.OtherSymbol)
	case p.CurrentCost.GreaterThan(p.AcquisitionCost) &&
		p.CurrentCost.Sub(p.SoldPartCurrentCost).GreaterThan(r.profitThreshold):
		return models.ClassProfit
	case lostValue &&
		p.CurrentCost.Sub(p.AcquisitionCost).LessThan(p.CurrentCost.Sub(p.SoldPartCurrentCost)):
		return models.ClassControlledLoss
	case lostValue:
		return models.ClassLoss
	}
	return ""
}

func percentOf(delta, base decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return delta.Div(base).Mul(decimal.NewFromInt(100))
}
