package processors

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/chainledger/src/models"
)

// MovementGenerator expands LineItems into the directional economic events
// the FIFO matcher consumes. Swap items become a BUY/SELL pair with
// cross-referenced legs; everything else becomes per-account DEPOSIT and
// WITHDRAW movements. The output list is materialized eagerly and sorted
// ascending by date (stable on ties) because FIFO correctness depends on
// global temporal order, not item-processing order.
type MovementGenerator struct {
	prices PriceResolver
}

func NewMovementGenerator(prices PriceResolver) *MovementGenerator {
	return &MovementGenerator{prices: prices}
}

func (g *MovementGenerator) Generate(items []*models.LineItem) []models.Movement {
	var movements []models.Movement
	for _, item := range items {
		if item.ApparentSwap {
			movements = append(movements, g.swapMovements(item)...)
		} else {
			movements = append(movements, g.liquidityMovements(item)...)
		}
	}

	sort.SliceStable(movements, func(i, j int) bool {
		return movements[i].Date.Before(movements[j].Date)
	})
	return movements
}

// swapMovements emits the BUY leg for the positive delta and the SELL leg
// for the negative one. When only one leg has a resolvable price, the other
// leg's price is implied from it (price_a = cost_b / amount_a), which is the
// only pricing available for many obscure tokens.
func (g *MovementGenerator) swapMovements(item *models.LineItem) []models.Movement {
	address, bySymbol := singleEntry(item.SelfNetChanges)

	var buySymbol, sellSymbol string
	var buyAmount, sellAmount decimal.Decimal
	for _, symbol := range sortedSymbols(bySymbol) {
		delta := bySymbol[symbol]
		switch {
		case delta.Sign() > 0:
			buySymbol, buyAmount = symbol, delta
		case delta.Sign() < 0:
			sellSymbol, sellAmount = symbol, delta.Abs()
		}
	}

	buyPrice, buyKnown := g.prices.PriceAt(buySymbol, item.Date)
	sellPrice, sellKnown := g.prices.PriceAt(sellSymbol, item.Date)

	if !buyKnown && sellKnown && buyAmount.Sign() > 0 {
		buyPrice = sellPrice.Mul(sellAmount).Div(buyAmount)
		buyKnown = true
	}
	if !sellKnown && buyKnown && sellAmount.Sign() > 0 {
		sellPrice = buyPrice.Mul(buyAmount).Div(sellAmount)
		sellKnown = true
	}

	buyCost := costOf(buyAmount, buyPrice, buyKnown)
	sellCost := costOf(sellAmount, sellPrice, sellKnown)

	buy := models.Movement{
		Type:    models.MovementBuy,
		Date:    item.Date,
		Tx:      item.Tx,
		Address: address,
		Symbol:  buySymbol,
		Amount:  buyAmount,

		Price:      buyPrice,
		PriceKnown: buyKnown,
		Cost:       buyCost,

		OtherSymbol:     sellSymbol,
		OtherAmount:     sellAmount,
		OtherPrice:      sellPrice,
		OtherPriceKnown: sellKnown,
		OtherCost:       sellCost,
	}
	sell := models.Movement{
		Type:    models.MovementSell,
		Date:    item.Date,
		Tx:      item.Tx,
		Address: address,
		Symbol:  sellSymbol,
		Amount:  sellAmount,

		Price:      sellPrice,
		PriceKnown: sellKnown,
		Cost:       sellCost,

		OtherSymbol:     buySymbol,
		OtherAmount:     buyAmount,
		OtherPrice:      buyPrice,
		OtherPriceKnown: buyKnown,
		OtherCost:       buyCost,
	}
	return []models.Movement{buy, sell}
}

// liquidityMovements emits one DEPOSIT or WITHDRAW per tracked account per
// nonzero symbol delta, priced at the item date.
func (g *MovementGenerator) liquidityMovements(item *models.LineItem) []models.Movement {
	var out []models.Movement
	for _, address := range sortedAddresses(item.SelfNetChanges) {
		bySymbol := item.SelfNetChanges[address]
		for _, symbol := range sortedSymbols(bySymbol) {
			delta := bySymbol[symbol]
			if delta.IsZero() {
				continue
			}
			mType := models.MovementDeposit
			if delta.Sign() < 0 {
				mType = models.MovementWithdraw
			}
			amount := delta.Abs()
			price, known := g.prices.PriceAt(symbol, item.Date)
			out = append(out, models.Movement{
				Type:       mType,
				Date:       item.Date,
				Tx:         item.Tx,
				Address:    address,
				Symbol:     symbol,
				Amount:     amount,
				Price:      price,
				PriceKnown: known,
				Cost:       costOf(amount, price, known),
			})
		}
	}
	return out
}

func costOf(amount, price decimal.Decimal, known bool) decimal.Decimal {
	if !known {
		return decimal.Zero
	}
	return amount.Mul(price)
}

func singleEntry(m map[string]map[string]decimal.Decimal) (string, map[string]decimal.Decimal) {
	for address, bySymbol := range m {
		return address, bySymbol
	}
	return "", nil
}

func sortedAddresses(m map[string]map[string]decimal.Decimal) []string {
	out := make([]string, 0, len(m))
	for address := range m {
		out = append(out, address)
	}
	sort.Strings(out)
	return out
}

func sortedSymbols(m map[string]decimal.Decimal) []string {
	out := make([]string, 0, len(m))
	for symbol := range m {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}
