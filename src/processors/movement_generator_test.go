package processors

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/chainledger/src/models"
)

// stubPrices is a deterministic PriceResolver for tests. Historic and current
// lookups resolve from fixed per-symbol tables; absent symbols are unpriced.
type stubPrices struct {
	historic map[string]decimal.Decimal
	current  map[string]decimal.Decimal
}

func (s stubPrices) PriceAt(symbol string, _ time.Time) (decimal.Decimal, bool) {
	p, ok := s.historic[symbol]
	return p, ok
}

func (s stubPrices) CurrentPrice(symbol string) (decimal.Decimal, bool) {
	p, ok := s.current[symbol]
	return p, ok
}

func swapItem(tx string, date time.Time, address string, deltas map[string]decimal.Decimal) *models.LineItem {
	item := &models.LineItem{
		Tx:             tx,
		Date:           date,
		NetChanges:     make(map[string]map[string]decimal.Decimal),
		SelfNetChanges: map[string]map[string]decimal.Decimal{address: deltas},
		ApparentSwap:   true,
	}
	return item
}

func TestGenerateSwapProducesCrossReferencedPair(t *testing.T) {
	prices := stubPrices{historic: map[string]decimal.Decimal{
		"ETH":  d("2000"),
		"USDC": d("1"),
	}}
	g := NewMovementGenerator(prices)

	item := swapItem("0xswap", day(1), me, map[string]decimal.Decimal{
		"ETH":  d("0.05"),
		"USDC": d("-100"),
	})
	movements := g.Generate([]*models.LineItem{item})
	if len(movements) != 2 {
		t.Fatalf("len(movements) = %d, want 2", len(movements))
	}

	buyLeg, sellLeg := movements[0], movements[1]
	if buyLeg.Type != models.MovementBuy || sellLeg.Type != models.MovementSell {
		t.Fatalf("movement types = %s, %s", buyLeg.Type, sellLeg.Type)
	}
	if buyLeg.Symbol != "ETH" || sellLeg.Symbol != "USDC" {
		t.Errorf("legs = %s/%s, want ETH/USDC", buyLeg.Symbol, sellLeg.Symbol)
	}
	if !buyLeg.Amount.Equal(d("0.05")) || !sellLeg.Amount.Equal(d("100")) {
		t.Errorf("amounts = %s/%s, want 0.05/100", buyLeg.Amount, sellLeg.Amount)
	}
	if buyLeg.OtherSymbol != "USDC" || sellLeg.OtherSymbol != "ETH" {
		t.Errorf("cross references broken: %s/%s", buyLeg.OtherSymbol, sellLeg.OtherSymbol)
	}
	if !buyLeg.OtherAmount.Equal(sellLeg.Amount) || !sellLeg.OtherAmount.Equal(buyLeg.Amount) {
		t.Error("Other amounts do not mirror the opposite leg")
	}
	if !buyLeg.Cost.Equal(d("100")) || !sellLeg.Cost.Equal(d("100")) {
		t.Errorf("costs = %s/%s, want 100/100", buyLeg.Cost, sellLeg.Cost)
	}
}

func TestGenerateSwapImpliesMissingPrice(t *testing.T) {
	// Only the sold side has a price; the bought side's unit price must be
	// implied from the trade itself.
	prices := stubPrices{historic: map[string]decimal.Decimal{
		"USDC": d("1"),
	}}
	g := NewMovementGenerator(prices)

	item := swapItem("0xswap", day(1), me, map[string]decimal.Decimal{
		"OBSCURE": d("50"),
		"USDC":    d("-100"),
	})
	movements := g.Generate([]*models.LineItem{item})

	var buyLeg models.Movement
	for _, mov := range movements {
		if mov.Type == models.MovementBuy {
			buyLeg = mov
		}
	}
	if !buyLeg.PriceKnown {
		t.Fatal("implied price should mark the leg as priced")
	}
	if want := d("2"); !buyLeg.Price.Equal(want) {
		t.Errorf("implied price = %s, want %s", buyLeg.Price, want)
	}
	if want := d("100"); !buyLeg.Cost.Equal(want) {
		t.Errorf("implied cost = %s, want %s", buyLeg.Cost, want)
	}
}

func TestGenerateSwapBothSidesUnpriced(t *testing.T) {
	g := NewMovementGenerator(stubPrices{})
	item := swapItem("0xswap", day(1), me, map[string]decimal.Decimal{
		"AAA": d("1"),
		"BBB": d("-2"),
	})
	movements := g.Generate([]*models.LineItem{item})
	for _, mov := range movements {
		if mov.PriceKnown {
			t.Errorf("%s leg claims a price with no source available", mov.Type)
		}
		if !mov.Cost.IsZero() {
			t.Errorf("%s leg cost = %s, want 0", mov.Type, mov.Cost)
		}
	}
}

func TestGenerateLiquidityMovements(t *testing.T) {
	prices := stubPrices{historic: map[string]decimal.Decimal{"ETH": d("2000")}}
	g := NewMovementGenerator(prices)

	item := &models.LineItem{
		Tx:         "0x1",
		Date:       day(1),
		NetChanges: make(map[string]map[string]decimal.Decimal),
		SelfNetChanges: map[string]map[string]decimal.Decimal{
			me: {"ETH": d("-1.5"), "USDC": d("0")},
		},
	}
	movements := g.Generate([]*models.LineItem{item})
	if len(movements) != 1 {
		t.Fatalf("len(movements) = %d, want 1 (zero delta dropped)", len(movements))
	}
	mov := movements[0]
	if mov.Type != models.MovementWithdraw {
		t.Errorf("type = %s, want WITHDRAW", mov.Type)
	}
	if !mov.Amount.Equal(d("1.5")) {
		t.Errorf("amount = %s, want 1.5 (absolute value)", mov.Amount)
	}
	if !mov.Cost.Equal(d("3000")) {
		t.Errorf("cost = %s, want 3000", mov.Cost)
	}
}

func TestGenerateSortsByDateAcrossItems(t *testing.T) {
	g := NewMovementGenerator(stubPrices{})
	later := &models.LineItem{
		Tx: "0xlater", Date: day(2),
		NetChanges:     make(map[string]map[string]decimal.Decimal),
		SelfNetChanges: map[string]map[string]decimal.Decimal{me: {"AAA": d("1")}},
	}
	earlier := &models.LineItem{
		Tx: "0xearlier", Date: day(1),
		NetChanges:     make(map[string]map[string]decimal.Decimal),
		SelfNetChanges: map[string]map[string]decimal.Decimal{me: {"AAA": d("-1")}},
	}
	movements := g.Generate([]*models.LineItem{later, earlier})
	if len(movements) != 2 {
		t.Fatalf("len(movements) = %d, want 2", len(movements))
	}
	if movements[0].Tx != "0xearlier" || movements[1].Tx != "0xlater" {
		t.Errorf("order = %s, %s; want earlier first", movements[0].Tx, movements[1].Tx)
	}
}
