package processors

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceResolver supplies USD unit prices to the movement generator and the
// position reporter. The boolean is false when no source (including any
// fallback chain the implementation carries) could resolve a price; callers
// propagate that as an unpriced value rather than treating it as zero.
type PriceResolver interface {
	PriceAt(symbol string, t time.Time) (decimal.Decimal, bool)
	CurrentPrice(symbol string) (decimal.Decimal, bool)
}
