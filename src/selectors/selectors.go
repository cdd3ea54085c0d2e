// Package selectors classifies transaction call data by 4-byte function
// selector. Classification is a pure lookup; unrecognized selectors degrade
// to their raw hex form and are frequency-counted so the table can be
// extended later.
package selectors

import (
	"sort"
	"sync"

	"github.com/username/chainledger/src/utils"
)

// knownSelectors maps 4-byte selectors to human-readable operation labels.
var knownSelectors = map[string]string{
	"0xa9059cbb": "transfer",
	"0x23b872dd": "transferFrom",
	"0x095ea7b3": "approve",
	"0x42842e0e": "safeTransferFrom",
	"0xf242432a": "safeTransferFrom1155",
	"0x2eb2c2d6": "safeBatchTransferFrom1155",
	"0xd0e30db0": "deposit",
	"0x2e1a7d4d": "withdraw",
	"0x7ff36ab5": "swapExactETHForTokens",
	"0x18cbafe5": "swapExactTokensForETH",
	"0x38ed1739": "swapExactTokensForTokens",
	"0x8803dbee": "swapTokensForExactTokens",
	"0xfb3bdb41": "swapETHForExactTokens",
	"0x791ac947": "swapExactTokensForETHSupportingFeeOnTransferTokens",
	"0xb6f9de95": "swapExactETHForTokensSupportingFeeOnTransferTokens",
	"0x5ae401dc": "multicall",
	"0xac9650d8": "multicall",
	"0x414bf389": "exactInputSingle",
	"0xc04b8d59": "exactInput",
	"0xe8e33700": "addLiquidity",
	"0xf305d719": "addLiquidityETH",
	"0xbaa2abde": "removeLiquidity",
	"0x02751cec": "removeLiquidityETH",
	"0xa694fc3a": "stake",
	"0x3d18b912": "getReward",
	"0x441a3e70": "withdrawPool",
	"0xe2bbb158": "depositPool",
	"0x0f41ae92": "claim",
	"0x1249c58b": "mint",
}

// SelectorCount pairs an unrecognized selector with how often it was seen.
type SelectorCount struct {
	Selector string `json:"selector"`
	Count    int    `json:"count"`
}

// Classifier resolves call data to operation labels and tracks the
// frequency of selectors missing from the table.
type Classifier struct {
	mu      sync.Mutex
	unknown map[string]int
}

func NewClassifier() *Classifier {
	return &Classifier{unknown: make(map[string]int)}
}

// Classify returns the operation label for the given call data. Plain value
// transfers (no call data) classify as "transfer"; unknown selectors return
// their raw hex form and are counted.
func (c *Classifier) Classify(inputData string) string {
	sel := utils.Selector(inputData)
	if sel == "" {
		return "transfer"
	}
	if label, ok := knownSelectors[sel]; ok {
		return label
	}
	c.mu.Lock()
	c.unknown[sel]++
	c.mu.Unlock()
	return sel
}

// Unknown returns the unrecognized selectors ranked by frequency, most
// frequent first, for selector-table maintenance.
func (c *Classifier) Unknown() []SelectorCount {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]SelectorCount, 0, len(c.unknown))
	for sel, count := range c.unknown {
		out = append(out, SelectorCount{Selector: sel, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Selector < out[j].Selector
	})
	return out
}
