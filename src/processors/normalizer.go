package processors

import (
	"time"

	"github.com/username/chainledger/src/models"
	"github.com/username/chainledger/src/utils"
)

// ContractInfo describes an allow-listed token contract.
type ContractInfo struct {
	Symbol string
	Name   string
}

// NormalizerConfig carries the filtering rules applied to every raw transfer
// exactly once, before any aggregation. Zero Start/End dates mean unbounded.
type NormalizerConfig struct {
	StartDate        time.Time
	EndDate          time.Time
	IgnoredSymbols   map[string]bool
	AllowedContracts map[string]ContractInfo
}

// Normalizer deduplicates and filters raw transfer records into the
// canonical per-transaction transfer set every downstream component assumes.
type Normalizer struct {
	cfg      NormalizerConfig
	registry *AccountRegistry
}

func NewNormalizer(cfg NormalizerConfig, registry *AccountRegistry) *Normalizer {
	if cfg.IgnoredSymbols == nil {
		cfg.IgnoredSymbols = make(map[string]bool)
	}
	if cfg.AllowedContracts == nil {
		cfg.AllowedContracts = make(map[string]ContractInfo)
	}
	return &Normalizer{cfg: cfg, registry: registry}
}

func (n *Normalizer) Config() NormalizerConfig { return n.cfg }

// MergeTransfer appends candidate to list unless an existing entry matches
// on (from, to, value, tokenSymbol, contractAddress) or the candidate moves
// no value. The same transfer is routinely reported by several upstream
// lists (normal, internal, token); this is the deduplication contract.
func (n *Normalizer) MergeTransfer(list []models.Transfer, candidate models.Transfer) []models.Transfer {
	if candidate.Value == "" || candidate.Value == "0" {
		return list
	}
	key := candidate.DedupKey()
	for _, existing := range list {
		if existing.DedupKey() == key {
			return list
		}
	}
	return append(list, candidate)
}

// Filter reports whether a transfer survives the configured rules. Every
// downstream component assumes this predicate has already run.
func (n *Normalizer) Filter(t models.Transfer) bool {
	ts := t.Time()
	if !n.cfg.StartDate.IsZero() && ts.Before(n.cfg.StartDate) {
		return false
	}
	if !n.cfg.EndDate.IsZero() && ts.After(n.cfg.EndDate) {
		return false
	}

	if n.registry.HiddenAddress(t.From) {
		return false
	}

	if n.cfg.IgnoredSymbols[t.TokenSymbol] {
		return false
	}

	if t.ContractAddress != "" {
		contract := utils.NormalizeAddress(t.ContractAddress)
		if n.cfg.IgnoredSymbols[contract] {
			return false
		}
		if _, allowed := n.cfg.AllowedContracts[contract]; !allowed {
			// A contract we also track as a wallet may legitimately send us
			// value without being on the token allow-list.
			if !n.registry.IsTracked(contract) {
				return false
			}
		}
	}

	return true
}

// ResolveSymbol maps a transfer to its commodity symbol: the allow-listed
// contract's symbol when the contract is registered, the raw token symbol
// otherwise, and the native symbol for plain value transfers.
func (n *Normalizer) ResolveSymbol(t models.Transfer, nativeSymbol string) string {
	if t.ContractAddress == "" {
		if t.TokenSymbol != "" {
			return t.TokenSymbol
		}
		return nativeSymbol
	}
	contract := utils.NormalizeAddress(t.ContractAddress)
	if info, ok := n.cfg.AllowedContracts[contract]; ok && info.Symbol != "" {
		return info.Symbol
	}
	return t.TokenSymbol
}
