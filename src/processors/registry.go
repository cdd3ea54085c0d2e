package processors

import (
	"sort"

	"github.com/username/chainledger/src/models"
	"github.com/username/chainledger/src/utils"
)

// AccountRegistry is the arena owning every Account record for a run.
// Addresses normalize to a unique key and GetOrCreate always returns the
// same *models.Account for the same normalized address, so identity-based
// aggregation downstream stays consistent. The hidden set lives here, not on
// the records, so hiding an address retroactively applies to all existing
// references.
type AccountRegistry struct {
	accounts map[string]*models.Account
	hidden   map[string]bool
}

func NewAccountRegistry() *AccountRegistry {
	return &AccountRegistry{
		accounts: make(map[string]*models.Account),
		hidden:   make(map[string]bool),
	}
}

// GetOrCreate resolves an address to its account record, creating an
// untracked record labeled with the address itself on first reference.
func (r *AccountRegistry) GetOrCreate(address string) *models.Account {
	key := utils.NormalizeAddress(address)
	if acc, ok := r.accounts[key]; ok {
		return acc
	}
	acc := &models.Account{
		Address: key,
		Label:   key,
	}
	r.accounts[key] = acc
	return acc
}

// MarkAdded flags an address as user-tracked, optionally labeling it.
func (r *AccountRegistry) MarkAdded(address, label string) *models.Account {
	acc := r.GetOrCreate(address)
	acc.Added = true
	if label != "" {
		acc.Label = label
	}
	return acc
}

// SetLabel overwrites the display label of an address.
func (r *AccountRegistry) SetLabel(address, label string) {
	acc := r.GetOrCreate(address)
	acc.Label = label
}

// Hide adds an address to the hidden set.
func (r *AccountRegistry) Hide(address string) {
	r.hidden[utils.NormalizeAddress(address)] = true
}

// Hidden reports whether an account's address is in the hidden set.
func (r *AccountRegistry) Hidden(acc *models.Account) bool {
	return r.hidden[acc.Address]
}

// HiddenAddress reports whether an address is hidden without creating a record.
func (r *AccountRegistry) HiddenAddress(address string) bool {
	return r.hidden[utils.NormalizeAddress(address)]
}

// IsTracked reports whether an address belongs to a user-tracked account.
// It does not create a record for unseen addresses.
func (r *AccountRegistry) IsTracked(address string) bool {
	acc, ok := r.accounts[utils.NormalizeAddress(address)]
	return ok && acc.Added
}

// TrackedAccounts returns every user-tracked account, sorted by address.
func (r *AccountRegistry) TrackedAccounts() []*models.Account {
	var out []*models.Account
	for _, acc := range r.accounts {
		if acc.Added {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// UnknownAccounts returns every referenced account whose label still equals
// its own address, sorted by address. These are counterparties worth
// labeling in the profile.
func (r *AccountRegistry) UnknownAccounts() []*models.Account {
	var out []*models.Account
	for _, acc := range r.accounts {
		if acc.Unknown() {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}
