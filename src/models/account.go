package models

// Account is a lazily-created record for any address the ledger has seen.
// Added marks addresses the user tracks as their own. Records are owned by
// the processors.AccountRegistry arena: the same normalized address always
// resolves to the same *Account, so identity-based aggregation is safe.
// Hidden status is derived by the registry, not stored here, so hiding an
// address retroactively affects every existing reference.
type Account struct {
	Address string `json:"address"`
	Label   string `json:"label"`
	Added   bool   `json:"added"`
}

// Unknown reports whether the account was never labeled: its label still
// equals its own address. Used for diagnostic reporting.
func (a *Account) Unknown() bool {
	return a.Label == a.Address
}
