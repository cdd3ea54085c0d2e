package processors

import "errors"

// Data-integrity violations. These abort the run with the offending
// transaction hash and commodity attached via fmt.Errorf("%w", ...) wrapping;
// handlers match them with errors.Is.
var (
	// ErrSymbolCollision: a contract address was seen with two different
	// token symbols. Duplicate-symbol collisions corrupt the commodity
	// registry, so the build aborts rather than silently overwriting.
	ErrSymbolCollision = errors.New("contract symbol collision")

	// ErrDisposalBeforeAcquisition: a SELL/WITHDRAW arrived for a commodity
	// with no inventory at all, meaning its acquisition was never recorded.
	ErrDisposalBeforeAcquisition = errors.New("disposal before any acquisition")

	// ErrOversold: the FIFO queue emptied while liquidation demand remained,
	// meaning more was sold than was ever bought.
	ErrOversold = errors.New("disposal exceeds inventory")

	// ErrNonPositiveAmount: a disposal movement carried a non-positive
	// amount, or an acquisition arrived through the disposal branch.
	ErrNonPositiveAmount = errors.New("non-positive disposal amount")
)
