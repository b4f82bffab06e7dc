package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// escrowLedger tracks native-currency amounts an engine holds on behalf of
// third parties pending refund or payout. It is pure bookkeeping: every
// fund movement through the bank is paired with a lock or release here in
// the same critical section, so the ledger total always equals the funds
// the engine account actually holds. Not safe for concurrent use on its
// own; the owning engine's mutex serializes access.
type escrowLedger struct {
	held  map[common.Address]*big.Int
	total *big.Int
}

func newEscrowLedger() *escrowLedger {
	return &escrowLedger{
		held:  make(map[common.Address]*big.Int),
		total: new(big.Int),
	}
}

// lock records amount as held on behalf of owner.
func (e *escrowLedger) lock(owner common.Address, amount *big.Int) {
	if bal, ok := e.held[owner]; ok {
		bal.Add(bal, amount)
	} else {
		e.held[owner] = new(big.Int).Set(amount)
	}
	e.total.Add(e.total, amount)
}

// release records amount as no longer held on behalf of owner.
func (e *escrowLedger) release(owner common.Address, amount *big.Int) {
	bal, ok := e.held[owner]
	if !ok {
		return
	}
	bal.Sub(bal, amount)
	if bal.Sign() <= 0 {
		delete(e.held, owner)
	}
	e.total.Sub(e.total, amount)
}

// heldBy returns a copy of the amount currently held for owner.
func (e *escrowLedger) heldBy(owner common.Address) *big.Int {
	if bal, ok := e.held[owner]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Total returns a copy of the full amount currently held.
func (e *escrowLedger) Total() *big.Int {
	return new(big.Int).Set(e.total)
}
