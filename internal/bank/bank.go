package bank

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel errors returned by Bank operations.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountClosed     = errors.New("recipient cannot receive funds")
	ErrNegativeAmount    = errors.New("negative amount")
)

// Bank is a native-currency ledger. Transfers are exact-amount and
// synchronous: either the full amount moves or the operation fails with no
// balance change. Amounts are wei-denominated big integers.
type Bank struct {
	mu       sync.RWMutex
	accounts map[common.Address]*big.Int
	closed   map[common.Address]bool
}

// New creates an empty Bank.
func New() *Bank {
	return &Bank{
		accounts: make(map[common.Address]*big.Int),
		closed:   make(map[common.Address]bool),
	}
}

// Deposit credits amount to the given account.
func (b *Bank) Deposit(to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(to, amount)
	return nil
}

// BalanceOf returns the account's current balance. The returned value is a
// copy; mutating it does not affect the ledger.
func (b *Bank) BalanceOf(account common.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if bal, ok := b.accounts[account]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Close marks an account as unable to receive funds. Transfers to a closed
// account fail the whole calling operation.
func (b *Bank) Close(account common.Address) {
	b.mu.Lock()
	b.closed[account] = true
	b.mu.Unlock()
}

// Transfer moves amount from one account to another. It fails with
// ErrInsufficientFunds if the sender's balance is short and with
// ErrAccountClosed if the recipient cannot receive; in both cases no
// balance changes.
func (b *Bank) Transfer(from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed[to] {
		return fmt.Errorf("%w: %s", ErrAccountClosed, to.Hex())
	}

	bal, ok := b.accounts[from]
	if !ok || bal.Cmp(amount) < 0 {
		have := new(big.Int)
		if ok {
			have = bal
		}
		return fmt.Errorf("%w: %s has %s, needs %s",
			ErrInsufficientFunds, from.Hex(), have, amount)
	}

	bal.Sub(bal, amount)
	b.credit(to, amount)
	return nil
}

// credit adds amount to an account. Callers hold b.mu.
func (b *Bank) credit(to common.Address, amount *big.Int) {
	if bal, ok := b.accounts[to]; ok {
		bal.Add(bal, amount)
		return
	}
	b.accounts[to] = new(big.Int).Set(amount)
}
