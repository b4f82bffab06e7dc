package asset

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel errors returned by Ledger operations.
var (
	ErrInsufficientBalance = errors.New("insufficient balance for transfer")
	ErrZeroAddress         = errors.New("transfer to the zero address")
)

// Receiver is implemented by accounts that want to vet inbound transfers.
// Returning an error rejects the transfer and fails the whole operation,
// leaving balances untouched.
type Receiver interface {
	OnTransferReceived(operator, from common.Address, id, amount uint64) error
}

// balanceKey identifies one holder's position in one token id.
type balanceKey struct {
	Owner common.Address
	ID    uint64
}

// Ledger is a multi-token balance ledger in the ERC-1155 model: every token
// id is fungible within itself and carries an integer quantity. Transfers to
// registered receivers invoke their acceptance hook before any balance moves.
type Ledger struct {
	mu        sync.RWMutex
	balances  map[balanceKey]uint64
	receivers map[common.Address]Receiver
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances:  make(map[balanceKey]uint64),
		receivers: make(map[common.Address]Receiver),
	}
}

// Register installs an acceptance hook for the given account. Subsequent
// transfers to that account succeed only if the hook accepts them.
func (l *Ledger) Register(account common.Address, r Receiver) {
	l.mu.Lock()
	l.receivers[account] = r
	l.mu.Unlock()
}

// Mint credits amount units of token id to the given account.
func (l *Ledger) Mint(to common.Address, id, amount uint64) {
	l.mu.Lock()
	l.balances[balanceKey{to, id}] += amount
	l.mu.Unlock()
}

// BalanceOf returns the balance of token id held by owner.
func (l *Ledger) BalanceOf(owner common.Address, id uint64) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[balanceKey{owner, id}]
}

// SafeTransferFrom moves amount units of token id from one account to
// another on behalf of operator. If the recipient has a registered Receiver
// its hook is consulted first; a hook rejection aborts the transfer with the
// hook's error and no balance changes.
func (l *Ledger) SafeTransferFrom(operator, from, to common.Address, id, amount uint64) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := balanceKey{from, id}
	if l.balances[key] < amount {
		return fmt.Errorf("%w: token %d, have %d, need %d",
			ErrInsufficientBalance, id, l.balances[key], amount)
	}

	if hook, ok := l.receivers[to]; ok {
		if err := hook.OnTransferReceived(operator, from, id, amount); err != nil {
			return err
		}
	}

	l.balances[key] -= amount
	l.balances[balanceKey{to, id}] += amount
	return nil
}
