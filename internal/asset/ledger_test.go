package asset

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	vault = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

func TestMintAndBalance(t *testing.T) {
	l := NewLedger()
	l.Mint(alice, 3, 4)
	l.Mint(alice, 3, 2)

	if got := l.BalanceOf(alice, 3); got != 6 {
		t.Fatalf("expected balance 6, got %d", got)
	}
	if got := l.BalanceOf(alice, 4); got != 0 {
		t.Fatalf("expected balance 0 for unminted id, got %d", got)
	}
}

func TestSafeTransferFrom(t *testing.T) {
	l := NewLedger()
	l.Mint(alice, 1, 5)

	if err := l.SafeTransferFrom(alice, alice, bob, 1, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := l.BalanceOf(alice, 1); got != 2 {
		t.Fatalf("expected sender balance 2, got %d", got)
	}
	if got := l.BalanceOf(bob, 1); got != 3 {
		t.Fatalf("expected recipient balance 3, got %d", got)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	l := NewLedger()
	l.Mint(alice, 1, 1)

	err := l.SafeTransferFrom(alice, alice, bob, 1, 2)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := l.BalanceOf(alice, 1); got != 1 {
		t.Fatalf("failed transfer must not move balances, got %d", got)
	}
}

func TestTransferToZeroAddress(t *testing.T) {
	l := NewLedger()
	l.Mint(alice, 1, 1)

	err := l.SafeTransferFrom(alice, alice, common.Address{}, 1, 1)
	if !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
}

// acceptHook accepts or rejects all inbound transfers.
type acceptHook struct {
	reject error
	seen   int
}

func (h *acceptHook) OnTransferReceived(operator, from common.Address, id, amount uint64) error {
	h.seen++
	return h.reject
}

func TestReceiverHookAccepts(t *testing.T) {
	l := NewLedger()
	l.Mint(alice, 1, 2)

	hook := &acceptHook{}
	l.Register(vault, hook)

	if err := l.SafeTransferFrom(alice, alice, vault, 1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hook.seen != 1 {
		t.Fatalf("expected hook to run once, ran %d times", hook.seen)
	}
	if got := l.BalanceOf(vault, 1); got != 2 {
		t.Fatalf("expected vault balance 2, got %d", got)
	}
}

func TestReceiverHookRejects(t *testing.T) {
	l := NewLedger()
	l.Mint(alice, 1, 2)

	rejection := errors.New("not expecting a transfer")
	l.Register(vault, &acceptHook{reject: rejection})

	err := l.SafeTransferFrom(alice, alice, vault, 1, 2)
	if !errors.Is(err, rejection) {
		t.Fatalf("expected hook rejection, got %v", err)
	}
	if got := l.BalanceOf(alice, 1); got != 2 {
		t.Fatalf("rejected transfer must not move balances, got %d", got)
	}
	if got := l.BalanceOf(vault, 1); got != 0 {
		t.Fatalf("rejected transfer must not credit recipient, got %d", got)
	}
}
