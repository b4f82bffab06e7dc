package market

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/agora-markets/agora/internal/asset"
	"github.com/agora-markets/agora/internal/bank"
)

var (
	seller = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	buyer  = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	buyer2 = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

// fixture wires both engines over fresh ledgers. The seller holds token
// balances, the buyers hold funds.
type fixture struct {
	assets *asset.Ledger
	funds  *bank.Bank
	feed   *Feed
	props  *ProposalEngine
	aucts  *AuctionEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	assets := asset.NewLedger()
	funds := bank.New()
	feed := NewFeed()

	assets.Mint(seller, 0, 1)
	assets.Mint(seller, 1, 1)
	assets.Mint(seller, 3, 4)
	assets.Mint(seller, 4, 2)

	funds.Deposit(buyer, ether(10))
	funds.Deposit(buyer2, ether(10))

	return &fixture{
		assets: assets,
		funds:  funds,
		feed:   feed,
		props:  NewProposalEngine(assets, funds, feed),
		aucts:  NewAuctionEngine(assets, funds, feed),
	}
}

// checkConservation asserts that each engine's bank balance equals the sum
// it has recorded as escrowed, the quiescent-point invariant every
// transition must preserve.
func (fx *fixture) checkConservation(t *testing.T) {
	t.Helper()
	if held, bal := fx.props.EscrowedTotal(), fx.funds.BalanceOf(fx.props.Account()); held.Cmp(bal) != 0 {
		t.Fatalf("proposal engine escrow ledger %s != bank balance %s", held, bal)
	}
	if held, bal := fx.aucts.EscrowedTotal(), fx.funds.BalanceOf(fx.aucts.Account()); held.Cmp(bal) != 0 {
		t.Fatalf("auction engine escrow ledger %s != bank balance %s", held, bal)
	}
}

// ether returns n ether in wei.
func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

// milliether returns n/1000 ether in wei.
func milliether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e15))
}

// fakeClock is a settable time source for the auction engine.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
