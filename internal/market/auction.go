package market

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/agora-markets/agora/internal/asset"
	"github.com/agora-markets/agora/internal/bank"
)

// ExtensionWindow is the anti-snipe window: a bid landing within this span
// of the current end time pushes the end time out to now + ExtensionWindow.
const ExtensionWindow = 15 * time.Minute

// MinReservePrice is the wei floor for an auction's reserve price.
var MinReservePrice = big.NewInt(100)

// Auction is the public view of one reserve auction. A zero EndTime means no
// bid has been placed and the timer has not started. Settled survives the
// clearing of the other fields so a settled auction stays distinguishable
// from one that never existed.
type Auction struct {
	ID              uint64
	Seller          common.Address
	AssetID         uint64
	Amount          uint64
	ReservePrice    *big.Int
	Duration        time.Duration
	ExtensionWindow time.Duration
	EndTime         time.Time
	Bidder          common.Address
	Bid             *big.Int
	Settled         bool
}

// auctionState holds the bidding-side state for one auction; the listing
// side (seller, asset, amount) lives in the engine's listing book under the
// same id.
type auctionState struct {
	ReservePrice *big.Int
	Duration     time.Duration
	EndTime      time.Time
	Bidder       common.Address
	Bid          *big.Int
	Settled      bool
}

// AuctionEngine runs time-bounded reserve auctions: sellers custody a
// quantity with a reserve price and duration, buyers bid competitively with
// escrowed funds, and the highest bid wins once the clock runs out. Expiry
// is evaluated lazily against the injected clock at each call; there are no
// background timers.
type AuctionEngine struct {
	mu     sync.Mutex
	book   *listingBook
	cust   *custody
	funds  *bank.Bank
	escrow *escrowLedger
	feed   *Feed

	auctions map[uint64]*auctionState

	now func() time.Time // injectable clock for testing
}

// NewAuctionEngine creates an AuctionEngine backed by the given ledgers.
// Auction ids start at 1, independent of the proposal market's id space.
func NewAuctionEngine(assets *asset.Ledger, funds *bank.Bank, feed *Feed) *AuctionEngine {
	cust := newCustody(assets, "agora/auction-engine")
	return &AuctionEngine{
		book:     newListingBook(cust, 1),
		cust:     cust,
		funds:    funds,
		escrow:   newEscrowLedger(),
		feed:     feed,
		auctions: make(map[uint64]*auctionState),
		now:      time.Now,
	}
}

// SetClock replaces the engine's time source.
func (e *AuctionEngine) SetClock(now func() time.Time) {
	e.mu.Lock()
	e.now = now
	e.mu.Unlock()
}

// Account returns the engine's custody account address.
func (e *AuctionEngine) Account() common.Address {
	return e.cust.account
}

// List custodies amount units of assetID and opens a reserve auction. The
// timer starts on the first bid, not at listing time. Returns the auction id.
func (e *AuctionEngine) List(seller common.Address, assetID, amount uint64, reservePrice *big.Int, duration time.Duration) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount == 0 {
		return 0, fmt.Errorf("%w: auction amount must be positive", ErrInvalidAmount)
	}
	if reservePrice == nil || reservePrice.Cmp(MinReservePrice) < 0 {
		return 0, fmt.Errorf("%w: reserve must be at least %s wei", ErrReserveTooLow, MinReservePrice)
	}

	id, err := e.book.create(seller, assetID, amount)
	if err != nil {
		return 0, err
	}
	e.auctions[id] = &auctionState{
		ReservePrice: new(big.Int).Set(reservePrice),
		Duration:     duration,
		Bid:          new(big.Int),
	}

	e.feed.Publish(AuctionListEvent{
		AuctionID: id, Seller: seller, AssetID: assetID, Amount: amount,
		Duration: duration, ExtensionWindow: ExtensionWindow,
		ReservePrice: new(big.Int).Set(reservePrice),
	})
	return id, nil
}

// Bid places an escrowed bid. The previous high bidder, if any, is refunded
// in full in the same transition. The opening bid starts the timer at
// now + duration; a later bid landing within the extension window pushes the
// end time to now + window so it can always be answered.
func (e *AuctionEngine) Bid(caller common.Address, auctionID uint64, value *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if !ok || a.Settled {
		return fmt.Errorf("%w: %d", ErrAuctionNotFound, auctionID)
	}
	if value == nil || value.Sign() < 0 {
		return fmt.Errorf("%w: nil or negative bid", ErrInvalidAmount)
	}
	now := e.now()
	if !a.EndTime.IsZero() && !now.Before(a.EndTime) {
		return fmt.Errorf("%w: %d ended %s", ErrAuctionOver, auctionID, a.EndTime)
	}
	if a.EndTime.IsZero() && value.Cmp(a.ReservePrice) < 0 {
		return fmt.Errorf("%w: %s < %s", ErrBidBelowReserve, value, a.ReservePrice)
	}
	if a.Bidder != (common.Address{}) && caller == a.Bidder {
		return fmt.Errorf("%w: wait to be outbid", ErrOutstandingBid)
	}
	if floor := minBid(a); value.Cmp(floor) < 0 {
		return fmt.Errorf("%w: %s < %s", ErrBidTooLow, value, floor)
	}

	if err := e.funds.Transfer(caller, e.cust.account, value); err != nil {
		return err
	}
	prevBidder, prevBid := a.Bidder, new(big.Int).Set(a.Bid)
	if prevBidder != (common.Address{}) {
		if err := e.funds.Transfer(e.cust.account, prevBidder, prevBid); err != nil {
			e.funds.Transfer(e.cust.account, caller, value)
			return err
		}
		e.escrow.release(prevBidder, prevBid)
	}
	e.escrow.lock(caller, value)

	a.Bidder = caller
	a.Bid = new(big.Int).Set(value)
	if a.EndTime.IsZero() {
		a.EndTime = now.Add(a.Duration)
	} else if a.EndTime.Sub(now) <= ExtensionWindow {
		a.EndTime = now.Add(ExtensionWindow)
	}

	l := e.book.get(auctionID)
	e.feed.Publish(AuctionBidEvent{
		AuctionID: auctionID, AssetID: l.AssetID,
		Bidder: caller, Value: new(big.Int).Set(value),
		PrevBidder: prevBidder, PrevBid: prevBid,
		Seller: l.Seller, EndTime: a.EndTime,
	})
	return nil
}

// Cancel withdraws a bid-free auction, returning the custodied asset to the
// seller and deleting the record entirely. Any bid freezes the auction
// against cancellation: bidders' capital cannot be expropriated by seller
// withdrawal.
func (e *AuctionEngine) Cancel(caller common.Address, auctionID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if !ok || a.Settled {
		return fmt.Errorf("%w: %d", ErrAuctionNotFound, auctionID)
	}
	l := e.book.get(auctionID)
	if caller != l.Seller {
		return fmt.Errorf("%w: %d", ErrNotYourAuction, auctionID)
	}
	if a.Bidder != (common.Address{}) {
		return fmt.Errorf("%w: %d", ErrAuctionInProgress, auctionID)
	}

	if _, err := e.book.cancel(auctionID, caller); err != nil {
		return err
	}
	delete(e.auctions, auctionID)

	e.feed.Publish(AuctionCancelEvent{AuctionID: auctionID})
	return nil
}

// Settle closes an expired auction: the asset goes to the winning bidder and
// the winning bid to the seller. Settlement is one-way; the settled flag
// persists after the rest of the record is cleared so a second call fails
// with ErrAlreadySettled while existence queries report not-found.
func (e *AuctionEngine) Settle(auctionID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if ok && a.Settled {
		return fmt.Errorf("%w: %d", ErrAlreadySettled, auctionID)
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrAuctionNotFound, auctionID)
	}
	if a.EndTime.IsZero() || e.now().Before(a.EndTime) {
		return fmt.Errorf("%w: %d", ErrStillInProgress, auctionID)
	}

	l := e.book.get(auctionID)
	winner, winningBid := a.Bidder, new(big.Int).Set(a.Bid)
	seller, assetID, amount := l.Seller, l.AssetID, l.Amount

	if err := e.funds.Transfer(e.cust.account, seller, winningBid); err != nil {
		return err
	}
	if err := e.cust.push(winner, assetID, amount); err != nil {
		e.funds.Transfer(seller, e.cust.account, winningBid)
		return err
	}
	e.escrow.release(winner, winningBid)

	e.book.end(auctionID)
	*a = auctionState{Bid: new(big.Int), Settled: true}

	e.feed.Publish(AuctionSettleEvent{
		AuctionID: auctionID, AssetID: assetID,
		Seller: seller, Winner: winner, WinningBid: winningBid,
		ProceedsRecipient: seller,
	})
	return nil
}

// EndTime returns the auction's current end time; the zero time means no
// bid has been placed and the timer has not started.
func (e *AuctionEngine) EndTime(auctionID uint64) (time.Time, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if !ok || a.Settled {
		return time.Time{}, fmt.Errorf("%w: %d", ErrAuctionNotFound, auctionID)
	}
	return a.EndTime, nil
}

// Ended reports whether the auction's clock has run out. An auction with no
// bid has no running clock and is never ended, and an unknown or settled id
// reports false; the predicate is deliberately error-free.
func (e *AuctionEngine) Ended(auctionID uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if !ok || a.Settled || a.EndTime.IsZero() {
		return false
	}
	return !e.now().Before(a.EndTime)
}

// MinBid returns the smallest acceptable next bid: the reserve price before
// any bid, afterwards the current bid plus the larger of 10% of the current
// bid and 20% of the reserve. The reserve-derived floor keeps increments
// meaningful while the running bid is still small.
func (e *AuctionEngine) MinBid(auctionID uint64) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if !ok || a.Settled {
		return nil, fmt.Errorf("%w: %d", ErrAuctionNotFound, auctionID)
	}
	return minBid(a), nil
}

func minBid(a *auctionState) *big.Int {
	if a.Bidder == (common.Address{}) {
		return new(big.Int).Set(a.ReservePrice)
	}
	pctOfBid := new(big.Int).Div(a.Bid, big.NewInt(10))
	pctOfReserve := new(big.Int).Div(a.ReservePrice, big.NewInt(5))
	incr := pctOfBid
	if pctOfReserve.Cmp(pctOfBid) > 0 {
		incr = pctOfReserve
	}
	return new(big.Int).Add(a.Bid, incr)
}

// Get returns the public view of an auction, false if it was never created,
// was cancelled, or has settled.
func (e *AuctionEngine) Get(auctionID uint64) (Auction, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if !ok || a.Settled {
		return Auction{}, false
	}
	l := e.book.get(auctionID)
	return Auction{
		ID: auctionID, Seller: l.Seller, AssetID: l.AssetID, Amount: l.Amount,
		ReservePrice: new(big.Int).Set(a.ReservePrice),
		Duration:     a.Duration, ExtensionWindow: ExtensionWindow,
		EndTime: a.EndTime, Bidder: a.Bidder, Bid: new(big.Int).Set(a.Bid),
	}, true
}

// Escrowed returns the funds currently held on behalf of the given bidder.
func (e *AuctionEngine) Escrowed(bidder common.Address) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.escrow.heldBy(bidder)
}

// EscrowedTotal returns the full amount of bidder funds the engine holds.
func (e *AuctionEngine) EscrowedTotal() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.escrow.Total()
}
