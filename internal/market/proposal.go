package market

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/agora-markets/agora/internal/asset"
	"github.com/agora-markets/agora/internal/bank"
)

// Proposal is a buyer's priced, escrowed offer against one listing. A zero
// Buyer means the slot is empty, consumed, or cancelled, in which case
// Amount and Price are zero as well.
type Proposal struct {
	Amount uint64
	Price  *big.Int
	Buyer  common.Address
}

type proposalKey struct {
	ListingID  uint64
	ProposalID uint64
}

type offerKey struct {
	ListingID uint64
	Buyer     common.Address
}

// ProposalEngine runs the negotiated proposal market: sellers list a
// quantity, buyers attach escrowed priced proposals, and the seller accepts
// exactly one whole-listing proposal. Funds and assets are custodied by the
// engine for the lifetime of each offer; every transition reconciles both
// ledgers in one critical section.
type ProposalEngine struct {
	mu     sync.Mutex
	book   *listingBook
	cust   *custody
	funds  *bank.Bank
	escrow *escrowLedger
	feed   *Feed

	proposals map[proposalKey]*Proposal
	counters  map[uint64]uint64 // next proposal id per listing

	// active maps (listing, buyer) to the buyer's proposal slot. It is
	// authoritative only when the referenced slot's Buyer matches; a stale
	// entry left behind by a cleared slot is ignored and re-pointed.
	active map[offerKey]uint64
}

// NewProposalEngine creates a ProposalEngine backed by the given ledgers.
// Listing ids start at 0.
func NewProposalEngine(assets *asset.Ledger, funds *bank.Bank, feed *Feed) *ProposalEngine {
	cust := newCustody(assets, "agora/proposal-engine")
	return &ProposalEngine{
		book:      newListingBook(cust, 0),
		cust:      cust,
		funds:     funds,
		escrow:    newEscrowLedger(),
		feed:      feed,
		proposals: make(map[proposalKey]*Proposal),
		counters:  make(map[uint64]uint64),
		active:    make(map[offerKey]uint64),
	}
}

// Account returns the engine's custody account address.
func (e *ProposalEngine) Account() common.Address {
	return e.cust.account
}

// List pulls amount units of assetID from the seller into custody and opens
// a listing. Returns the new listing id.
func (e *ProposalEngine) List(seller common.Address, assetID, amount uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := e.book.create(seller, assetID, amount)
	if err != nil {
		return 0, err
	}
	e.feed.Publish(ListEvent{ListingID: id, Seller: seller, AssetID: assetID, Amount: amount})
	return id, nil
}

// Propose submits a priced offer for amount units of the listing. The full
// payment is escrowed by the engine. If the buyer already has a live
// proposal on this listing, the old escrowed price is refunded and the new
// payment takes its slot in place, so the buyer's net outlay is
// payment − oldPrice and the proposal id counter does not advance.
func (e *ProposalEngine) Propose(buyer common.Address, listingID, amount uint64, payment *big.Int) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.book.get(listingID)
	if l == nil || l.Amount == 0 {
		return 0, fmt.Errorf("%w: listing %d is not active", ErrInvalidAsset, listingID)
	}
	if amount == 0 || amount > l.Amount {
		return 0, fmt.Errorf("%w: %d of %d listed", ErrInvalidAmount, amount, l.Amount)
	}
	if buyer == l.Seller {
		return 0, fmt.Errorf("%w: cannot propose on your own listing", ErrInvalidProposal)
	}
	if payment == nil || payment.Sign() < 0 {
		return 0, fmt.Errorf("%w: nil or negative payment", ErrInvalidAmount)
	}
	if new(big.Int).Mod(payment, new(big.Int).SetUint64(amount)).Sign() != 0 {
		return 0, fmt.Errorf("%w: %s / %d", ErrPriceNotDivisible, payment, amount)
	}

	key := offerKey{listingID, buyer}
	if pid, ok := e.active[key]; ok {
		pk := proposalKey{listingID, pid}
		if p := e.proposals[pk]; p != nil && p.Buyer == buyer {
			return pid, e.replaceProposal(l, pk, p, amount, payment)
		}
		// Stale index entry: the slot was cleared without the index. Drop it
		// and fall through to a fresh allocation.
		delete(e.active, key)
	}

	if err := e.funds.Transfer(buyer, e.cust.account, payment); err != nil {
		return 0, err
	}
	pid := e.counters[listingID]
	e.counters[listingID]++
	e.proposals[proposalKey{listingID, pid}] = &Proposal{
		Amount: amount,
		Price:  new(big.Int).Set(payment),
		Buyer:  buyer,
	}
	e.active[key] = pid
	e.escrow.lock(buyer, payment)

	e.feed.Publish(ProposeEvent{
		ListingID: listingID, ProposalID: pid,
		Seller: l.Seller, Buyer: buyer,
		AssetID: l.AssetID, Amount: amount, Price: new(big.Int).Set(payment),
	})
	return pid, nil
}

// replaceProposal refunds the buyer's previous escrowed price and charges
// the new payment, mutating the existing slot in place. If the charge fails
// the refund is reversed so the caller observes no state change.
func (e *ProposalEngine) replaceProposal(l *Listing, pk proposalKey, p *Proposal, amount uint64, payment *big.Int) error {
	oldPrice := new(big.Int).Set(p.Price)
	if err := e.funds.Transfer(e.cust.account, p.Buyer, oldPrice); err != nil {
		return err
	}
	if err := e.funds.Transfer(p.Buyer, e.cust.account, payment); err != nil {
		// Roll the refund back; the buyer just received it, so this cannot
		// come up short.
		e.funds.Transfer(p.Buyer, e.cust.account, oldPrice)
		return err
	}
	e.escrow.release(p.Buyer, oldPrice)
	e.escrow.lock(p.Buyer, payment)
	p.Amount = amount
	p.Price = new(big.Int).Set(payment)

	e.feed.Publish(ProposeEvent{
		ListingID: pk.ListingID, ProposalID: pk.ProposalID,
		Seller: l.Seller, Buyer: p.Buyer,
		AssetID: l.AssetID, Amount: amount, Price: new(big.Int).Set(payment),
	})
	return nil
}

// Accept settles the listing against one proposal: the custodied asset goes
// to the proposal's buyer, the escrowed price to the seller, and the listing
// ends. Only the seller may accept, and only a proposal covering the full
// remaining listing amount qualifies; there are no partial fills. Other live
// proposals on the listing stay independently cancellable.
func (e *ProposalEngine) Accept(caller common.Address, listingID, proposalID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.book.get(listingID)
	if l == nil || l.Amount == 0 {
		return fmt.Errorf("%w: listing %d is not active", ErrInvalidAsset, listingID)
	}
	if caller != l.Seller {
		return fmt.Errorf("%w: only the seller may accept", ErrInvalidProposal)
	}
	pk := proposalKey{listingID, proposalID}
	p := e.proposals[pk]
	if p == nil || p.Buyer == (common.Address{}) || p.Amount != l.Amount {
		return fmt.Errorf("%w: proposal %d", ErrInvalidProposalAmount, proposalID)
	}

	buyer, price := p.Buyer, new(big.Int).Set(p.Price)
	if err := e.funds.Transfer(e.cust.account, l.Seller, price); err != nil {
		return err
	}
	if err := e.cust.push(buyer, l.AssetID, l.Amount); err != nil {
		e.funds.Transfer(l.Seller, e.cust.account, price)
		return err
	}
	e.escrow.release(buyer, price)

	amount, assetID := l.Amount, l.AssetID
	e.book.end(listingID)
	*p = Proposal{Price: new(big.Int)}
	delete(e.active, offerKey{listingID, buyer})

	e.feed.Publish(ListingEndedEvent{ListingID: listingID})
	e.feed.Publish(AcceptEvent{
		ListingID: listingID, ProposalID: proposalID,
		Seller: l.Seller, Buyer: buyer,
		AssetID: assetID, Amount: amount, Price: price,
	})
	return nil
}

// CancelListing returns the custodied asset to the seller and ends the
// listing. Outstanding proposals are untouched; each buyer reclaims their
// own escrow via CancelPropose.
func (e *ProposalEngine) CancelListing(caller common.Address, listingID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot, err := e.book.cancel(listingID, caller)
	if err != nil {
		return err
	}
	e.feed.Publish(CancelListingEvent{
		ListingID: listingID, Seller: snapshot.Seller,
		AssetID: snapshot.AssetID, Amount: snapshot.Amount,
	})
	return nil
}

// CancelPropose refunds the caller's escrowed price and clears their
// proposal slot. It works regardless of the owning listing's state: a
// proposal settles its own escrow even after the listing ended or was
// cancelled. A zero-buyer slot rejects the call, which also covers ids that
// never existed or were already consumed.
func (e *ProposalEngine) CancelPropose(caller common.Address, listingID, proposalID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pk := proposalKey{listingID, proposalID}
	p := e.proposals[pk]
	if p == nil || p.Buyer == (common.Address{}) || p.Buyer != caller {
		return fmt.Errorf("%w: proposal %d", ErrNotYourProposal, proposalID)
	}

	price := new(big.Int).Set(p.Price)
	if err := e.funds.Transfer(e.cust.account, caller, price); err != nil {
		return err
	}
	e.escrow.release(caller, price)

	amount := p.Amount
	*p = Proposal{Price: new(big.Int)}
	delete(e.active, offerKey{listingID, caller})

	var seller common.Address
	if l := e.book.get(listingID); l != nil {
		seller = l.Seller
	}
	e.feed.Publish(CancelProposalEvent{
		ListingID: listingID, ProposalID: proposalID,
		Seller: seller, Buyer: caller, Amount: amount,
	})
	return nil
}

// Listing returns a copy of the listing record.
func (e *ProposalEngine) Listing(listingID uint64) (Listing, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l := e.book.get(listingID)
	if l == nil {
		return Listing{}, false
	}
	return *l, true
}

// GetProposal returns a copy of the proposal slot.
func (e *ProposalEngine) GetProposal(listingID, proposalID uint64) (Proposal, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.proposals[proposalKey{listingID, proposalID}]
	if p == nil {
		return Proposal{}, false
	}
	out := *p
	if p.Price != nil {
		out.Price = new(big.Int).Set(p.Price)
	}
	return out, true
}

// ActiveProposal returns the buyer's live proposal id on the listing. The
// index entry is honoured only if the referenced slot still belongs to the
// buyer.
func (e *ProposalEngine) ActiveProposal(listingID uint64, buyer common.Address) (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pid, ok := e.active[offerKey{listingID, buyer}]
	if !ok {
		return 0, false
	}
	p := e.proposals[proposalKey{listingID, pid}]
	if p == nil || p.Buyer != buyer {
		return 0, false
	}
	return pid, true
}

// TotalListings returns the number of listings ever created, terminal ones
// included.
func (e *ProposalEngine) TotalListings() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.nextID
}

// ProposalCount returns the number of proposal ids allocated for a listing.
func (e *ProposalEngine) ProposalCount(listingID uint64) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counters[listingID]
}

// Escrowed returns the funds currently held on behalf of the given buyer.
func (e *ProposalEngine) Escrowed(buyer common.Address) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.escrow.heldBy(buyer)
}

// EscrowedTotal returns the full amount of buyer funds the engine holds.
func (e *ProposalEngine) EscrowedTotal() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.escrow.Total()
}
