package market

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Listing is a seller's offer of a fixed quantity of one asset id, held in
// engine custody while active. Amount > 0 iff the listing is active; once an
// accepted or cancelled listing drops to zero it is terminal and the id is
// never reused.
type Listing struct {
	ID      uint64
	Seller  common.Address
	AssetID uint64
	Amount  uint64
}

// listingBook is the shared listing lifecycle used by both engines: create
// pulls the asset into custody, cancel returns it to the seller, end marks
// the listing terminal after the asset has been routed to a winner. Each
// engine owns one book with its own id space. Not safe for concurrent use on
// its own; the owning engine's mutex serializes access.
type listingBook struct {
	cust   *custody
	nextID uint64
	items  map[uint64]*Listing
}

func newListingBook(cust *custody, firstID uint64) *listingBook {
	return &listingBook{
		cust:   cust,
		nextID: firstID,
		items:  make(map[uint64]*Listing),
	}
}

// create pulls amount units of assetID into custody and stores an active
// listing under the next id.
func (b *listingBook) create(seller common.Address, assetID, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, fmt.Errorf("%w: listing amount must be positive", ErrInvalidAmount)
	}
	if err := b.cust.pull(seller, assetID, amount); err != nil {
		return 0, err
	}
	id := b.nextID
	b.nextID++
	b.items[id] = &Listing{ID: id, Seller: seller, AssetID: assetID, Amount: amount}
	return id, nil
}

// cancel returns the custodied asset to the seller and marks the listing
// terminal. Only the seller of an active listing may cancel; everything else
// is an invalid listing, including ids that were never allocated.
func (b *listingBook) cancel(id uint64, caller common.Address) (Listing, error) {
	l, ok := b.items[id]
	if !ok || l.Amount == 0 || l.Seller != caller {
		return Listing{}, fmt.Errorf("%w: %d", ErrInvalidListing, id)
	}
	if err := b.cust.push(caller, l.AssetID, l.Amount); err != nil {
		return Listing{}, err
	}
	snapshot := *l
	l.Amount = 0
	return snapshot, nil
}

// end marks a listing terminal without touching custody; the asset has
// already been routed to the winner by the caller.
func (b *listingBook) end(id uint64) {
	if l, ok := b.items[id]; ok {
		l.Amount = 0
	}
}

// get returns the listing record, or nil if the id was never allocated.
func (b *listingBook) get(id uint64) *Listing {
	return b.items[id]
}
