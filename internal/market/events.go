package market

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Event topics: pre-computed keccak256 of each event's signature string,
// mirroring Ethereum log topics so off-chain observers can key on them.
var (
	topicList           = crypto.Keccak256Hash([]byte("List(uint64,address,uint64,uint64)"))
	topicPropose        = crypto.Keccak256Hash([]byte("Propose(uint64,uint64,address,address,uint64,uint64,uint256)"))
	topicAccept         = crypto.Keccak256Hash([]byte("Accept(uint64,uint64,address,address,uint64,uint64,uint256)"))
	topicListingEnded   = crypto.Keccak256Hash([]byte("ListingEnded(uint64)"))
	topicCancelListing  = crypto.Keccak256Hash([]byte("CancelListing(uint64,address,uint64,uint64)"))
	topicCancelProposal = crypto.Keccak256Hash([]byte("CancelProposal(uint64,uint64,address,address,uint64)"))
	topicAuctionList    = crypto.Keccak256Hash([]byte("AuctionList(uint64,address,uint64,uint64,int64,int64,uint256)"))
	topicAuctionBid     = crypto.Keccak256Hash([]byte("AuctionBid(uint64,uint64,address,uint256,address,uint256,address,int64)"))
	topicAuctionCancel  = crypto.Keccak256Hash([]byte("AuctionCancel(uint64)"))
	topicAuctionSettle  = crypto.Keccak256Hash([]byte("AuctionSettle(uint64,uint64,address,address,uint256,address)"))
)

// Event is the interface satisfied by every market event. Kind is a stable
// string for stream consumers; Topic is the keccak256 signature hash.
type Event interface {
	Kind() string
	Topic() common.Hash
}

// ListEvent is emitted when a seller lists an asset on the proposal market.
type ListEvent struct {
	ListingID uint64         `json:"listingId"`
	Seller    common.Address `json:"seller"`
	AssetID   uint64         `json:"assetId"`
	Amount    uint64         `json:"amount"`
}

func (ListEvent) Kind() string       { return "list" }
func (ListEvent) Topic() common.Hash { return topicList }

// ProposeEvent is emitted when a buyer submits or replaces a proposal.
type ProposeEvent struct {
	ListingID  uint64         `json:"listingId"`
	ProposalID uint64         `json:"proposalId"`
	Seller     common.Address `json:"seller"`
	Buyer      common.Address `json:"buyer"`
	AssetID    uint64         `json:"assetId"`
	Amount     uint64         `json:"amount"`
	Price      *big.Int       `json:"price"`
}

func (ProposeEvent) Kind() string       { return "propose" }
func (ProposeEvent) Topic() common.Hash { return topicPropose }

// AcceptEvent is emitted when the seller accepts a proposal.
type AcceptEvent struct {
	ListingID  uint64         `json:"listingId"`
	ProposalID uint64         `json:"proposalId"`
	Seller     common.Address `json:"seller"`
	Buyer      common.Address `json:"buyer"`
	AssetID    uint64         `json:"assetId"`
	Amount     uint64         `json:"amount"`
	Price      *big.Int       `json:"price"`
}

func (AcceptEvent) Kind() string       { return "accept" }
func (AcceptEvent) Topic() common.Hash { return topicAccept }

// ListingEndedEvent is emitted when a listing leaves the active state
// through acceptance. It precedes the AcceptEvent for the same listing.
type ListingEndedEvent struct {
	ListingID uint64 `json:"listingId"`
}

func (ListingEndedEvent) Kind() string       { return "listing_ended" }
func (ListingEndedEvent) Topic() common.Hash { return topicListingEnded }

// CancelListingEvent is emitted when a seller cancels a proposal listing.
type CancelListingEvent struct {
	ListingID uint64         `json:"listingId"`
	Seller    common.Address `json:"seller"`
	AssetID   uint64         `json:"assetId"`
	Amount    uint64         `json:"amount"`
}

func (CancelListingEvent) Kind() string       { return "cancel_listing" }
func (CancelListingEvent) Topic() common.Hash { return topicCancelListing }

// CancelProposalEvent is emitted when a buyer withdraws a proposal.
type CancelProposalEvent struct {
	ListingID  uint64         `json:"listingId"`
	ProposalID uint64         `json:"proposalId"`
	Seller     common.Address `json:"seller"`
	Buyer      common.Address `json:"buyer"`
	Amount     uint64         `json:"amount"`
}

func (CancelProposalEvent) Kind() string       { return "cancel_proposal" }
func (CancelProposalEvent) Topic() common.Hash { return topicCancelProposal }

// AuctionListEvent is emitted when a seller opens a reserve auction.
type AuctionListEvent struct {
	AuctionID       uint64         `json:"auctionId"`
	Seller          common.Address `json:"seller"`
	AssetID         uint64         `json:"assetId"`
	Amount          uint64         `json:"amount"`
	Duration        time.Duration  `json:"duration"`
	ExtensionWindow time.Duration  `json:"extensionWindow"`
	ReservePrice    *big.Int       `json:"reservePrice"`
}

func (AuctionListEvent) Kind() string       { return "auction_list" }
func (AuctionListEvent) Topic() common.Hash { return topicAuctionList }

// AuctionBidEvent is emitted for every accepted bid. PrevBidder is the zero
// address and PrevBid zero for the opening bid.
type AuctionBidEvent struct {
	AuctionID  uint64         `json:"auctionId"`
	AssetID    uint64         `json:"assetId"`
	Bidder     common.Address `json:"bidder"`
	Value      *big.Int       `json:"value"`
	PrevBidder common.Address `json:"prevBidder"`
	PrevBid    *big.Int       `json:"prevBid"`
	Seller     common.Address `json:"seller"`
	EndTime    time.Time      `json:"endTime"`
}

func (AuctionBidEvent) Kind() string       { return "auction_bid" }
func (AuctionBidEvent) Topic() common.Hash { return topicAuctionBid }

// AuctionCancelEvent is emitted when a bid-free auction is withdrawn.
type AuctionCancelEvent struct {
	AuctionID uint64 `json:"auctionId"`
}

func (AuctionCancelEvent) Kind() string       { return "auction_cancel" }
func (AuctionCancelEvent) Topic() common.Hash { return topicAuctionCancel }

// AuctionSettleEvent is emitted when an expired auction settles to its
// winning bidder.
type AuctionSettleEvent struct {
	AuctionID         uint64         `json:"auctionId"`
	AssetID           uint64         `json:"assetId"`
	Seller            common.Address `json:"seller"`
	Winner            common.Address `json:"winner"`
	WinningBid        *big.Int       `json:"winningBid"`
	ProceedsRecipient common.Address `json:"proceedsRecipient"`
}

func (AuctionSettleEvent) Kind() string       { return "auction_settle" }
func (AuctionSettleEvent) Topic() common.Hash { return topicAuctionSettle }
