package market

import "errors"

// Sentinel errors returned by the two engines. Every failure is a named,
// non-retryable business-rule rejection; callers match with errors.Is and
// decide whether to retry with corrected parameters.
var (
	// Shared listing lifecycle.
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidAsset   = errors.New("invalid asset")
	ErrInvalidListing = errors.New("invalid listing")

	// Proposal engine.
	ErrInvalidProposal       = errors.New("invalid proposal")
	ErrInvalidProposalAmount = errors.New("invalid proposal amount")
	ErrPriceNotDivisible     = errors.New("total price not divisible by amount")
	ErrNotYourProposal       = errors.New("not your proposal")

	// Auction engine.
	ErrAuctionNotFound   = errors.New("auction not found")
	ErrAuctionOver       = errors.New("auction is over")
	ErrBidBelowReserve   = errors.New("bid below reserve price")
	ErrBidTooLow         = errors.New("bid below minimum increment")
	ErrOutstandingBid    = errors.New("caller already holds the outstanding bid")
	ErrNotYourAuction    = errors.New("not your auction")
	ErrAuctionInProgress = errors.New("auction has a bid in progress")
	ErrStillInProgress   = errors.New("auction still in progress")
	ErrAlreadySettled    = errors.New("auction already settled")
	ErrReserveTooLow     = errors.New("reserve price too low")

	// Custody receive hook.
	ErrUnsolicitedTransfer = errors.New("unsolicited transfer rejected")
)
