package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/agora-markets/agora/internal/asset"
	"github.com/agora-markets/agora/internal/bank"
	"github.com/agora-markets/agora/internal/market"
)

// Server exposes the market engines over HTTP. Caller identity is taken
// from the request, the way a local JSON-RPC endpoint trusts its operator;
// there is no authentication layer.
type Server struct {
	props  *market.ProposalEngine
	aucts  *market.AuctionEngine
	assets *asset.Ledger
	funds  *bank.Bank
}

// NewServer creates a Server over the given engines and ledgers.
func NewServer(props *market.ProposalEngine, aucts *market.AuctionEngine, assets *asset.Ledger, funds *bank.Bank) *Server {
	return &Server{props: props, aucts: aucts, assets: assets, funds: funds}
}

// Router builds the route tree. The WebSocket feed endpoint is mounted by
// the caller alongside this router.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Post("/assets/mint", s.handleMint)
	r.Get("/assets/{owner}/{id}", s.handleAssetBalance)
	r.Post("/bank/deposit", s.handleDeposit)
	r.Get("/bank/{account}", s.handleBankBalance)

	r.Route("/listings", func(r chi.Router) {
		r.Post("/", s.handleList)
		r.Get("/{id}", s.handleGetListing)
		r.Delete("/{id}", s.handleCancelListing)
		r.Post("/{id}/proposals", s.handlePropose)
		r.Post("/{id}/proposals/{pid}/accept", s.handleAccept)
		r.Delete("/{id}/proposals/{pid}", s.handleCancelPropose)
	})

	r.Route("/auctions", func(r chi.Router) {
		r.Post("/", s.handleAuctionList)
		r.Get("/{id}", s.handleGetAuction)
		r.Get("/{id}/min-bid", s.handleMinBid)
		r.Post("/{id}/bids", s.handleBid)
		r.Post("/{id}/settle", s.handleSettle)
		r.Delete("/{id}", s.handleAuctionCancel)
	})

	return r
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To      string `json:"to"`
		AssetID uint64 `json:"assetId"`
		Amount  uint64 `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	s.assets.Mint(to, req.AssetID, req.Amount)
	writeJSON(w, http.StatusOK, map[string]uint64{"balance": s.assets.BalanceOf(to, req.AssetID)})
}

func (s *Server) handleAssetBalance(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress(chi.URLParam(r, "owner"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"balance": s.assets.BalanceOf(owner, id)})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To        string `json:"to"`
		AmountWei string `json:"amountWei"`
	}
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseWei(req.AmountWei)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.funds.Deposit(to, amount); err != nil {
		writeBadRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balanceWei": s.funds.BalanceOf(to).String()})
}

func (s *Server) handleBankBalance(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(chi.URLParam(r, "account"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balanceWei": s.funds.BalanceOf(account).String()})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seller  string `json:"seller"`
		AssetID uint64 `json:"assetId"`
		Amount  uint64 `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	seller, err := parseAddress(req.Seller)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	id, err := s.props.List(seller, req.AssetID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"listingId": id})
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	l, ok := s.props.Listing(id)
	if !ok {
		writeError(w, market.ErrInvalidListing)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"listingId": l.ID,
		"seller":    l.Seller.Hex(),
		"assetId":   l.AssetID,
		"amount":    l.Amount,
	})
}

func (s *Server) handleCancelListing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	caller, err := parseAddress(r.URL.Query().Get("caller"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.props.CancelListing(caller, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Buyer      string `json:"buyer"`
		Amount     uint64 `json:"amount"`
		PaymentWei string `json:"paymentWei"`
	}
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	buyer, err := parseAddress(req.Buyer)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	payment, err := parseWei(req.PaymentWei)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	pid, err := s.props.Propose(buyer, id, req.Amount, payment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"proposalId": pid})
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
	}
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	pid, err := pathID(r, "pid")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.props.Accept(caller, id, pid); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelPropose(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	pid, err := pathID(r, "pid")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	caller, err := parseAddress(r.URL.Query().Get("caller"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.props.CancelPropose(caller, id, pid); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuctionList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seller      string `json:"seller"`
		AssetID     uint64 `json:"assetId"`
		Amount      uint64 `json:"amount"`
		ReserveWei  string `json:"reserveWei"`
		DurationSec int64  `json:"durationSec"`
	}
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	seller, err := parseAddress(req.Seller)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	reserve, err := parseWei(req.ReserveWei)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	id, err := s.aucts.List(seller, req.AssetID, req.Amount, reserve, time.Duration(req.DurationSec)*time.Second)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"auctionId": id})
}

func (s *Server) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	a, ok := s.aucts.Get(id)
	if !ok {
		writeError(w, market.ErrAuctionNotFound)
		return
	}
	var endUnix int64
	if !a.EndTime.IsZero() {
		endUnix = a.EndTime.Unix()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"auctionId":   a.ID,
		"seller":      a.Seller.Hex(),
		"assetId":     a.AssetID,
		"amount":      a.Amount,
		"reserveWei":  a.ReservePrice.String(),
		"endTimeUnix": endUnix,
		"bidder":      a.Bidder.Hex(),
		"bidWei":      a.Bid.String(),
		"ended":       s.aucts.Ended(id),
	})
}

func (s *Server) handleMinBid(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	floor, err := s.aucts.MinBid(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"minBidWei": floor.String()})
}

func (s *Server) handleBid(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Bidder   string `json:"bidder"`
		ValueWei string `json:"valueWei"`
	}
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	bidder, err := parseAddress(req.Bidder)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	value, err := parseWei(req.ValueWei)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.aucts.Bid(bidder, id, value); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.aucts.Settle(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuctionCancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	caller, err := parseAddress(r.URL.Query().Get("caller"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.aucts.Cancel(caller, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("malformed request body: %w", err)
	}
	return nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseWei(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid wei amount %q", s)
	}
	return v, nil
}

func pathID(r *http.Request, name string) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, chi.URLParam(r, name))
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps engine rejections onto HTTP statuses: absent records are
// 404, malformed parameters 400, identity mismatches 403, and every other
// business-rule rejection 409.
func statusFor(err error) int {
	switch {
	case errors.Is(err, market.ErrAuctionNotFound),
		errors.Is(err, market.ErrInvalidListing),
		errors.Is(err, market.ErrInvalidAsset):
		return http.StatusNotFound
	case errors.Is(err, market.ErrInvalidAmount),
		errors.Is(err, market.ErrPriceNotDivisible),
		errors.Is(err, market.ErrReserveTooLow):
		return http.StatusBadRequest
	case errors.Is(err, market.ErrNotYourProposal),
		errors.Is(err, market.ErrNotYourAuction),
		errors.Is(err, market.ErrInvalidProposal):
		return http.StatusForbidden
	default:
		return http.StatusConflict
	}
}
