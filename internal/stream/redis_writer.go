package stream

import (
	"context"
	"fmt"
	"sync"

	"github.com/agora-markets/agora/internal/market"
)

// RedisClient abstracts the Redis operations used by RedisWriter.
// In production this is satisfied by the go-redis adapter in client.go;
// in tests by a mock.
type RedisClient interface {
	HSet(ctx context.Context, key string, values ...any) error
	Del(ctx context.Context, keys ...string) error
}

// RedisWriter subscribes to the market feed and persists the latest
// observable state of every listing and auction into Redis using the schema:
//
//	Key:    listing:{id}            Fields: seller, asset_id, amount, status
//	Key:    auction:{id}            Fields: seller, asset_id, amount, bidder,
//	                                        bid, end_time_unix, status
//
// Writes are non-blocking: events are buffered in an internal channel and
// flushed by a dedicated goroutine, so a slow Redis never backs up the feed.
type RedisWriter struct {
	client RedisClient
	feed   <-chan market.Event
	buf    chan market.Event

	mu   sync.Mutex
	last map[string]string // last written serialization per key
}

// NewRedisWriter creates a RedisWriter reading from the given feed
// subscription.
func NewRedisWriter(client RedisClient, feed <-chan market.Event) *RedisWriter {
	return &RedisWriter{
		client: client,
		feed:   feed,
		buf:    make(chan market.Event, 1024),
		last:   make(map[string]string),
	}
}

// Run starts two goroutines: one to drain the feed into an internal buffer,
// and one to flush buffered events to Redis. It blocks until ctx is
// cancelled.
func (rw *RedisWriter) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-rw.feed:
				if !ok {
					return
				}
				select {
				case rw.buf <- ev:
				default:
					// Buffer full; drop rather than stall the feed.
				}
			}
		}
	}()

	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-rw.buf:
				if !ok {
					return
				}
				rw.write(ctx, ev)
			}
		}
	}()

	wg.Wait()
}

// write maps one event onto its Redis key mutation, suppressing writes that
// would not change the stored state.
func (rw *RedisWriter) write(ctx context.Context, ev market.Event) {
	var (
		key    string
		fields []any
	)

	switch ev := ev.(type) {
	case market.ListEvent:
		key = fmt.Sprintf("listing:%d", ev.ListingID)
		fields = []any{
			"seller", ev.Seller.Hex(),
			"asset_id", ev.AssetID,
			"amount", ev.Amount,
			"status", "active",
		}
	case market.ListingEndedEvent:
		key = fmt.Sprintf("listing:%d", ev.ListingID)
		fields = []any{"amount", 0, "status", "ended"}
	case market.CancelListingEvent:
		key = fmt.Sprintf("listing:%d", ev.ListingID)
		fields = []any{"amount", 0, "status", "cancelled"}
	case market.AuctionListEvent:
		key = fmt.Sprintf("auction:%d", ev.AuctionID)
		fields = []any{
			"seller", ev.Seller.Hex(),
			"asset_id", ev.AssetID,
			"amount", ev.Amount,
			"reserve", ev.ReservePrice.String(),
			"bid", "0",
			"status", "open",
		}
	case market.AuctionBidEvent:
		key = fmt.Sprintf("auction:%d", ev.AuctionID)
		fields = []any{
			"bidder", ev.Bidder.Hex(),
			"bid", ev.Value.String(),
			"end_time_unix", ev.EndTime.Unix(),
			"status", "open",
		}
	case market.AuctionSettleEvent:
		key = fmt.Sprintf("auction:%d", ev.AuctionID)
		fields = []any{
			"bidder", ev.Winner.Hex(),
			"bid", ev.WinningBid.String(),
			"status", "settled",
		}
	case market.AuctionCancelEvent:
		key = fmt.Sprintf("auction:%d", ev.AuctionID)
		if err := rw.client.Del(ctx, key); err != nil {
			// Leave the stale hash; the next write for this key will not
			// come, but reads cross-check the engine anyway.
			return
		}
		rw.mu.Lock()
		delete(rw.last, key)
		rw.mu.Unlock()
		return
	default:
		// Propose/Accept/CancelProposal events do not change the persisted
		// listing summary.
		return
	}

	serialized := fmt.Sprint(fields...)
	rw.mu.Lock()
	if rw.last[key] == serialized {
		rw.mu.Unlock()
		return
	}
	rw.mu.Unlock()

	if err := rw.client.HSet(ctx, key, fields...); err != nil {
		return
	}

	rw.mu.Lock()
	rw.last[key] = serialized
	rw.mu.Unlock()
}
