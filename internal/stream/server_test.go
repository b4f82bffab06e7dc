package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agora-markets/agora/internal/market"
)

func dialTestServer(t *testing.T) (*market.Feed, *websocket.Conn) {
	t.Helper()

	feed := market.NewFeed()
	srv := httptest.NewServer(NewServer(DefaultServerConfig(), feed))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return feed, conn
}

func TestServerStreamsEvents(t *testing.T) {
	feed, conn := dialTestServer(t)

	// Give the server a moment to register the subscription.
	time.Sleep(50 * time.Millisecond)
	feed.Publish(market.ListingEndedEvent{ListingID: 12})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var got struct {
		Type  string `json:"type"`
		Topic string `json:"topic"`
		Data  struct {
			ListingID uint64 `json:"listingId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got.Type != "listing_ended" {
		t.Fatalf("expected type listing_ended, got %s", got.Type)
	}
	if got.Data.ListingID != 12 {
		t.Fatalf("expected listing id 12, got %d", got.Data.ListingID)
	}
	if !strings.HasPrefix(got.Topic, "0x") || len(got.Topic) != 66 {
		t.Fatalf("expected 32-byte hex topic, got %q", got.Topic)
	}
}

func TestServerStreamsToMultipleClients(t *testing.T) {
	feed := market.NewFeed()
	srv := httptest.NewServer(NewServer(DefaultServerConfig(), feed))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conns := make([]*websocket.Conn, 2)
	for i := range conns {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial %d failed: %v", i, err)
		}
		t.Cleanup(func() { conn.Close() })
		conns[i] = conn
	}

	time.Sleep(50 * time.Millisecond)
	feed.Publish(market.AuctionCancelEvent{AuctionID: 4})

	for i, conn := range conns {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("client %d read failed: %v", i, err)
		}
		if !strings.Contains(string(payload), `"auction_cancel"`) {
			t.Fatalf("client %d got unexpected payload: %s", i, payload)
		}
	}
}
