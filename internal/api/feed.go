package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/csheth/pdfchat/internal/chat"
)

// Feed is a refresh trigger driven by the server's change feed. It still fires every
// fallback period so reply timeouts keep counting when the feed is quiet or gone.
type Feed struct {
	conn     *websocket.Conn
	fallback time.Duration
	notify   chan struct{}
	done     chan struct{}

	mu   sync.Mutex
	last Event
	err  error
}

var _ chat.Trigger = (*Feed)(nil)

// Subscribe opens the change feed for documentID.
func (c *Client) Subscribe(ctx context.Context, documentID string, fallback time.Duration) (*Feed, error) {
	if fallback <= 0 {
		fallback = chat.DefaultPollInterval
	}
	endpoint, err := url.Parse(c.base + "/api/documents/" + url.PathEscape(documentID) + "/events")
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(endpoint.Scheme) {
	case "https":
		endpoint.Scheme = "wss"
	default:
		endpoint.Scheme = "ws"
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			defer resp.Body.Close()
			return nil, decodeError(resp)
		}
		return nil, err
	}

	feed := &Feed{
		conn:     conn,
		fallback: fallback,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go feed.read()
	return feed, nil
}

func (f *Feed) read() {
	defer close(f.done)
	for {
		_, data, err := f.conn.ReadMessage()
		if err != nil {
			f.mu.Lock()
			f.err = err
			f.mu.Unlock()
			return
		}
		var event Event
		if json.Unmarshal(data, &event) == nil {
			f.mu.Lock()
			f.last = event
			f.mu.Unlock()
		}
		select {
		case f.notify <- struct{}{}:
		default:
		}
	}
}

// Wait returns when a change arrives, when the fallback period passes, or when ctx ends.
func (f *Feed) Wait(ctx context.Context) error {
	timer := time.NewTimer(f.fallback)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.notify:
		return nil
	case <-timer.C:
		return nil
	}
}

// Last returns the most recent change event.
func (f *Feed) Last() (Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, f.last.Type != ""
}

// Connected reports whether the change feed is still open.
func (f *Feed) Connected() bool {
	select {
	case <-f.done:
		return false
	default:
		return true
	}
}

// Close ends the subscription.
func (f *Feed) Close() error {
	_ = f.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return f.conn.Close()
}
