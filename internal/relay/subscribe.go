package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"

	"github.com/gorilla/websocket"
)

// Subscribe connects to the events hub as the annotator of pageURL and
// yields every message pushed by the server. The channel is closed when ctx
// ends or the connection drops.
func Subscribe(ctx context.Context, eventsURL, pageURL string) (<-chan Message, error) {
	u, err := url.Parse(eventsURL)
	if err != nil {
		return nil, fmt.Errorf("subscribe: parse events url: %w", err)
	}
	q := u.Query()
	q.Set("url", pageURL)
	u.RawQuery = q.Encode()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("subscribe: dial %s: %w", eventsURL, err)
	}

	out := make(chan Message)
	done := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			_ = ws.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)
			ws.Close()
		case <-done:
		}
	}()

	go func() {
		defer close(out)
		defer close(done)
		defer ws.Close()

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("events: read failed: %v", err)
				}
				return
			}

			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Printf("events: ignoring malformed message: %v", err)
				continue
			}

			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
