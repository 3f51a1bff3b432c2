package relay

import (
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

type hubClient struct {
	id      string
	pageURL string
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *hubClient) send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(msg)
}

// Hub keeps the annotators subscribed to settings changes.
// Each subscriber registers the URL of the page it is annotating; only pages
// on the configured site receive broadcasts.
type Hub struct {
	siteHost string

	mu       sync.RWMutex
	clients  map[string]*hubClient
	upgrader websocket.Upgrader
}

func NewHub(siteHost string) *Hub {
	return &Hub{
		siteHost: strings.ToLower(strings.TrimSpace(siteHost)),
		clients:  make(map[string]*hubClient),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Annotators connect directly without an Origin header.
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && isLoopbackHost(u.Hostname())
			},
		},
	}
}

// ServeWS upgrades the request and holds the connection until the peer goes away.
// The page URL is taken from the "url" query parameter.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	pageURL := r.URL.Query().Get("url")

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("events: upgrade failed: %v", err)
		return
	}

	c := &hubClient{id: uuid.NewString(), pageURL: pageURL, ws: ws}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	log.Printf("events: subscribed client=%s url=%q", c.id, pageURL)

	// Subscribers never send anything; reading only detects the close.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(c.id)
	log.Printf("events: unsubscribed client=%s", c.id)
}

// Broadcast pushes msg to every subscriber on the site and returns how many
// received it. Delivery is best effort; there is no acknowledgment.
func (h *Hub) Broadcast(msg Message) int {
	h.mu.RLock()
	targets := make([]*hubClient, 0, len(h.clients))
	for _, c := range h.clients {
		if h.matchesSite(c.pageURL) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if err := c.send(msg); err != nil {
			log.Printf("events: send failed client=%s err=%v", c.id, err)
			h.remove(c.id)
			continue
		}
		sent++
	}
	return sent
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*hubClient)
	h.mu.Unlock()

	for _, c := range clients {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(writeWait),
		)
		c.writeMu.Unlock()
		c.ws.Close()
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		c.ws.Close()
	}
}

// matchesSite reports whether pageURL is on the site host or one of its subdomains.
func (h *Hub) matchesSite(pageURL string) bool {
	if h.siteHost == "" {
		return true
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == h.siteHost || strings.HasSuffix(host, "."+h.siteHost)
}

func isLoopbackHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
