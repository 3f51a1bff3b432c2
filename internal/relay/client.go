package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"listing-distance/internal/domain"
	"listing-distance/internal/platform/obs"
	"net/http"
	"strings"
	"time"
)

// Client talks to the relay server on behalf of the annotator.
//
// Every call is bounded by Timeout and by the caller's context, so a reset
// of the annotator session cancels in-flight requests.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Timeout time.Duration
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{},
		Timeout: timeout,
	}
}

// CalculateDistance sends one calculateDistance message and waits for its single response.
func (c *Client) CalculateDistance(ctx context.Context, msg Message) (_ Distance, err error) {
	defer obs.Time(ctx, "relay.CalculateDistance")(&err)

	msg.Action = ActionCalculateDistance

	body, err := json.Marshal(msg)
	if err != nil {
		return Distance{}, fmt.Errorf("calculate distance: encode message: %w", err)
	}

	var res Response
	if err := c.doJSON(ctx, http.MethodPost, "/relay", bytes.NewReader(body), &res); err != nil {
		return Distance{}, fmt.Errorf("calculate distance: %w", err)
	}

	if !res.Success {
		return Distance{}, fmt.Errorf("%w: %s", ErrRelayFailure, res.Error)
	}
	if res.Data == nil {
		return Distance{}, fmt.Errorf("%w: success without data", ErrRelayFailure)
	}

	return *res.Data, nil
}

// Settings fetches the effective (already migrated) settings.
func (c *Client) Settings(ctx context.Context) (_ domain.Settings, err error) {
	defer obs.Time(ctx, "relay.Settings")(&err)

	var s domain.Settings
	if err := c.doJSON(ctx, http.MethodGet, "/settings", nil, &s); err != nil {
		return domain.Settings{}, fmt.Errorf("fetch settings: %w", err)
	}
	return s, nil
}

// EventsURL is the websocket URL of the settings broadcast hub.
func (c *Client) EventsURL() string {
	switch {
	case strings.HasPrefix(c.BaseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.BaseURL, "https://") + "/events"
	case strings.HasPrefix(c.BaseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.BaseURL, "http://") + "/events"
	default:
		return c.BaseURL + "/events"
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := obs.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("no response within %s: %w", c.Timeout, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}
