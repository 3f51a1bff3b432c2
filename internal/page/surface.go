package page

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	ErrNotFound       = errors.New("element not found")
	ErrAnchorNotFound = errors.New("detail anchor not found")
)

// Card is what the annotator needs to know about one listing card.
type Card struct {
	ElementID   string `json:"elementId"`
	Href        string `json:"href"`
	LinkText    string `json:"linkText"`
	LinkTitle   string `json:"linkTitle"`
	HasLink     bool   `json:"hasLink"`
	HasPriceRow bool   `json:"hasPriceRow"`
}

// Key is the stable identity of the listing: the site's element id, or the
// link target when the card has none.
func (c Card) Key() string {
	if id := strings.TrimSpace(c.ElementID); id != "" {
		return id
	}
	return strings.TrimSpace(c.Href)
}

// Address is the trimmed link text, falling back to the link title.
func (c Card) Address() string {
	if s := strings.TrimSpace(c.LinkText); s != "" {
		return s
	}
	return strings.TrimSpace(c.LinkTitle)
}

// DetailFields are the address sources of a single-listing page, in fallback order.
type DetailFields struct {
	HeaderFragments []string `json:"headerFragments"`
	Title           string   `json:"title"`
	Subtitle        string   `json:"subtitle"`
}

// Address joins the header fragments with ", ", else uses the title, else the subtitle.
func (f DetailFields) Address() string {
	parts := make([]string, 0, len(f.HeaderFragments))
	for _, p := range f.HeaderFragments {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	if s := strings.TrimSpace(f.Title); s != "" {
		return s
	}
	return strings.TrimSpace(f.Subtitle)
}

// Surface is a page the annotator can read and decorate.
//
// WaitFor and Watch are the two observation lifecycles: WaitFor resolves once
// when the selector first matches, Watch keeps reporting changes under the
// selector until it is cancelled.
type Surface interface {
	// InjectStyles adds a stylesheet once; later calls with the same id are no-ops.
	InjectStyles(ctx context.Context, id, css string) error
	Cards(ctx context.Context) ([]Card, error)
	// RenderCard sets the badge of the card with the given key, inserting it
	// before the price row when the card has none yet.
	RenderCard(ctx context.Context, key, innerHTML string) error
	DetailFields(ctx context.Context) (DetailFields, error)
	HasDetailBadge(ctx context.Context) (bool, error)
	// RenderDetail sets the detail badge, inserting it before the detail anchor.
	RenderDetail(ctx context.Context, innerHTML string) error
	// ClearBadges removes every listing and detail badge and returns how many were removed.
	ClearBadges(ctx context.Context) (int, error)

	// WaitFor delivers nil once selector matches, or ctx's error.
	// The channel receives exactly one value.
	WaitFor(ctx context.Context, selector string) <-chan error
	// Watch reports subtree changes under the first element matching selector.
	Watch(ctx context.Context, selector string) (*Subscription, error)
}

// Subscription is a cancelable stream of change notifications.
// Notifications coalesce: C holds at most one pending value.
type Subscription struct {
	C <-chan struct{}

	once   sync.Once
	cancel func()
}

// NewSubscription wraps a notification channel for a Surface implementation.
// cancel must stop delivery and close c, possibly from another goroutine;
// Cancel relies on it to end receivers ranging over C.
func NewSubscription(c <-chan struct{}, cancel func()) *Subscription {
	return &Subscription{C: c, cancel: cancel}
}

// Cancel stops the subscription. C is closed by the cancel func the Surface
// supplied, shortly after this returns. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}
