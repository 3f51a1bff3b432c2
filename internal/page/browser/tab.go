// Package browser is a page.Surface backed by a live Chrome tab.
//
// Page mutations are observed with MutationObservers inside the page. They
// report back through a CDP runtime binding, so nothing is polled.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"listing-distance/internal/page"
	"log"
	"strconv"
	"sync"
	"time"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const bindingName = "__listingDistanceNotify"

type waiter struct {
	ch   chan error
	done chan struct{}
	once sync.Once
}

func (w *waiter) resolve(err error) {
	w.once.Do(func() {
		w.ch <- err
		close(w.done)
	})
}

type Tab struct {
	ctx context.Context

	mu       sync.Mutex
	waiters  map[string]*waiter
	watchers map[string]chan struct{}
	next     int

	// navs holds the URL of the latest main-frame navigation not yet consumed.
	navs chan string
}

var _ page.Surface = (*Tab)(nil)

// NewTab installs the notification binding on a chromedp tab context.
func NewTab(ctx context.Context) (*Tab, error) {
	t := newTab(ctx)

	chromedp.ListenTarget(ctx, t.onEvent)
	if err := chromedp.Run(ctx, runtime.AddBinding(bindingName)); err != nil {
		return nil, fmt.Errorf("new tab: add binding: %w", err)
	}
	return t, nil
}

func newTab(ctx context.Context) *Tab {
	return &Tab{
		ctx:      ctx,
		waiters:  make(map[string]*waiter),
		watchers: make(map[string]chan struct{}),
		navs:     make(chan string, 1),
	}
}

// Navigate loads pageURL and waits for it. The navigation it causes is not
// reported on Navigations.
func (t *Tab) Navigate(pageURL string) error {
	if err := chromedp.Run(t.ctx, chromedp.Navigate(pageURL)); err != nil {
		return fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	select {
	case <-t.navs:
	default:
	}
	return nil
}

// Navigations delivers the URL of every new top-level document, such as a
// followed link or a reload. Observers installed in the previous document are
// gone by then, so the receiver should start over. Only the latest URL is
// kept when the receiver falls behind.
func (t *Tab) Navigations() <-chan string {
	return t.navs
}

// URL returns the address of the page currently loaded.
func (t *Tab) URL(ctx context.Context) (string, error) {
	runCtx, done := t.runCtx(ctx)
	defer done()

	var u string
	if err := chromedp.Run(runCtx, chromedp.Location(&u)); err != nil {
		return "", fmt.Errorf("location: %w", err)
	}
	return u, nil
}

func (t *Tab) InjectStyles(ctx context.Context, id, css string) error {
	var added bool
	if err := t.eval(ctx, &added, stylesScript, id, css); err != nil {
		return fmt.Errorf("inject styles: %w", err)
	}
	return nil
}

func (t *Tab) Cards(ctx context.Context) ([]page.Card, error) {
	var cards []page.Card
	err := t.eval(ctx, &cards, cardsScript,
		page.ListingCard, page.ListingLink, page.ListingPriceRow, page.ListingIDAttr)
	if err != nil {
		return nil, fmt.Errorf("cards: %w", err)
	}
	return cards, nil
}

func (t *Tab) RenderCard(ctx context.Context, key, innerHTML string) error {
	var res string
	err := t.eval(ctx, &res, renderCardScript,
		page.ListingCard, page.ListingLink, page.ListingPriceRow, page.ListingIDAttr,
		page.ListingBadgeClass, key, innerHTML)
	if err != nil {
		return fmt.Errorf("render card %q: %w", key, err)
	}

	switch res {
	case "ok":
		return nil
	case "no-price-row":
		return fmt.Errorf("render card %q: price row: %w", key, page.ErrNotFound)
	default:
		return fmt.Errorf("render card %q: %w", key, page.ErrNotFound)
	}
}

func (t *Tab) DetailFields(ctx context.Context) (page.DetailFields, error) {
	var f page.DetailFields
	err := t.eval(ctx, &f, detailFieldsScript, page.DetailHeader, page.DetailTitle, page.DetailSubtitle)
	if err != nil {
		return page.DetailFields{}, fmt.Errorf("detail fields: %w", err)
	}
	return f, nil
}

func (t *Tab) HasDetailBadge(ctx context.Context) (bool, error) {
	var has bool
	err := t.eval(ctx, &has, `(function(cls) { return !!document.querySelector('.' + cls); })`, page.DetailBadgeClass)
	if err != nil {
		return false, fmt.Errorf("has detail badge: %w", err)
	}
	return has, nil
}

func (t *Tab) RenderDetail(ctx context.Context, innerHTML string) error {
	var ok bool
	if err := t.eval(ctx, &ok, renderDetailScript, page.DetailAnchor, page.DetailBadgeClass, innerHTML); err != nil {
		return fmt.Errorf("render detail: %w", err)
	}
	if !ok {
		return page.ErrAnchorNotFound
	}
	return nil
}

func (t *Tab) ClearBadges(ctx context.Context) (int, error) {
	var n int
	if err := t.eval(ctx, &n, clearBadgesScript, page.ListingBadgeClass, page.DetailBadgeClass); err != nil {
		return 0, fmt.Errorf("clear badges: %w", err)
	}
	return n, nil
}

func (t *Tab) WaitFor(ctx context.Context, selector string) <-chan error {
	w := &waiter{ch: make(chan error, 1), done: make(chan struct{})}
	token := t.register("wait", func(token string) { t.waiters[token] = w })

	go func() {
		var found bool
		if err := t.eval(ctx, &found, waitScript, selector, token, bindingName); err != nil {
			t.unregister(token)
			w.resolve(fmt.Errorf("wait for %q: %w", selector, err))
			return
		}
		if found {
			t.unregister(token)
			w.resolve(nil)
			return
		}

		stop := context.AfterFunc(ctx, func() {
			t.unregister(token)
			t.disconnect(token)
			w.resolve(ctx.Err())
		})
		<-w.done
		stop()
	}()

	return w.ch
}

func (t *Tab) Watch(ctx context.Context, selector string) (*page.Subscription, error) {
	ch := make(chan struct{}, 1)
	token := t.register("watch", func(token string) { t.watchers[token] = ch })

	var ok bool
	if err := t.eval(ctx, &ok, watchScript, selector, token, bindingName); err != nil {
		t.unregister(token)
		return nil, fmt.Errorf("watch %q: %w", selector, err)
	}
	if !ok {
		t.unregister(token)
		return nil, fmt.Errorf("watch %q: %w", selector, page.ErrNotFound)
	}

	return t.subscribe(ctx, token, ch), nil
}

// subscribe ties a registered watcher to ctx. Cancelling closes ch and stops
// the page-side observer.
func (t *Tab) subscribe(ctx context.Context, token string, ch <-chan struct{}) *page.Subscription {
	ctx, cancel := context.WithCancel(ctx)
	context.AfterFunc(ctx, func() {
		t.unregister(token)
		t.disconnect(token)
	})

	return page.NewSubscription(ch, cancel)
}

// onEvent runs on the chromedp event loop and must not block.
func (t *Tab) onEvent(ev interface{}) {
	switch e := ev.(type) {
	case *runtime.EventBindingCalled:
		t.onBinding(e)
	case *cdppage.EventFrameNavigated:
		if e.Frame != nil && e.Frame.ParentID == "" {
			t.navigated(e.Frame.URL)
		}
	}
}

// navigated replaces any unconsumed navigation with u. onEvent is the only
// sender, so the loop ends after at most one drain.
func (t *Tab) navigated(u string) {
	for {
		select {
		case t.navs <- u:
			return
		default:
		}
		select {
		case <-t.navs:
		default:
		}
	}
}

func (t *Tab) onBinding(e *runtime.EventBindingCalled) {
	if e.Name != bindingName {
		return
	}

	var p struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(e.Payload), &p); err != nil {
		log.Printf("tab: bad binding payload %q: %v", e.Payload, err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if w, ok := t.waiters[p.Token]; ok {
		delete(t.waiters, p.Token)
		w.resolve(nil)
		return
	}
	if ch, ok := t.watchers[p.Token]; ok {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (t *Tab) register(kind string, add func(token string)) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	token := kind + "-" + strconv.Itoa(t.next)
	add(token)
	return token
}

func (t *Tab) unregister(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.waiters, token)
	if ch, ok := t.watchers[token]; ok {
		delete(t.watchers, token)
		close(ch)
	}
}

// disconnect stops the page-side observer. The tab may already be gone.
func (t *Tab) disconnect(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var ok bool
	if err := t.eval(ctx, &ok, disconnectScript, token); err != nil && t.ctx.Err() == nil {
		log.Printf("tab: disconnect observer token=%s err=%v", token, err)
	}
}

func (t *Tab) eval(ctx context.Context, out any, fn string, args ...any) error {
	script, err := call(fn, args...)
	if err != nil {
		return err
	}

	runCtx, done := t.runCtx(ctx)
	defer done()

	return chromedp.Run(runCtx, chromedp.Evaluate(script, out))
}

// runCtx derives a context from the tab that is also cancelled with ctx,
// since chromedp actions need the tab's context to find their target.
func (t *Tab) runCtx(ctx context.Context) (context.Context, func()) {
	runCtx, cancel := context.WithCancel(t.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
