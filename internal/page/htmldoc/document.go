// Package htmldoc is a page.Surface over a static HTML snapshot.
//
// Mutations made through the Document (badges, styles, Append) are observed
// like a browser's MutationObserver would: waiters resolve when their
// selector starts matching and watchers are told about changes under their
// element.
package htmldoc

import (
	"context"
	"fmt"
	"io"
	"listing-distance/internal/page"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

type waiter struct {
	selector string
	ch       chan error
	done     chan struct{}
	once     sync.Once
}

func (w *waiter) resolve(err error) {
	w.once.Do(func() {
		w.ch <- err
		close(w.done)
	})
}

type watcher struct {
	selector string
	ch       chan struct{}
}

type Document struct {
	mu       sync.Mutex
	doc      *goquery.Document
	waiters  []*waiter
	watchers map[int]*watcher
	nextID   int
}

var _ page.Surface = (*Document)(nil)

func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: doc, watchers: make(map[int]*watcher)}, nil
}

func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// HTML renders the current state of the document.
func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.doc.Html()
}

// Replace swaps in a newly loaded page, as when the browser follows a link.
// Observers of the old page are dropped without firing: pending WaitFor
// futures resolve only when their context ends and Watch channels only close
// on Cancel.
func (d *Document) Replace(html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("replace: parse html: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.doc = doc
	d.waiters = nil
	d.watchers = make(map[int]*watcher)
	return nil
}

// Append inserts html as the last children of every element matching
// parentSelector, the way a site appends a page of results.
func (d *Document) Append(parentSelector, html string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	parent := d.doc.Find(parentSelector)
	if parent.Length() == 0 {
		return fmt.Errorf("append: %q: %w", parentSelector, page.ErrNotFound)
	}
	parent.AppendHtml(html)
	d.notify(parent)
	return nil
}

func (d *Document) InjectStyles(_ context.Context, id, css string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.doc.Find("style#"+id).Length() > 0 {
		return nil
	}

	head := d.doc.Find("head").First()
	if head.Length() == 0 {
		head = d.doc.Find("html").First()
	}
	head.AppendHtml(fmt.Sprintf(`<style id="%s">%s</style>`, id, css))
	d.notify(head)
	return nil
}

func (d *Document) Cards(_ context.Context) ([]page.Card, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var cards []page.Card
	d.doc.Find(page.ListingCard).Each(func(_ int, s *goquery.Selection) {
		cards = append(cards, cardOf(s))
	})
	return cards, nil
}

func cardOf(s *goquery.Selection) page.Card {
	c := page.Card{
		ElementID:   s.AttrOr(page.ListingIDAttr, ""),
		HasPriceRow: s.Find(page.ListingPriceRow).Length() > 0,
	}

	link := s.Find(page.ListingLink).First()
	if link.Length() > 0 {
		c.HasLink = true
		c.Href = link.AttrOr("href", "")
		c.LinkText = link.Text()
		c.LinkTitle = link.AttrOr("title", "")
	}
	return c
}

func (d *Document) RenderCard(_ context.Context, key, innerHTML string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	card := d.doc.Find(page.ListingCard).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return cardOf(s).Key() == key
	}).First()
	if card.Length() == 0 {
		return fmt.Errorf("render card %q: %w", key, page.ErrNotFound)
	}

	if badge := card.Find("div." + page.ListingBadgeClass).First(); badge.Length() > 0 {
		badge.SetHtml(innerHTML)
		d.notify(badge)
		return nil
	}

	priceRow := card.Find(page.ListingPriceRow).First()
	if priceRow.Length() == 0 {
		return fmt.Errorf("render card %q: price row: %w", key, page.ErrNotFound)
	}
	priceRow.BeforeHtml(badgeHTML(page.ListingBadgeClass, innerHTML))
	d.notify(priceRow.Parent())
	return nil
}

func (d *Document) DetailFields(_ context.Context) (page.DetailFields, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var f page.DetailFields
	d.doc.Find(page.DetailHeader).Each(func(_ int, s *goquery.Selection) {
		f.HeaderFragments = append(f.HeaderFragments, strings.TrimSpace(s.Text()))
	})
	f.Title = strings.TrimSpace(d.doc.Find(page.DetailTitle).First().Text())
	f.Subtitle = strings.TrimSpace(d.doc.Find(page.DetailSubtitle).First().Text())
	return f, nil
}

func (d *Document) HasDetailBadge(_ context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.doc.Find("." + page.DetailBadgeClass).Length() > 0, nil
}

func (d *Document) RenderDetail(_ context.Context, innerHTML string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if badge := d.doc.Find("div." + page.DetailBadgeClass).First(); badge.Length() > 0 {
		badge.SetHtml(innerHTML)
		d.notify(badge)
		return nil
	}

	anchor := d.doc.Find(page.DetailAnchor).First()
	if anchor.Length() == 0 {
		return page.ErrAnchorNotFound
	}
	anchor.BeforeHtml(badgeHTML(page.DetailBadgeClass, innerHTML))
	d.notify(anchor.Parent())
	return nil
}

func (d *Document) ClearBadges(_ context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	badges := d.doc.Find("." + page.ListingBadgeClass + ", ." + page.DetailBadgeClass)
	n := badges.Length()
	if n == 0 {
		return 0, nil
	}

	parents := badges.Parent()
	badges.Remove()
	d.notify(parents)
	return n, nil
}

func (d *Document) WaitFor(ctx context.Context, selector string) <-chan error {
	w := &waiter{selector: selector, ch: make(chan error, 1), done: make(chan struct{})}

	d.mu.Lock()
	if d.doc.Find(selector).Length() > 0 {
		d.mu.Unlock()
		w.resolve(nil)
		return w.ch
	}
	d.waiters = append(d.waiters, w)
	d.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		d.mu.Lock()
		d.removeWaiter(w)
		d.mu.Unlock()
		w.resolve(ctx.Err())
	})
	go func() {
		// Release the AfterFunc once the waiter resolved on its own.
		<-w.done
		stop()
	}()

	return w.ch
}

func (d *Document) Watch(ctx context.Context, selector string) (*page.Subscription, error) {
	d.mu.Lock()
	if d.doc.Find(selector).Length() == 0 {
		d.mu.Unlock()
		return nil, fmt.Errorf("watch %q: %w", selector, page.ErrNotFound)
	}
	id := d.nextID
	d.nextID++
	w := &watcher{selector: selector, ch: make(chan struct{}, 1)}
	d.watchers[id] = w
	d.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	context.AfterFunc(ctx, func() {
		d.mu.Lock()
		delete(d.watchers, id)
		close(w.ch)
		d.mu.Unlock()
	})

	return page.NewSubscription(w.ch, cancel), nil
}

// notify runs after every mutation with the nodes whose children changed.
// Callers hold d.mu.
func (d *Document) notify(changed *goquery.Selection) {
	pending := d.waiters[:0]
	for _, w := range d.waiters {
		if d.doc.Find(w.selector).Length() > 0 {
			w.resolve(nil)
			continue
		}
		pending = append(pending, w)
	}
	d.waiters = pending

	for _, w := range d.watchers {
		if changed.Closest(w.selector).Length() == 0 {
			continue
		}
		select {
		case w.ch <- struct{}{}:
		default:
		}
	}
}

func (d *Document) removeWaiter(target *waiter) {
	for i, w := range d.waiters {
		if w == target {
			d.waiters = append(d.waiters[:i], d.waiters[i+1:]...)
			return
		}
	}
}

func badgeHTML(class, innerHTML string) string {
	return `<div class="` + class + `">` + innerHTML + `</div>`
}
