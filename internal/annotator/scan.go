package annotator

import (
	"listing-distance/internal/page"
	"log"
)

// listingFlow waits for the listing container, scans it, then rescans on
// every change until the session ends.
func (a *Annotator) listingFlow(sess *session) {
	defer sess.flows.Done()

	if err := <-a.surface.WaitFor(sess.ctx, page.ListingContainer); err != nil {
		if sess.ctx.Err() == nil {
			log.Printf("annotator: wait for listings: %v", err)
		}
		return
	}
	log.Printf("annotator: listing container found")

	// Subscribe before the first scan so listings added meanwhile are not missed.
	sub, err := a.surface.Watch(sess.ctx, page.ListingContainer)
	if err != nil {
		log.Printf("annotator: watch listings: %v", err)
		return
	}
	defer sub.Cancel()

	a.setState(Scanning)
	a.scan(sess)
	a.setState(Idle)

	for {
		select {
		case <-sess.ctx.Done():
			return
		case _, ok := <-sub.C:
			if !ok {
				return
			}
			a.scan(sess)
		}
	}
}

// scan handles every card not yet processed by this session. It is safe to
// run repeatedly: a card is marked before any work on it starts.
func (a *Annotator) scan(sess *session) {
	cards, err := a.surface.Cards(sess.ctx)
	if err != nil {
		if sess.ctx.Err() == nil {
			log.Printf("annotator: scan: %v", err)
		}
		return
	}

	added := 0
	for _, c := range cards {
		if sess.ctx.Err() != nil {
			return
		}

		key := c.Key()
		if key == "" || !c.HasLink || !c.HasPriceRow {
			continue
		}
		address := c.Address()
		if address == "" {
			continue
		}
		if !sess.markProcessed(key) {
			continue
		}
		added++

		if !sess.settings.HasAPIKey() {
			a.addRecord(key, address)
			a.finishRecord(key, nil)
			if err := a.surface.RenderCard(sess.ctx, key, warningBadge); err != nil {
				log.Printf("annotator: render warning listing=%s err=%v", key, err)
			}
			continue
		}

		sess.fills.add()
		a.addRecord(key, address)
		if err := a.surface.RenderCard(sess.ctx, key, loadingBadge); err != nil {
			log.Printf("annotator: render placeholder listing=%s err=%v", key, err)
		}
		go a.fill(sess, key, address)
	}

	if added > 0 {
		log.Printf("annotator: scan cards=%d new=%d", len(cards), added)
	}
}

// fill computes one listing's distances and replaces its placeholder.
func (a *Annotator) fill(sess *session, key, address string) {
	defer sess.fills.done()

	results := a.distances(sess, key, address)
	if sess.ctx.Err() != nil {
		return
	}
	a.finishRecord(key, results)

	html, err := resultsBadge(results)
	if err != nil {
		log.Printf("annotator: render results listing=%s err=%v", key, err)
		html = errorBadge
	}
	if err := a.surface.RenderCard(sess.ctx, key, html); err != nil && sess.ctx.Err() == nil {
		log.Printf("annotator: render results listing=%s err=%v", key, err)
	}
}
