package annotator

import (
	"listing-distance/internal/page"
	"log"
)

// detailFlow annotates a single-listing page once. Detail pages do not
// paginate, so there is no watching afterwards.
func (a *Annotator) detailFlow(sess *session) {
	defer sess.flows.Done()

	if err := <-a.surface.WaitFor(sess.ctx, page.DetailContainer); err != nil {
		if sess.ctx.Err() == nil {
			log.Printf("annotator: wait for detail: %v", err)
		}
		return
	}
	log.Printf("annotator: detail container found")

	sess.fills.add()
	defer sess.fills.done()

	a.annotateDetail(sess)
}

func (a *Annotator) annotateDetail(sess *session) {
	has, err := a.surface.HasDetailBadge(sess.ctx)
	if err != nil {
		log.Printf("annotator: detail badge check: %v", err)
		return
	}
	if has {
		return
	}

	fields, err := a.surface.DetailFields(sess.ctx)
	if err != nil {
		log.Printf("annotator: detail fields: %v", err)
		return
	}
	address := fields.Address()
	if address == "" {
		log.Printf("annotator: detail page without an address")
		return
	}
	a.addRecord(DetailListingID, address)

	if !sess.settings.HasAPIKey() {
		a.finishRecord(DetailListingID, nil)
		if err := a.surface.RenderDetail(sess.ctx, warningBadge); err != nil {
			log.Printf("annotator: render detail warning: %v", err)
		}
		return
	}

	if err := a.surface.RenderDetail(sess.ctx, loadingBadge); err != nil {
		log.Printf("annotator: render detail placeholder: %v", err)
		return
	}

	results := a.distances(sess, DetailListingID, address)
	if sess.ctx.Err() != nil {
		return
	}
	a.finishRecord(DetailListingID, results)

	html, err := resultsBadge(results)
	if err != nil {
		log.Printf("annotator: render detail results: %v", err)
		html = errorBadge
	}
	if err := a.surface.RenderDetail(sess.ctx, html); err != nil && sess.ctx.Err() == nil {
		log.Printf("annotator: render detail results: %v", err)
	}
}
