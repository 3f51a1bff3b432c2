package annotator

import (
	"context"
	"errors"
	"listing-distance/internal/domain"
	"listing-distance/internal/page"
	"listing-distance/internal/page/htmldoc"
	"listing-distance/internal/relay"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingPage = `<html><head></head><body>
<main class="listing-items">
  <article class="item" data-element-id="101">
    <div class="item-info-container">
      <a class="item-link" href="/immobile/101/">Trilocale via Savona 12, Milano</a>
      <div class="price-row">420.000€</div>
    </div>
  </article>
  <article class="item" data-element-id="102">
    <div class="item-info-container">
      <a class="item-link" href="/immobile/102/" title="Bilocale Navigli, Milano"></a>
      <div class="price-row">310.000€</div>
    </div>
  </article>
  <article class="item" data-element-id="103">
    <div class="item-info-container">
      <a class="item-link" href="/immobile/103/">No price row</a>
    </div>
  </article>
</main>
</body></html>`

const detailPage = `<html><head></head><body>
<main class="detail-container">
  <span class="main-info__title-main">Trilocale in vendita</span>
  <span class="main-info__title-minor">Tortona, Milano</span>
  <div id="headerMap"><ul>
    <li class="header-map-list">Via Savona 12</li>
    <li class="header-map-list">Tortona</li>
    <li class="header-map-list">Milano</li>
  </ul></div>
  <div class="info-features">85 m²</div>
</main>
</body></html>`

const newCard = `<article class="item" data-element-id="104">
  <div class="item-info-container">
    <a class="item-link" href="/immobile/104/">Monolocale Isola, Milano</a>
    <div class="price-row">199.000€</div>
  </div>
</article>`

const listingBadge = `<div class="idealista-distance-info">`

type fakeSettings struct {
	mu sync.Mutex
	s  domain.Settings
}

func (f *fakeSettings) Settings(context.Context) (domain.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s, nil
}

func (f *fakeSettings) set(s domain.Settings) {
	f.mu.Lock()
	f.s = s
	f.mu.Unlock()
}

type fakeRelay struct {
	mu      sync.Mutex
	calls   []relay.Message
	results map[string]relay.Distance
	delay   map[string]time.Duration
	block   chan struct{}
}

func newFakeRelay(results map[string]relay.Distance) *fakeRelay {
	return &fakeRelay{results: results, delay: map[string]time.Duration{}}
}

func (f *fakeRelay) CalculateDistance(ctx context.Context, msg relay.Message) (relay.Distance, error) {
	f.mu.Lock()
	f.calls = append(f.calls, msg)
	d, ok := f.results[msg.Origin]
	wait := f.delay[msg.Origin]
	block := f.block
	f.mu.Unlock()

	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return relay.Distance{}, ctx.Err()
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return relay.Distance{}, ctx.Err()
		}
	}
	if !ok {
		return relay.Distance{}, errors.New("relay failure: element status NOT_FOUND")
	}
	return d, nil
}

func (f *fakeRelay) Calls() []relay.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]relay.Message(nil), f.calls...)
}

var (
	office = domain.Location{Address: "Office, Via Tortona 3, Milano", TravelMode: domain.TravelModeDriving}
	gym    = domain.Location{Address: "Gym, Corso Como 5, Milano", TravelMode: domain.TravelModeTransit}
)

func twoOrigins() map[string]relay.Distance {
	return map[string]relay.Distance{
		office.Address: {Distance: "2.1 km", Duration: "9 mins"},
		gym.Address:    {Distance: "4.5 km", Duration: "21 mins"},
	}
}

func startOn(t *testing.T, html string, s domain.Settings, r *fakeRelay) (*Annotator, *htmldoc.Document, *fakeSettings) {
	t.Helper()

	doc, err := htmldoc.ParseString(html)
	require.NoError(t, err)

	src := &fakeSettings{s: s}
	a := New(doc, src, r)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		a.Stop()
	})
	require.NoError(t, a.Start(ctx))
	return a, doc, src
}

func waitIdle(t *testing.T, a *Annotator) {
	t.Helper()
	require.Eventually(t, func() bool { return a.State() == Idle }, 2*time.Second, 5*time.Millisecond)
	a.Wait()
}

func docHTML(t *testing.T, d *htmldoc.Document) string {
	t.Helper()
	html, err := d.HTML()
	require.NoError(t, err)
	return html
}

// badgeOf returns the badge markup of the card with the given id.
func badgeOf(t *testing.T, d *htmldoc.Document, id string) string {
	t.Helper()
	html := docHTML(t, d)

	start := strings.Index(html, `data-element-id="`+id+`"`)
	require.GreaterOrEqual(t, start, 0, "card %s", id)
	rest := html[start:]
	end := strings.Index(rest, "</article>")
	require.GreaterOrEqual(t, end, 0)
	card := rest[:end]

	b := strings.Index(card, listingBadge)
	if b < 0 {
		return ""
	}
	return card[b:]
}

func TestScanAnnotatesEveryListingOnce(t *testing.T) {
	r := newFakeRelay(twoOrigins())
	a, doc, _ := startOn(t, listingPage, domain.Settings{APIKey: "k", Locations: []domain.Location{office, gym}}, r)
	waitIdle(t, a)

	html := docHTML(t, doc)
	assert.Equal(t, 2, strings.Count(html, listingBadge))
	assert.Equal(t, 1, strings.Count(html, `<style id="idealista-distance-styles">`))
	assert.Len(t, r.Calls(), 4)

	// Rescanning an unchanged page changes nothing.
	a.scan(a.current())
	a.scan(a.current())
	a.Wait()

	assert.Equal(t, html, docHTML(t, doc))
	assert.Len(t, r.Calls(), 4)
	assert.Equal(t, 2, a.Processed())
}

func TestConcurrentScansMarkBeforeLookup(t *testing.T) {
	r := newFakeRelay(twoOrigins())
	a, doc, _ := startOn(t, listingPage, domain.Settings{APIKey: "k", Locations: []domain.Location{office}}, r)
	waitIdle(t, a)

	// A fresh session on the same page, then many rescans racing each other.
	a.Stop()
	_, err := doc.ClearBadges(context.Background())
	require.NoError(t, err)
	sess, err := a.open(context.Background(), Scanning)
	require.NoError(t, err)
	calls := len(r.Calls())

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.scan(sess)
		}()
	}
	wg.Wait()
	a.Wait()

	assert.Equal(t, 2, strings.Count(docHTML(t, doc), listingBadge))
	assert.Len(t, r.Calls(), calls+2)
	assert.Equal(t, 2, sess.processedCount())
}

func TestScanUsesLinkTextThenTitle(t *testing.T) {
	r := newFakeRelay(twoOrigins())
	a, _, _ := startOn(t, listingPage, domain.Settings{APIKey: "k", Locations: []domain.Location{office}}, r)
	waitIdle(t, a)

	destinations := map[string]bool{}
	for _, c := range r.Calls() {
		destinations[c.Destination] = true
		assert.Equal(t, "k", c.APIKey)
		assert.Equal(t, domain.TravelModeDriving, c.TravelMode)
	}
	assert.Equal(t, map[string]bool{
		"Trilocale via Savona 12, Milano": true,
		"Bilocale Navigli, Milano":        true,
	}, destinations)
}

func TestResultsKeepConfiguredOrder(t *testing.T) {
	r := newFakeRelay(twoOrigins())
	// The first origin answers last; rendering must still follow the settings.
	r.delay[office.Address] = 30 * time.Millisecond

	a, doc, _ := startOn(t, listingPage, domain.Settings{APIKey: "k", Locations: []domain.Location{office, gym}}, r)
	waitIdle(t, a)

	for _, id := range []string{"101", "102"} {
		badge := badgeOf(t, doc, id)
		officeAt := strings.Index(badge, "Office:")
		gymAt := strings.Index(badge, "Gym:")
		require.GreaterOrEqual(t, officeAt, 0, badge)
		require.GreaterOrEqual(t, gymAt, 0, badge)
		assert.Less(t, officeAt, gymAt)
		assert.Contains(t, badge, "🚗")
		assert.Contains(t, badge, "🚌")
		assert.Contains(t, badge, "(2.1 km)")
		assert.Contains(t, badge, "21 mins")
	}

	records := a.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "101", records[0].ListingID)
	assert.Equal(t, []domain.DistanceResult{
		{Origin: office.Address, TravelMode: domain.TravelModeDriving, Duration: "9 mins", Distance: "2.1 km"},
		{Origin: gym.Address, TravelMode: domain.TravelModeTransit, Duration: "21 mins", Distance: "4.5 km"},
	}, records[0].Results)
}

func TestPartialFailureShowsSuccessesOnly(t *testing.T) {
	r := newFakeRelay(map[string]relay.Distance{gym.Address: {Distance: "4.5 km", Duration: "21 mins"}})
	a, doc, _ := startOn(t, listingPage, domain.Settings{APIKey: "k", Locations: []domain.Location{office, gym}}, r)
	waitIdle(t, a)

	badge := badgeOf(t, doc, "101")
	assert.Contains(t, badge, "Gym:")
	assert.NotContains(t, badge, "Office:")
	assert.NotContains(t, badge, "Unable to calculate distance")

	for _, rec := range a.Records() {
		assert.False(t, rec.Failed)
		assert.Len(t, rec.Results, 1)
	}
}

func TestTotalFailureShowsGenericError(t *testing.T) {
	r := newFakeRelay(nil)
	a, doc, _ := startOn(t, listingPage, domain.Settings{APIKey: "k", Locations: []domain.Location{office, gym}}, r)
	waitIdle(t, a)

	badge := badgeOf(t, doc, "101")
	assert.Contains(t, badge, `<span class="error">Unable to calculate distance</span>`)
	assert.NotContains(t, badge, "NOT_FOUND")

	for _, rec := range a.Records() {
		assert.True(t, rec.Failed)
	}
}

func TestNoLocationsHalts(t *testing.T) {
	r := newFakeRelay(twoOrigins())
	a, doc, _ := startOn(t, listingPage, domain.Settings{APIKey: "k"}, r)

	assert.Equal(t, Halted, a.State())
	assert.Empty(t, r.Calls())
	assert.NotContains(t, docHTML(t, doc), "idealista-distance")
}

func TestNoAPIKeyRendersWarningWithoutCalls(t *testing.T) {
	r := newFakeRelay(twoOrigins())
	a, doc, _ := startOn(t, listingPage, domain.Settings{Locations: []domain.Location{office}}, r)
	waitIdle(t, a)

	html := docHTML(t, doc)
	assert.Equal(t, 2, strings.Count(html, `<span class="warning">⚠️ Configure API key to calculate distances</span>`))
	assert.Empty(t, r.Calls())
}

func TestAppendedListingsAreAnnotated(t *testing.T) {
	r := newFakeRelay(twoOrigins())
	a, doc, _ := startOn(t, listingPage, domain.Settings{APIKey: "k", Locations: []domain.Location{office}}, r)
	waitIdle(t, a)

	require.NoError(t, doc.Append(page.ListingContainer, newCard))

	require.Eventually(t, func() bool { return len(a.Records()) == 3 }, 2*time.Second, 5*time.Millisecond)
	a.Wait()

	assert.Contains(t, badgeOf(t, doc, "104"), "Office:")
	assert.Equal(t, 3, strings.Count(docHTML(t, doc), listingBadge))
	assert.Len(t, r.Calls(), 3)
}

func TestListingContainerAppearingLater(t *testing.T) {
	r := newFakeRelay(twoOrigins())
	a, doc, _ := startOn(t, `<html><head></head><body><div id="app"></div></body></html>`,
		domain.Settings{APIKey: "k", Locations: []domain.Location{office}}, r)

	assert.Equal(t, AwaitingContent, a.State())

	require.NoError(t, doc.Append("#app", `<main class="listing-items">`+newCard+`</main>`))
	waitIdle(t, a)

	assert.Contains(t, badgeOf(t, doc, "104"), "Office:")
}

func TestResetRebuildsWithNewSettings(t *testing.T) {
	r := newFakeRelay(twoOrigins())
	a, doc, src := startOn(t, listingPage, domain.Settings{APIKey: "k", Locations: []domain.Location{office}}, r)
	waitIdle(t, a)
	require.Contains(t, badgeOf(t, doc, "101"), "Office:")

	src.set(domain.Settings{APIKey: "k2", Locations: []domain.Location{gym}})
	require.NoError(t, a.Reset(context.Background()))
	waitIdle(t, a)

	html := docHTML(t, doc)
	assert.Equal(t, 2, strings.Count(html, listingBadge))
	assert.NotContains(t, html, "Office:")
	assert.Contains(t, badgeOf(t, doc, "101"), "Gym:")
	assert.Equal(t, 1, strings.Count(html, `<style id="idealista-distance-styles">`))

	records := a.Records()
	require.Len(t, records, 2)
	assert.Equal(t, gym.Address, records[0].Results[0].Origin)
	assert.Equal(t, "k2", r.Calls()[len(r.Calls())-1].APIKey)
}

func TestResetToNoLocationsClearsEverything(t *testing.T) {
	r := newFakeRelay(twoOrigins())
	a, doc, src := startOn(t, listingPage, domain.Settings{APIKey: "k", Locations: []domain.Location{office}}, r)
	waitIdle(t, a)

	src.set(domain.Settings{APIKey: "k"})
	require.NoError(t, a.Reset(context.Background()))

	assert.Equal(t, Halted, a.State())
	assert.Equal(t, 0, strings.Count(docHTML(t, doc), listingBadge))
	assert.Empty(t, a.Records())
	assert.Equal(t, 0, a.Processed())
}

func TestResetCancelsInFlightLookups(t *testing.T) {
	r := newFakeRelay(twoOrigins())
	r.block = make(chan struct{})

	a, doc, src := startOn(t, listingPage, domain.Settings{APIKey: "k", Locations: []domain.Location{office}}, r)
	require.Eventually(t, func() bool { return a.State() == Idle }, 2*time.Second, 5*time.Millisecond)
	require.Contains(t, badgeOf(t, doc, "101"), "Calculating distance...")

	src.set(domain.Settings{Locations: []domain.Location{office}})
	done := make(chan error, 1)
	go func() { done <- a.Reset(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reset blocked on in-flight lookups")
	}
	waitIdle(t, a)

	html := docHTML(t, doc)
	assert.NotContains(t, html, "Calculating distance...")
	assert.Equal(t, 2, strings.Count(html, "Configure API key"))
}

func TestDetailPageAnnotatedOnce(t *testing.T) {
	r := newFakeRelay(twoOrigins())
	a, doc, _ := startOn(t, detailPage, domain.Settings{APIKey: "k", Locations: []domain.Location{office, gym}}, r)

	require.Eventually(t, func() bool { return len(a.Records()) == 1 }, 2*time.Second, 5*time.Millisecond)
	a.Wait()

	html := docHTML(t, doc)
	assert.Equal(t, 1, strings.Count(html, `<div class="idealista-distance-detail">`))
	assert.Contains(t, html, `</div></div><div class="info-features">`)
	assert.Contains(t, html, "Office:")
	assert.Contains(t, html, "Gym:")

	calls := r.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "Via Savona 12, Tortona, Milano", calls[0].Destination)

	rec := a.Records()[0]
	assert.Equal(t, DetailListingID, rec.ListingID)
	assert.Equal(t, "Via Savona 12, Tortona, Milano", rec.Address)
	assert.Len(t, rec.Results, 2)

	// A second pass sees the existing badge and does nothing.
	a.annotateDetail(a.current())
	assert.Len(t, r.Calls(), 2)
	assert.Equal(t, 1, strings.Count(docHTML(t, doc), `<div class="idealista-distance-detail">`))
}

func TestDetailPageFallsBackToSubtitle(t *testing.T) {
	r := newFakeRelay(twoOrigins())
	html := `<html><head></head><body><main class="detail-container">
		<span class="main-info__title-minor">Isola, Milano</span>
		<div class="info-features"></div></main></body></html>`
	a, _, _ := startOn(t, html, domain.Settings{APIKey: "k", Locations: []domain.Location{office}}, r)

	require.Eventually(t, func() bool { return len(a.Records()) == 1 }, 2*time.Second, 5*time.Millisecond)
	a.Wait()

	require.Len(t, r.Calls(), 1)
	assert.Equal(t, "Isola, Milano", r.Calls()[0].Destination)
}

func TestResetRemovesDetailBadge(t *testing.T) {
	r := newFakeRelay(twoOrigins())
	a, doc, src := startOn(t, detailPage, domain.Settings{APIKey: "k", Locations: []domain.Location{office}}, r)
	require.Eventually(t, func() bool { return len(a.Records()) == 1 }, 2*time.Second, 5*time.Millisecond)
	a.Wait()

	src.set(domain.Settings{APIKey: "k", Locations: []domain.Location{gym}})
	require.NoError(t, a.Reset(context.Background()))
	require.Eventually(t, func() bool {
		recs := a.Records()
		return len(recs) == 1 && len(recs[0].Results) == 1
	}, 2*time.Second, 5*time.Millisecond)
	a.Wait()

	html := docHTML(t, doc)
	assert.Equal(t, 1, strings.Count(html, `<div class="idealista-distance-detail">`))
	assert.Contains(t, html, "Gym:")
	assert.NotContains(t, html, "Office:")
}

func TestStartTwiceFails(t *testing.T) {
	r := newFakeRelay(twoOrigins())
	a, _, _ := startOn(t, listingPage, domain.Settings{APIKey: "k", Locations: []domain.Location{office}}, r)

	assert.ErrorIs(t, a.Start(context.Background()), ErrAlreadyStarted)
}

func TestAnnotateOnce(t *testing.T) {
	r := newFakeRelay(twoOrigins())
	doc, err := htmldoc.ParseString(listingPage)
	require.NoError(t, err)

	a := New(doc, &fakeSettings{s: domain.Settings{APIKey: "k", Locations: []domain.Location{office, gym}}}, r)
	require.NoError(t, a.AnnotateOnce(context.Background()))

	assert.Equal(t, Idle, a.State())
	assert.Len(t, r.Calls(), 4)
	assert.Contains(t, badgeOf(t, doc, "102"), "Gym:")
	assert.NotContains(t, docHTML(t, doc), "Calculating distance...")
	assert.Len(t, a.Records(), 2)

	// The session is over: a live start is possible afterwards.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))
	a.Stop()
}

const nextResultsPage = `<html><head></head><body>
<main class="listing-items">
  <article class="item" data-element-id="101">
    <div class="item-info-container">
      <a class="item-link" href="/immobile/101/">Trilocale via Savona 12, Milano</a>
      <div class="price-row">415.000€</div>
    </div>
  </article>
  <article class="item" data-element-id="201">
    <div class="item-info-container">
      <a class="item-link" href="/immobile/201/">Quadrilocale Porta Romana, Milano</a>
      <div class="price-row">690.000€</div>
    </div>
  </article>
</main>
</body></html>`

func TestResetAfterNavigationAnnotatesNewPage(t *testing.T) {
	r := newFakeRelay(twoOrigins())
	a, doc, _ := startOn(t, listingPage, domain.Settings{APIKey: "k", Locations: []domain.Location{office}}, r)
	waitIdle(t, a)
	require.Len(t, a.Records(), 2)

	require.NoError(t, doc.Replace(nextResultsPage))
	require.NoError(t, a.Reset(context.Background()))
	waitIdle(t, a)

	html := docHTML(t, doc)
	assert.Equal(t, 1, strings.Count(html, `<style id="idealista-distance-styles">`))
	assert.Equal(t, 2, strings.Count(html, listingBadge))
	// 101 was processed on the previous page and must be annotated again.
	assert.Contains(t, badgeOf(t, doc, "101"), "Office:")
	assert.Contains(t, badgeOf(t, doc, "201"), "Office:")

	records := a.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "101", records[0].ListingID)
	assert.Equal(t, "201", records[1].ListingID)
	assert.Len(t, r.Calls(), 4)

	// The new page is watched too.
	require.NoError(t, doc.Append(page.ListingContainer, newCard))
	require.Eventually(t, func() bool { return strings.Contains(badgeOf(t, doc, "104"), "Office:") },
		2*time.Second, 5*time.Millisecond)
}
