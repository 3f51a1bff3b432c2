// Package annotator decorates listing and detail pages with travel times
// from the user's configured locations.
//
// An Annotator runs one session at a time. A session owns the settings it was
// started with, the set of listings already processed and every goroutine it
// launched; Reset tears all of that down and starts a fresh session.
package annotator

import (
	"context"
	"errors"
	"fmt"
	"listing-distance/internal/domain"
	"listing-distance/internal/page"
	"listing-distance/internal/relay"
	"log"
	"sync"
)

// State is where an Annotator is in its page lifecycle.
type State int

const (
	Uninitialized State = iota
	AwaitingContent
	Scanning
	Idle
	Halted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case AwaitingContent:
		return "awaiting-content"
	case Scanning:
		return "scanning"
	case Idle:
		return "idle"
	case Halted:
		return "halted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var ErrAlreadyStarted = errors.New("annotator already started")

// SettingsSource provides the effective settings at session start.
type SettingsSource interface {
	Settings(ctx context.Context) (domain.Settings, error)
}

// Relay performs one distance lookup.
type Relay interface {
	CalculateDistance(ctx context.Context, msg relay.Message) (relay.Distance, error)
}

// Record is what was computed for one listing.
type Record struct {
	ListingID string
	Address   string
	Results   []domain.DistanceResult
	Failed    bool
}

// DetailListingID is the record id used for the single listing of a detail page.
const DetailListingID = "detail"

// Annotator drives one page surface. It is safe for concurrent use; Start,
// Reset and AnnotateOnce are serialized.
type Annotator struct {
	surface  page.Surface
	settings SettingsSource
	relay    Relay

	// lifecycle serializes Start and Reset.
	lifecycle sync.Mutex

	mu      sync.Mutex
	state   State
	sess    *session
	records map[string]*Record
	order   []string
}

// New returns an Annotator in the Uninitialized state.
func New(surface page.Surface, settings SettingsSource, r Relay) *Annotator {
	return &Annotator{
		surface:  surface,
		settings: settings,
		relay:    r,
		records:  make(map[string]*Record),
	}
}

type session struct {
	settings domain.Settings
	ctx      context.Context
	cancel   context.CancelFunc

	// flows tracks the container goroutines, fills the per-listing work.
	flows sync.WaitGroup
	fills inflight

	mu        sync.Mutex
	processed map[string]struct{}
}

// inflight counts running lookups. Unlike sync.WaitGroup it allows new work
// to be added while someone is waiting.
type inflight struct {
	mu   sync.Mutex
	n    int
	zero chan struct{}
}

func (f *inflight) add() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.n == 0 {
		f.zero = make(chan struct{})
	}
	f.n++
}

func (f *inflight) done() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.n--
	if f.n == 0 {
		close(f.zero)
	}
}

func (f *inflight) wait() {
	f.mu.Lock()
	if f.n == 0 {
		f.mu.Unlock()
		return
	}
	zero := f.zero
	f.mu.Unlock()

	<-zero
}

// markProcessed records key and reports whether it was new.
func (s *session) markProcessed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.processed[key]; ok {
		return false
	}
	s.processed[key] = struct{}{}
	return true
}

func (s *session) processedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed)
}

// Start loads the settings and begins watching the page. The session lives
// until ctx ends or Reset is called. With no configured locations the
// annotator halts without touching the page.
func (a *Annotator) Start(ctx context.Context) error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	return a.start(ctx)
}

func (a *Annotator) start(ctx context.Context) error {
	sess, err := a.open(ctx, AwaitingContent)
	if err != nil || sess == nil {
		return err
	}

	sess.flows.Add(2)
	go a.listingFlow(sess)
	go a.detailFlow(sess)

	return nil
}

// open creates the session for freshly loaded settings and makes it current.
// It returns a nil session when there is nothing to do.
func (a *Annotator) open(ctx context.Context, state State) (*session, error) {
	if a.current() != nil {
		return nil, ErrAlreadyStarted
	}

	settings, err := a.settings.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("start annotator: load settings: %w", err)
	}

	if !settings.HasLocations() {
		log.Printf("annotator: no locations configured, halting")
		a.setState(Halted)
		return nil, nil
	}
	log.Printf("annotator: settings loaded has_api_key=%t locations=%d", settings.HasAPIKey(), len(settings.Locations))

	if err := a.surface.InjectStyles(ctx, page.StyleID, styles); err != nil {
		return nil, fmt.Errorf("start annotator: %w", err)
	}

	sctx, cancel := context.WithCancel(ctx)
	sess := &session{
		settings:  settings,
		ctx:       sctx,
		cancel:    cancel,
		processed: make(map[string]struct{}),
	}

	a.mu.Lock()
	a.sess = sess
	a.state = state
	a.mu.Unlock()

	return sess, nil
}

// AnnotateOnce annotates the page as it is now and returns when every badge
// is final. Nothing is watched afterwards. Used for saved pages.
func (a *Annotator) AnnotateOnce(ctx context.Context) error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	sess, err := a.open(ctx, Scanning)
	if err != nil || sess == nil {
		return err
	}
	defer sess.cancel()

	a.scan(sess)

	fields, err := a.surface.DetailFields(sess.ctx)
	if err != nil {
		log.Printf("annotator: detail fields: %v", err)
	} else if fields.Address() != "" {
		a.annotateDetail(sess)
	}

	sess.fills.wait()

	a.mu.Lock()
	a.sess = nil
	a.state = Idle
	a.mu.Unlock()

	return ctx.Err()
}

// Reset ends the current session, removes every badge it injected and
// starts over with freshly loaded settings. Used when settings change.
func (a *Annotator) Reset(ctx context.Context) error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	sess := a.sess
	a.sess = nil
	a.mu.Unlock()

	if sess != nil {
		sess.cancel()
		sess.flows.Wait()
		sess.fills.wait()
	}

	removed, err := a.surface.ClearBadges(ctx)
	if err != nil {
		return fmt.Errorf("reset annotator: %w", err)
	}

	a.mu.Lock()
	a.records = make(map[string]*Record)
	a.order = nil
	a.state = Uninitialized
	a.mu.Unlock()
	log.Printf("annotator: reset removed_badges=%d", removed)

	return a.start(ctx)
}

// Stop ends the current session and waits for its goroutines. Badges stay.
func (a *Annotator) Stop() {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	sess := a.sess
	a.sess = nil
	a.mu.Unlock()

	if sess != nil {
		sess.cancel()
		sess.flows.Wait()
		sess.fills.wait()
	}
}

// Wait blocks until the distance lookups started so far have been rendered.
func (a *Annotator) Wait() {
	if sess := a.current(); sess != nil {
		sess.fills.wait()
	}
}

func (a *Annotator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Annotator) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

func (a *Annotator) current() *session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sess
}

// Processed is the number of listings handled by the current session.
func (a *Annotator) Processed() int {
	sess := a.current()
	if sess == nil {
		return 0
	}
	return sess.processedCount()
}

// Records returns a copy of the listing records in the order listings were first seen.
func (a *Annotator) Records() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Record, 0, len(a.order))
	for _, id := range a.order {
		r := *a.records[id]
		r.Results = append([]domain.DistanceResult(nil), r.Results...)
		out = append(out, r)
	}
	return out
}

func (a *Annotator) addRecord(id, address string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.records[id]; ok {
		return
	}
	a.records[id] = &Record{ListingID: id, Address: address}
	a.order = append(a.order, id)
}

func (a *Annotator) finishRecord(id string, results []domain.DistanceResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if r, ok := a.records[id]; ok {
		r.Results = results
		r.Failed = len(results) == 0
	}
}

// distances queries every configured location in order, one at a time.
// Failed lookups are logged and left out.
func (a *Annotator) distances(sess *session, listingID, destination string) []domain.DistanceResult {
	results := make([]domain.DistanceResult, 0, len(sess.settings.Locations))
	for _, loc := range sess.settings.Locations {
		if sess.ctx.Err() != nil {
			return nil
		}

		d, err := a.relay.CalculateDistance(sess.ctx, relay.Message{
			Origin:      loc.Address,
			Destination: destination,
			TravelMode:  loc.TravelMode,
			APIKey:      sess.settings.APIKey,
		})
		if err != nil {
			if sess.ctx.Err() == nil {
				log.Printf("annotator: distance failed listing=%s origin=%q mode=%s err=%v",
					listingID, loc.Address, loc.TravelMode, err)
			}
			continue
		}

		results = append(results, domain.DistanceResult{
			Origin:     loc.Address,
			TravelMode: loc.TravelMode,
			Duration:   d.Duration,
			Distance:   d.Distance,
		})
	}
	return results
}
