package distance

import (
	"context"
	"fmt"
	"listing-distance/internal/domain"
	"listing-distance/internal/ports"
	"sync"
)

type MockPair struct {
	From, To string
	Mode     domain.TravelMode
	Distance string
	Duration string
}

// MockDistanceProvider answers from a fixed table keyed by origin, destination and mode.
// Unknown pairs fail, which lets tests exercise partial failure.
type MockDistanceProvider struct {
	m map[string]ports.DistanceResult

	mu      sync.Mutex
	queries []ports.DistanceQuery
}

func NewMockDistanceProvider(pairs []MockPair) *MockDistanceProvider {
	m := make(map[string]ports.DistanceResult, len(pairs))
	for _, p := range pairs {
		m[mockKey(p.From, p.To, p.Mode)] = ports.DistanceResult{Distance: p.Distance, Duration: p.Duration}
	}
	return &MockDistanceProvider{m: m}
}

func mockKey(from, to string, mode domain.TravelMode) string {
	if mode == "" {
		mode = domain.TravelModeDriving
	}
	return from + "|" + to + "|" + string(mode)
}

func (p *MockDistanceProvider) GetDistance(ctx context.Context, q ports.DistanceQuery) (ports.DistanceResult, error) {
	p.mu.Lock()
	p.queries = append(p.queries, q)
	p.mu.Unlock()

	r, ok := p.m[mockKey(q.Origin, q.Destination, q.TravelMode)]
	if !ok {
		return ports.DistanceResult{}, fmt.Errorf("missing pair %q -> %q (%s)", q.Origin, q.Destination, q.TravelMode)
	}

	return r, nil
}

// Queries returns every query received so far.
func (p *MockDistanceProvider) Queries() []ports.DistanceQuery {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ports.DistanceQuery(nil), p.queries...)
}
