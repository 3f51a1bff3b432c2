package distance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"listing-distance/internal/platform/obs"
	"listing-distance/internal/ports"
	"net/http"
	"strings"
	"time"
)

var (
	ErrMalformedResponse = errors.New("malformed distance matrix response")
	ErrUpstreamStatus    = errors.New("distance matrix request failed")
	ErrRouteNotFound     = errors.New("no route between addresses")
)

// Distance Matrix JSON as returned by the Google Maps API.
type matrixResponse struct {
	Status               string      `json:"status"`
	ErrorMessage         string      `json:"error_message,omitempty"`
	OriginAddresses      []string    `json:"origin_addresses"`
	DestinationAddresses []string    `json:"destination_addresses"`
	Rows                 []matrixRow `json:"rows"`
}

type matrixRow struct {
	Elements []matrixElement `json:"elements"`
}

type matrixElement struct {
	Status   string     `json:"status"`
	Distance *textValue `json:"distance,omitempty"`
	Duration *textValue `json:"duration,omitempty"`
}

type textValue struct {
	Text  string `json:"text"`
	Value int    `json:"value"`
}

// GoogleDistanceProvider implements DistanceProvider using the Google Maps
// Distance Matrix API. One query issues exactly one outbound GET.
//
// The provider is safe for concurrent use.
type GoogleDistanceProvider struct {
	session *http.Client
	baseURL string
}

func NewGoogleDistanceProvider(baseURL string, timeout time.Duration) *GoogleDistanceProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleDistanceProvider{
		session: &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// normalize collapses whitespace in scraped addresses.
func (g *GoogleDistanceProvider) normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (g *GoogleDistanceProvider) GetDistance(
	ctx context.Context,
	q ports.DistanceQuery,
) (_ ports.DistanceResult, err error) {
	defer obs.Time(ctx, "google.GetDistance")(&err)

	origin := g.normalize(q.Origin)
	destination := g.normalize(q.Destination)
	if origin == "" || destination == "" {
		return ports.DistanceResult{}, errors.New("get google distance: origin and destination must be non-empty")
	}

	if strings.TrimSpace(q.APIKey) == "" {
		return ports.DistanceResult{}, errors.New("get google distance: api key is empty")
	}

	mode := q.TravelMode
	if mode == "" {
		mode = "driving"
	}

	endpoint := g.baseURL + "/maps/api/distancematrix/json"
	req, err := g.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ports.DistanceResult{}, fmt.Errorf("get google distance: %w", err)
	}

	params := req.URL.Query()
	params.Set("origins", origin)
	params.Set("destinations", destination)
	params.Set("mode", string(mode))
	params.Set("key", q.APIKey)
	req.URL.RawQuery = params.Encode()

	resp, err := g.do(req)
	if err != nil {
		return ports.DistanceResult{}, fmt.Errorf("get google distance: execute request: %w", err)
	}
	defer resp.Body.Close()

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return ports.DistanceResult{}, fmt.Errorf("%w: decode: %v", ErrMalformedResponse, err)
	}

	return parseMatrix(mr, origin, destination)
}

// parseMatrix extracts the single origin/destination element.
func parseMatrix(mr matrixResponse, origin, destination string) (ports.DistanceResult, error) {
	if mr.Status != "OK" {
		if mr.ErrorMessage != "" {
			return ports.DistanceResult{}, fmt.Errorf("%w: status %s: %s", ErrUpstreamStatus, orUnknown(mr.Status), mr.ErrorMessage)
		}
		return ports.DistanceResult{}, fmt.Errorf("%w: status %s", ErrUpstreamStatus, orUnknown(mr.Status))
	}

	if len(mr.Rows) == 0 || len(mr.Rows[0].Elements) == 0 {
		return ports.DistanceResult{}, fmt.Errorf("%w: no rows or elements", ErrMalformedResponse)
	}

	el := mr.Rows[0].Elements[0]
	if el.Status != "OK" {
		from, to := origin, destination
		if len(mr.OriginAddresses) > 0 && mr.OriginAddresses[0] != "" {
			from = mr.OriginAddresses[0]
		}
		if len(mr.DestinationAddresses) > 0 && mr.DestinationAddresses[0] != "" {
			to = mr.DestinationAddresses[0]
		}
		return ports.DistanceResult{}, fmt.Errorf(
			"%w: element status %s from %q to %q",
			ErrRouteNotFound, orUnknown(el.Status), from, to,
		)
	}

	if el.Distance == nil || el.Duration == nil {
		return ports.DistanceResult{}, fmt.Errorf("%w: element without distance or duration", ErrMalformedResponse)
	}

	return ports.DistanceResult{
		Distance: el.Distance.Text,
		Duration: el.Duration.Text,
	}, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}
