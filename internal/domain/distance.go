package domain

// Result of one origin -> listing computation as rendered in a badge.
// Distance and Duration are the human-readable strings returned by the
// mapping API and are never parsed into numeric units.
type DistanceResult struct {
	Origin     string     `json:"origin"`
	TravelMode TravelMode `json:"travelMode"`
	Duration   string     `json:"duration"`
	Distance   string     `json:"distance"`
}

// Label returns the abbreviated origin shown in the badge.
func (r DistanceResult) Label() string { return OriginLabel(r.Origin) }
