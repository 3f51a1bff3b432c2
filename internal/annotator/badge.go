package annotator

import (
	"html/template"
	"listing-distance/internal/domain"
	"strings"
)

const styles = `
.idealista-distance-info,
.idealista-distance-detail {
  margin: 8px 0;
  padding: 8px;
  background: #f0f8ff;
  border-radius: 4px;
  font-size: 13px;
}

.idealista-distance-detail {
  margin: 16px 0;
  font-size: 14px;
}

.idealista-distance-info .loading,
.idealista-distance-detail .loading {
  color: #666;
  font-style: italic;
}

.idealista-distance-info .error,
.idealista-distance-detail .error {
  color: #d32f2f;
}

.idealista-distance-info .warning,
.idealista-distance-detail .warning {
  color: #f57c00;
  font-weight: 500;
}

.distance-results {
  display: flex;
  flex-direction: column;
  gap: 4px;
}

.distance-item {
  display: flex;
  align-items: center;
  gap: 6px;
}

.mode-icon {
  font-size: 14px;
}

.location-label {
  font-weight: 600;
  color: #1976d2;
}

.duration {
  font-weight: 500;
  color: #333;
}

.distance {
  color: #666;
  font-size: 11px;
}
`

// Badge bodies. Result strings come from the mapping API and are escaped.
var badges = template.Must(template.New("badge").Parse(`
{{- define "warning"}}<span class="warning">⚠️ Configure API key to calculate distances</span>{{end -}}
{{- define "loading"}}<span class="loading">Calculating distance...</span>{{end -}}
{{- define "error"}}<span class="error">Unable to calculate distance</span>{{end -}}
{{- define "results"}}<div class="distance-results">
{{- range .}}<div class="distance-item">
<span class="mode-icon">{{.TravelMode.Icon}}</span>
<span class="location-label">{{.Label}}:</span>
<span class="duration">{{.Duration}}</span>
<span class="distance">({{.Distance}})</span>
</div>{{end -}}
</div>{{end -}}
`))

var (
	warningBadge = mustRender("warning", nil)
	loadingBadge = mustRender("loading", nil)
	errorBadge   = mustRender("error", nil)
)

// resultsBadge renders the successful results in the order given, or the
// generic error when there are none.
func resultsBadge(results []domain.DistanceResult) (string, error) {
	if len(results) == 0 {
		return errorBadge, nil
	}
	return render("results", results)
}

func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := badges.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func mustRender(name string, data any) string {
	s, err := render(name, data)
	if err != nil {
		panic(err)
	}
	return s
}
