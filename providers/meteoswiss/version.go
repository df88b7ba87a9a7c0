package meteoswiss

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"meteoswiss-forecast/datasource"
)

// versionLayout is the layout of the model run token, e.g. 20200609_0913 (UTC)
const versionLayout = "20060102_1504"

var versionPattern = regexp.MustCompile(`(\d{8}_\d{4})`)

// ParseVersion extracts the model run token from a string such as
// "version__20200609_0913" or a full data URL.
func ParseVersion(s string) (string, error) {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("no model version found in %q", s)
	}
	return m[1], nil
}

// ModelCalculationTime returns the UTC time the model ran, taken from the version token in s
func ModelCalculationTime(s string) (time.Time, error) {
	version, err := ParseVersion(s)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(versionLayout, version, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse model version %q: %w", version, err)
	}
	return t, nil
}

// VersionResolver finds the currently published forecast-chart version
type VersionResolver struct {
	fetcher *datasource.HTTPFetcher
	url     string
	key     string
}

// NewVersionResolver creates a resolver reading the versions document at url.
// The document is a JSON object; key selects the forecast-chart entry.
func NewVersionResolver(fetcher *datasource.HTTPFetcher, url, key string) *VersionResolver {
	if key == "" {
		key = "forecast-chart"
	}
	return &VersionResolver{fetcher: fetcher, url: url, key: key}
}

// Resolve returns the current version token
func (r *VersionResolver) Resolve(ctx context.Context) (string, error) {
	body, _, err := r.fetcher.Get(ctx, r.url)
	if err != nil {
		return "", fmt.Errorf("failed to fetch versions: %w", err)
	}

	var versions map[string]interface{}
	if err := json.Unmarshal(body, &versions); err != nil {
		return "", fmt.Errorf("failed to parse versions: %w", err)
	}

	raw, ok := versions[r.key]
	if !ok {
		return "", fmt.Errorf("versions document has no %q entry", r.key)
	}
	return ParseVersion(fmt.Sprint(raw))
}
