// Package appraiser scrapes land-area figures from a county property
// appraiser's public site. It is the secondary, slower data path used when
// the parcel feature service has no matching row or reports no site area.
package appraiser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Area is the scraped land-area pair.
type Area struct {
	SqFt  float64 `json:"sqft"`
	Acres float64 `json:"acres"`
}

// Scraper fetches and parses one appraiser property-details page per parcel.
type Scraper struct {
	client  *http.Client
	baseURL string
	log     *zap.Logger
}

// New creates a Scraper for the given appraiser base URL (the
// property-details endpoint without query parameters).
func New(baseURL string) *Scraper {
	return &Scraper{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		log:     zap.L().With(zap.String("component", "appraiser.scraper")),
	}
}

// Strap converts a dashed parcel id into the appraiser's internal "strap"
// key: the first and third dash segments swap places and the dashes drop.
// Identifiers without the six-segment shape just lose their dashes.
func Strap(parcelID string) string {
	parts := strings.Split(parcelID, "-")
	if len(parts) == 6 {
		parts[0], parts[2] = parts[2], parts[0]
		return strings.Join(parts, "")
	}
	return strings.ReplaceAll(parcelID, "-", "")
}

// The appraiser renders "Land Area: ≅ 59,560 sf | ≅ 1.36 acres"; the
// approximate-sign glyph is matched loosely since its encoding varies.
var landAreaRe = regexp.MustCompile(`Land Area:\s*\S*\s*([\d,]+)\s*sf\s*\|\s*\S*\s*([\d.]+)\s*acres`)

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// LandArea fetches the property-details page for a parcel and extracts the
// land-area pair.
func (s *Scraper) LandArea(ctx context.Context, parcelID string) (*Area, error) {
	params := url.Values{}
	params.Set("s", Strap(parcelID))
	params.Set("input", parcelID)
	params.Set("search_option", "parcel_number")

	pageURL := s.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "appraiser: create request")
	}
	req.Header.Set("User-Agent", "parcel-cli/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "appraiser: fetch property details")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("appraiser: status %d from %s", resp.StatusCode, s.baseURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, eris.Wrap(err, "appraiser: read body")
	}

	area, err := parseLandArea(string(body))
	if err != nil {
		return nil, err
	}

	s.log.Debug("scraped land area",
		zap.String("parcel_id", parcelID),
		zap.Float64("sqft", area.SqFt),
		zap.Float64("acres", area.Acres),
	)
	return area, nil
}

// parseLandArea flattens the page to text and matches the land-area line.
func parseLandArea(html string) (*Area, error) {
	text := htmlTagRe.ReplaceAllString(html, " ")
	text = strings.Join(strings.Fields(text), " ")

	m := landAreaRe.FindStringSubmatch(text)
	if m == nil {
		return nil, eris.New("appraiser: land area pattern not found on page")
	}

	sqft, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return nil, eris.Wrap(err, "appraiser: parse square footage")
	}
	acres, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return nil, eris.Wrap(err, "appraiser: parse acreage")
	}

	return &Area{SqFt: sqft, Acres: acres}, nil
}

// String renders the area the way the appraiser displays it.
func (a *Area) String() string {
	return fmt.Sprintf("%.0f sf | %.2f acres", a.SqFt, a.Acres)
}
