// Package discovery locates candidate zoning and future-land-use layers in
// a jurisdiction's public map-viewer configuration: viewer URL → portal app
// item → web map → operational layers.
package discovery

import (
	"context"
	"fmt"
	"net/url"
	"regexp"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/parcel-cli/internal/arcgis"
	"github.com/sells-group/parcel-cli/internal/cache"
)

// Discovery failure steps. Any failure short-circuits to zero candidates;
// a partial or guessed layer URL is never returned.
const (
	StepAppID       = "no app id"
	StepItemFetch   = "item fetch failed"
	StepWebMapID    = "no webmap id"
	StepWebMapFetch = "webmap fetch failed"
)

// Error is a discovery failure annotated with the step that failed, so the
// caller can present an actionable message.
type Error struct {
	Step string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("discovery: %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("discovery: %s", e.Step)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Candidate is one discovered layer, ranked later by title score.
type Candidate struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Result holds the candidates discovered from one viewer configuration.
type Result struct {
	Host       string      `json:"host"`
	AppItemID  string      `json:"app_item_id"`
	WebMapID   string      `json:"webmap_id"`
	LayerCount int         `json:"layer_count"`
	Zoning     []Candidate `json:"zoning"`
	FLU        []Candidate `json:"flu"`
}

var (
	appIDRe = regexp.MustCompile(`(?i)[?&]id=([0-9a-f]{32})`)
	hexIDRe = regexp.MustCompile(`(?i)^[0-9a-f]{32}$`)

	zoneTitleRe = regexp.MustCompile(`(?i)(zone|zoning)`)
	fluTitleRe  = regexp.MustCompile(`(?i)(future|land\s*use|flum|flu)`)
)

// Service discovers layers through the portal sharing API. Results are
// cached with a long TTL since viewer configurations change rarely.
type Service struct {
	client *arcgis.Client
	cache  *cache.Cache[*Result]
	log    *zap.Logger
}

// NewService creates a discovery Service. resultCache may be nil to disable
// caching.
func NewService(client *arcgis.Client, resultCache *cache.Cache[*Result]) *Service {
	return &Service{
		client: client,
		cache:  resultCache,
		log:    zap.L().With(zap.String("component", "discovery")),
	}
}

// Discover inspects the viewer URL's application item and web map and
// classifies its operational layers into zoning and FLU candidates. A layer
// may land in both buckets or neither.
func (s *Service) Discover(ctx context.Context, viewerURL string) (*Result, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(viewerURL); ok {
			return cached, nil
		}
	}

	appID, host, err := parseViewerURL(viewerURL)
	if err != nil {
		return nil, err
	}

	meta, data, err := s.client.ItemDocuments(ctx, host, appID)
	if err != nil {
		return nil, &Error{Step: StepItemFetch, Err: err}
	}

	webmapID, ok := extractWebMapID(meta, data)
	if !ok {
		return nil, &Error{Step: StepWebMapID, Err: eris.New("no 32-character webmap id in app item documents")}
	}

	wm, err := s.client.WebMapData(ctx, host, webmapID)
	if err != nil {
		return nil, &Error{Step: StepWebMapFetch, Err: err}
	}

	result := &Result{
		Host:       host,
		AppItemID:  appID,
		WebMapID:   webmapID,
		LayerCount: len(wm.OperationalLayers),
	}
	for _, lyr := range wm.OperationalLayers {
		if lyr.URL == "" {
			continue
		}
		title := lyr.Title
		if title == "" {
			title = lyr.LayerType
		}
		c := Candidate{Title: title, URL: lyr.URL}
		if zoneTitleRe.MatchString(title) {
			result.Zoning = append(result.Zoning, c)
		}
		if fluTitleRe.MatchString(title) {
			result.FLU = append(result.FLU, c)
		}
	}

	s.log.Info("discovered viewer layers",
		zap.String("host", host),
		zap.String("webmap_id", webmapID),
		zap.Int("layers", result.LayerCount),
		zap.Int("zoning_candidates", len(result.Zoning)),
		zap.Int("flu_candidates", len(result.FLU)),
	)

	if s.cache != nil {
		s.cache.Put(viewerURL, result)
	}
	return result, nil
}

// parseViewerURL extracts the 32-hex application item id and host from a
// viewer URL. Plain-http viewers keep their scheme on the host so portal
// requests stay on the same endpoint.
func parseViewerURL(viewerURL string) (appID, host string, err error) {
	m := appIDRe.FindStringSubmatch(viewerURL)
	if m == nil {
		return "", "", &Error{Step: StepAppID, Err: eris.Errorf("no ?id=<32 hex> in %q", viewerURL)}
	}
	u, err := url.Parse(viewerURL)
	if err != nil || u.Host == "" {
		return "", "", &Error{Step: StepAppID, Err: eris.Errorf("cannot parse host from %q", viewerURL)}
	}
	host = u.Host
	if u.Scheme == "http" {
		host = "http://" + u.Host
	}
	return m[1], host, nil
}

// extractWebMapID searches the item documents for an embedded web-map id,
// preferring the data document over metadata. Checked locations: top-level
// "webmap", "values.webmap", and "values.config.webmap".
func extractWebMapID(meta, data map[string]any) (string, bool) {
	for _, doc := range []map[string]any{data, meta} {
		if doc == nil {
			continue
		}
		if id, ok := hexID(doc["webmap"]); ok {
			return id, true
		}
		values, ok := doc["values"].(map[string]any)
		if !ok {
			continue
		}
		if id, ok := hexID(values["webmap"]); ok {
			return id, true
		}
		if config, ok := values["config"].(map[string]any); ok {
			if id, ok := hexID(config["webmap"]); ok {
				return id, true
			}
		}
	}
	return "", false
}

func hexID(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || !hexIDRe.MatchString(s) {
		return "", false
	}
	return s, true
}
