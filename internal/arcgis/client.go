package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/parcel-cli/internal/resilience"
)

// Options configures the ArcGIS client.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Retry     resilience.RetryConfig

	// RateLimiters maps hostnames to per-host limiters. Hosts without an
	// entry share a permissive default limiter.
	RateLimiters map[string]*rate.Limiter
}

// Client issues JSON requests to ArcGIS REST endpoints with per-host rate
// limiting and bounded retry of transient failures.
type Client struct {
	http           *http.Client
	opts           Options
	limiters       map[string]*rate.Limiter
	defaultLimiter *rate.Limiter
}

// NewClient creates a Client with the given options.
func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "parcel-cli/1.0"
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	limiters := make(map[string]*rate.Limiter, len(opts.RateLimiters))
	for k, v := range opts.RateLimiters {
		limiters[k] = v
	}
	return &Client{
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:           opts,
		limiters:       limiters,
		defaultLimiter: rate.NewLimiter(10, 10),
	}
}

func (c *Client) limiterFor(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return c.defaultLimiter
	}
	if lim, ok := c.limiters[u.Host]; ok {
		return lim
	}
	return c.defaultLimiter
}

// GetJSON fetches rawURL with the given query parameters and decodes the
// response body into out. Transient statuses are retried within the
// configured budget; other failures surface as PermanentError.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	full := rawURL
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		full = rawURL + sep + params.Encode()
	}

	cfg := c.opts.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("arcgis", rawURL)
	}

	body, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		if err := c.limiterFor(full).Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "arcgis: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
		if err != nil {
			return nil, &PermanentError{URL: rawURL, Err: eris.Wrap(err, "create request")}
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "arcgis: fetch")
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
		if err != nil {
			return nil, eris.Wrap(err, "arcgis: read body")
		}

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(
				eris.Errorf("arcgis: http %d from %s", resp.StatusCode, rawURL),
				resp.StatusCode,
			)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &PermanentError{
				StatusCode: resp.StatusCode,
				URL:        rawURL,
				Err:        eris.New("unexpected status"),
			}
		}
		return data, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &PermanentError{URL: rawURL, Err: eris.Wrap(err, "decode response")}
	}
	return nil
}

// QueryParams describes one feature query.
type QueryParams struct {
	Where             string // default "1=1"
	OutFields         string // default "*"
	ReturnGeometry    bool
	Geometry          *Geometry // optional spatial filter
	SpatialRel        string    // default esriSpatialRelIntersects
	OutSR             int       // default WGS84
	ResultRecordCount int       // default 5
}

// Query runs a feature query against layerURL. An error envelope embedded
// in the response surfaces as a PermanentError.
func (c *Client) Query(ctx context.Context, layerURL string, q QueryParams) (*FeatureSet, error) {
	if q.Where == "" {
		q.Where = "1=1"
	}
	if q.OutFields == "" {
		q.OutFields = "*"
	}
	if q.SpatialRel == "" {
		q.SpatialRel = SpatialRelIntersects
	}
	if q.OutSR == 0 {
		q.OutSR = WGS84
	}
	if q.ResultRecordCount == 0 {
		q.ResultRecordCount = 5
	}

	params := url.Values{}
	params.Set("f", "json")
	params.Set("where", q.Where)
	params.Set("outFields", q.OutFields)
	params.Set("returnGeometry", strconv.FormatBool(q.ReturnGeometry))
	params.Set("outSR", strconv.Itoa(q.OutSR))
	params.Set("resultRecordCount", strconv.Itoa(q.ResultRecordCount))

	if q.Geometry != nil {
		gj, err := json.Marshal(q.Geometry)
		if err != nil {
			return nil, eris.Wrap(err, "arcgis: marshal geometry")
		}
		params.Set("geometry", string(gj))
		params.Set("geometryType", q.Geometry.Type())
		inSR := q.Geometry.WKID()
		if inSR == 0 {
			inSR = WGS84
		}
		params.Set("inSR", strconv.Itoa(inSR))
		params.Set("spatialRel", q.SpatialRel)
	}

	queryURL := strings.TrimRight(layerURL, "/") + "/query"
	var fs FeatureSet
	if err := c.GetJSON(ctx, queryURL, params, &fs); err != nil {
		return nil, err
	}
	if fs.Error != nil {
		return nil, &PermanentError{
			URL: queryURL,
			Err: eris.Errorf("server error %d: %s", fs.Error.Code, fs.Error.Message),
		}
	}
	return &fs, nil
}

// Layer fetches the schema metadata document of a feature layer.
func (c *Client) Layer(ctx context.Context, layerURL string) (*LayerInfo, error) {
	params := url.Values{}
	params.Set("f", "json")

	var info LayerInfo
	if err := c.GetJSON(ctx, strings.TrimRight(layerURL, "/"), params, &info); err != nil {
		return nil, err
	}
	if info.Error != nil {
		return nil, &PermanentError{
			URL: layerURL,
			Err: eris.Errorf("server error %d: %s", info.Error.Code, info.Error.Message),
		}
	}
	return &info, nil
}

// portalBase normalizes a portal host into a base URL. Hosts default to
// https; a host that already carries a scheme is used as-is.
func portalBase(host string) string {
	if strings.Contains(host, "://") {
		return strings.TrimRight(host, "/")
	}
	return "https://" + host
}

// ItemDocuments fetches a portal item's metadata and data documents. Either
// document may be nil when its fetch fails; an error is returned only when
// both are unavailable.
func (c *Client) ItemDocuments(ctx context.Context, host, itemID string) (meta, data map[string]any, err error) {
	base := fmt.Sprintf("%s/sharing/rest/content/items/%s", portalBase(host), itemID)
	params := url.Values{}
	params.Set("f", "json")

	var metaDoc map[string]any
	metaErr := c.GetJSON(ctx, base, params, &metaDoc)
	if metaErr == nil {
		meta = metaDoc
	}

	var dataDoc map[string]any
	dataErr := c.GetJSON(ctx, base+"/data", params, &dataDoc)
	if dataErr == nil {
		data = dataDoc
	}

	if meta == nil && data == nil {
		zap.L().Debug("portal item unreachable",
			zap.String("host", host),
			zap.String("item_id", itemID),
			zap.NamedError("meta_err", metaErr),
			zap.NamedError("data_err", dataErr),
		)
		return nil, nil, eris.Wrapf(dataErr, "arcgis: fetch portal item %s", itemID)
	}
	return meta, data, nil
}

// WebMapData fetches the data document of a web-map portal item.
func (c *Client) WebMapData(ctx context.Context, host, webmapID string) (*WebMap, error) {
	u := fmt.Sprintf("%s/sharing/rest/content/items/%s/data", portalBase(host), webmapID)
	params := url.Values{}
	params.Set("f", "json")

	var wm WebMap
	if err := c.GetJSON(ctx, u, params, &wm); err != nil {
		return nil, err
	}
	if wm.Error != nil {
		return nil, &PermanentError{
			URL: u,
			Err: eris.Errorf("server error %d: %s", wm.Error.Code, wm.Error.Message),
		}
	}
	return &wm, nil
}
