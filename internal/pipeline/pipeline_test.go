package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/parcel-cli/internal/appraiser"
	"github.com/sells-group/parcel-cli/internal/arcgis"
	"github.com/sells-group/parcel-cli/internal/cache"
	"github.com/sells-group/parcel-cli/internal/codes"
	"github.com/sells-group/parcel-cli/internal/discovery"
	"github.com/sells-group/parcel-cli/internal/jurisdiction"
	"github.com/sells-group/parcel-cli/internal/parcel"
	"github.com/sells-group/parcel-cli/internal/resilience"
	"github.com/sells-group/parcel-cli/internal/router"
)

type countyFixture struct {
	parcelQueries int
	parcelEmpty   bool
}

// newCountyServer wires a full fake county: parcel source, boundary layer,
// and a static zoning/FLU layer pair.
func newCountyServer(t *testing.T, fx *countyFixture) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("/parcel/query", func(w http.ResponseWriter, r *http.Request) {
		fx.parcelQueries++
		if fx.parcelEmpty {
			writeJSON(w, map[string]any{"features": []any{}})
			return
		}
		writeJSON(w, map[string]any{
			"features": []map[string]any{{
				"attributes": map[string]any{
					"PARCELID":     "19-31-17-73166-001-0010",
					"SITEADDRESS":  "100 MAIN ST",
					"JURISDICTION": "SP",
					"OWNERNAME":    "JOHN DOE",
					"LANDUSE":      "0017 Office buildings, one story",
					"ACREAGE":      1.36,
				},
				"geometry": map[string]any{
					"rings": [][][]float64{
						{{-82.7, 27.8}, {-82.7, 27.9}, {-82.6, 27.9}, {-82.6, 27.8}, {-82.7, 27.8}},
					},
				},
			}},
		})
	})

	mux.HandleFunc("/boundary/query", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"features": []map[string]any{{
				"attributes": map[string]any{"NAME": "St. Petersburg"},
			}},
		})
	})

	mux.HandleFunc("/zoning", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"fields": []map[string]any{
				{"name": "ZONECLASS", "domain": map[string]any{
					"type": "codedValue",
					"codedValues": []map[string]any{
						{"name": "Downtown Center 1", "code": "DC-1"},
					},
				}},
			},
		})
	})
	mux.HandleFunc("/zoning/query", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"features": []map[string]any{{"attributes": map[string]any{"ZONECLASS": "DC-1"}}},
		})
	})

	mux.HandleFunc("/flu", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"fields": []map[string]any{
				{"name": "FUTURE_LAND_USE", "domain": map[string]any{
					"type": "codedValue",
					"codedValues": []map[string]any{
						{"name": "Central Business District", "code": "CBD"},
					},
				}},
			},
		})
	})
	mux.HandleFunc("/flu/query", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"features": []map[string]any{{"attributes": map[string]any{"FUTURE_LAND_USE": "CBD"}}},
		})
	})

	return httptest.NewServer(mux)
}

func newTestPipeline(t *testing.T, srvURL string, scraper *appraiser.Scraper) *Pipeline {
	t.Helper()
	client := arcgis.NewClient(arcgis.Options{
		Retry: resilience.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond},
	})

	fallbacks, err := codes.LoadFallbackTables()
	require.NoError(t, err)

	strategies := jurisdiction.NewRegistry()
	strategies.Register("St. Petersburg", jurisdiction.Static(srvURL+"/zoning", srvURL+"/flu"))

	rt := router.New(client, codes.NewResolver(client, nil), discovery.NewService(client, nil), strategies, fallbacks)

	return New(Options{
		County: "pinellas",
		Format: parcel.Format{Segments: []int{2, 2, 2, 5, 3, 4}, Dashed: true},
		Locator: parcel.NewLocator(client, parcel.Source{
			LayerURL: srvURL + "/parcel",
			IDField:  "PARCELID",
		}, map[string]string{"SP": "St. Petersburg"}),
		Resolver: jurisdiction.NewResolver(client, jurisdiction.Boundary{
			LayerURL:  srvURL + "/boundary",
			NameField: "NAME",
		}, nil),
		Router:      rt,
		Appraiser:   scraper,
		ParcelCache: cache.New[*parcel.Record](10, time.Minute),
	})
}

func TestLookup_EndToEnd(t *testing.T) {
	fx := &countyFixture{}
	srv := newCountyServer(t, fx)
	defer srv.Close()

	p := newTestPipeline(t, srv.URL, nil)

	result, err := p.Lookup(context.Background(), "193117731660010010")
	require.NoError(t, err)

	assert.NotEmpty(t, result.LookupID)
	assert.Equal(t, "pinellas", result.County)
	assert.Equal(t, "19-31-17-73166-001-0010", result.ParcelID)

	rec := result.Record
	require.NotNil(t, rec)
	assert.Equal(t, "JOHN DOE", rec.Owner)
	assert.Equal(t, "St. Petersburg", rec.City)
	assert.Equal(t, "Office buildings, one story", rec.LandUse)
	assert.InDelta(t, 1.36, rec.SiteAreaAcres, 0.001)

	z := result.Zoning
	require.NotNil(t, z)
	assert.True(t, z.Success)
	assert.Equal(t, "St. Petersburg", z.Jurisdiction)
	assert.Equal(t, "DC-1", z.ZoningCode)
	assert.Equal(t, "Downtown Center 1", z.ZoningDescription)
	assert.Equal(t, "CBD", z.FLUCode)
	assert.Equal(t, "Central Business District", z.FLUDescription)
}

func TestLookup_ParcelCacheHit(t *testing.T) {
	fx := &countyFixture{}
	srv := newCountyServer(t, fx)
	defer srv.Close()

	p := newTestPipeline(t, srv.URL, nil)

	_, err := p.Lookup(context.Background(), "193117731660010010")
	require.NoError(t, err)
	_, err = p.Lookup(context.Background(), "19-31-17-73166-001-0010")
	require.NoError(t, err)

	assert.Equal(t, 1, fx.parcelQueries, "second lookup must reuse the cached record")
}

func TestLookup_ValidationError(t *testing.T) {
	p := newTestPipeline(t, "http://unused", nil)

	_, err := p.Lookup(context.Background(), "abc';DROP TABLE parcels--")
	require.Error(t, err)
	var vErr *parcel.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestLookup_NotFoundWithoutAppraiser(t *testing.T) {
	fx := &countyFixture{parcelEmpty: true}
	srv := newCountyServer(t, fx)
	defer srv.Close()

	p := newTestPipeline(t, srv.URL, nil)

	_, err := p.Lookup(context.Background(), "193117731660010010")
	require.ErrorIs(t, err, parcel.ErrNotFound)
}

func TestLookup_AppraiserFallback(t *testing.T) {
	fx := &countyFixture{parcelEmpty: true}
	srv := newCountyServer(t, fx)
	defer srv.Close()

	appraiserSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><span>Land Area: &#8773; 59,560 sf | &#8773; 1.36 acres</span></body></html>`))
	}))
	defer appraiserSrv.Close()

	p := newTestPipeline(t, srv.URL, appraiser.New(appraiserSrv.URL))

	result, err := p.Lookup(context.Background(), "193117731660010010")
	require.NoError(t, err)

	rec := result.Record
	require.NotNil(t, rec)
	assert.InDelta(t, 59560.0, rec.SiteAreaSqFt, 0.1)
	assert.InDelta(t, 1.36, rec.SiteAreaAcres, 0.001)
	assert.Nil(t, rec.Geometry)

	// No footprint means the zoning stage degrades but the lookup succeeds.
	require.NotNil(t, result.Zoning)
	assert.False(t, result.Zoning.Success)
}
