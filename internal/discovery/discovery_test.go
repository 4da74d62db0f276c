package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/parcel-cli/internal/arcgis"
	"github.com/sells-group/parcel-cli/internal/cache"
	"github.com/sells-group/parcel-cli/internal/resilience"
)

const (
	testAppID    = "0123456789abcdef0123456789abcdef"
	testWebMapID = "fedcba9876543210fedcba9876543210"
)

func TestParseViewerURL(t *testing.T) {
	appID, host, err := parseViewerURL("https://gis.example.gov/portal/apps/webappviewer/index.html?id=" + testAppID)
	require.NoError(t, err)
	assert.Equal(t, testAppID, appID)
	assert.Equal(t, "gis.example.gov", host)
}

func TestParseViewerURL_MixedParams(t *testing.T) {
	appID, _, err := parseViewerURL("https://gis.example.gov/viewer?extent=1,2,3,4&id=" + testAppID + "&theme=dark")
	require.NoError(t, err)
	assert.Equal(t, testAppID, appID)
}

func TestParseViewerURL_NoAppID(t *testing.T) {
	_, _, err := parseViewerURL("https://gis.example.gov/viewer?name=zoning")
	require.Error(t, err)

	var dErr *Error
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, StepAppID, dErr.Step)
}

func TestParseViewerURL_ShortID(t *testing.T) {
	_, _, err := parseViewerURL("https://gis.example.gov/viewer?id=abc123")
	require.Error(t, err)
}

func TestParseViewerURL_NoPath(t *testing.T) {
	appID, host, err := parseViewerURL("https://gis.example.gov?id=" + testAppID)
	require.NoError(t, err)
	assert.Equal(t, testAppID, appID)
	assert.Equal(t, "gis.example.gov", host)
}

func TestExtractWebMapID(t *testing.T) {
	tests := []struct {
		name string
		meta map[string]any
		data map[string]any
		want string
		ok   bool
	}{
		{
			name: "top level in data",
			data: map[string]any{"webmap": testWebMapID},
			want: testWebMapID,
			ok:   true,
		},
		{
			name: "values.webmap",
			data: map[string]any{"values": map[string]any{"webmap": testWebMapID}},
			want: testWebMapID,
			ok:   true,
		},
		{
			name: "values.config.webmap",
			data: map[string]any{"values": map[string]any{"config": map[string]any{"webmap": testWebMapID}}},
			want: testWebMapID,
			ok:   true,
		},
		{
			name: "data preferred over meta",
			meta: map[string]any{"webmap": testAppID},
			data: map[string]any{"webmap": testWebMapID},
			want: testWebMapID,
			ok:   true,
		},
		{
			name: "meta fallback",
			meta: map[string]any{"webmap": testWebMapID},
			want: testWebMapID,
			ok:   true,
		},
		{
			name: "invalid id rejected",
			data: map[string]any{"webmap": "not-a-hex-id"},
			ok:   false,
		},
		{
			name: "nothing",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractWebMapID(tt.meta, tt.data)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestError_Format(t *testing.T) {
	e := &Error{Step: StepWebMapFetch}
	assert.Equal(t, "discovery: webmap fetch failed", e.Error())
}

// portalServer fakes the sharing API: app item documents plus the web map's
// data document. webMapStatus overrides the web-map response code when
// non-zero.
func portalServer(t *testing.T, layers []map[string]any, webMapStatus int) (*httptest.Server, *int) {
	t.Helper()
	calls := new(int)
	mux := http.NewServeMux()
	mux.HandleFunc("/sharing/rest/content/items/"+testAppID, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"title": "Zoning Viewer"})
	})
	mux.HandleFunc("/sharing/rest/content/items/"+testAppID+"/data", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"values": map[string]any{"webmap": testWebMapID},
		})
	})
	mux.HandleFunc("/sharing/rest/content/items/"+testWebMapID+"/data", func(w http.ResponseWriter, r *http.Request) {
		*calls++
		if webMapStatus != 0 {
			http.Error(w, "portal unavailable", webMapStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"operationalLayers": layers})
	})
	return httptest.NewServer(mux), calls
}

func newTestService(resultCache *cache.Cache[*Result]) *Service {
	client := arcgis.NewClient(arcgis.Options{
		Retry: resilience.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond},
	})
	return NewService(client, resultCache)
}

func TestDiscover_ClassifiesLayers(t *testing.T) {
	srv, _ := portalServer(t, []map[string]any{
		{"title": "City Zoning", "url": "https://gis.example.gov/rest/services/Zoning/MapServer/0"},
		{"title": "Future Land Use", "url": "https://gis.example.gov/rest/services/FLU/MapServer/0"},
		{"title": "Zoning and Land Use", "url": "https://gis.example.gov/rest/services/Combined/MapServer/0"},
		{"title": "Parcels", "url": "https://gis.example.gov/rest/services/Parcels/MapServer/0"},
		{"title": "Zoning Labels"}, // no URL, skipped
	}, 0)
	defer srv.Close()

	svc := newTestService(nil)
	res, err := svc.Discover(context.Background(), srv.URL+"/viewer?id="+testAppID)
	require.NoError(t, err)

	assert.Equal(t, testAppID, res.AppItemID)
	assert.Equal(t, testWebMapID, res.WebMapID)
	assert.Equal(t, 5, res.LayerCount)

	require.Len(t, res.Zoning, 2)
	assert.Equal(t, "City Zoning", res.Zoning[0].Title)
	assert.Equal(t, "Zoning and Land Use", res.Zoning[1].Title)

	require.Len(t, res.FLU, 2)
	assert.Equal(t, "Future Land Use", res.FLU[0].Title)
	assert.Equal(t, "Zoning and Land Use", res.FLU[1].Title)
}

func TestDiscover_WebMapFetchFailed(t *testing.T) {
	srv, _ := portalServer(t, nil, http.StatusInternalServerError)
	defer srv.Close()

	svc := newTestService(nil)
	res, err := svc.Discover(context.Background(), srv.URL+"/viewer?id="+testAppID)
	require.Error(t, err)
	assert.Nil(t, res, "a failed discovery never returns partial candidates")

	var dErr *Error
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, StepWebMapFetch, dErr.Step)
}

func TestDiscover_ItemFetchFailed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	svc := newTestService(nil)
	_, err := svc.Discover(context.Background(), srv.URL+"/viewer?id="+testAppID)
	require.Error(t, err)

	var dErr *Error
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, StepItemFetch, dErr.Step)
}

func TestDiscover_CachesResult(t *testing.T) {
	srv, calls := portalServer(t, []map[string]any{
		{"title": "Zoning", "url": "https://gis.example.gov/rest/services/Zoning/MapServer/0"},
	}, 0)
	defer srv.Close()

	svc := newTestService(cache.New[*Result](10, time.Minute))
	viewerURL := srv.URL + "/viewer?id=" + testAppID

	first, err := svc.Discover(context.Background(), viewerURL)
	require.NoError(t, err)
	second, err := svc.Discover(context.Background(), viewerURL)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, *calls)
}
