package arcgis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/parcel-cli/internal/resilience"
)

func fastClient() *Client {
	return NewClient(Options{
		Retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
			Multiplier:     2.0,
		},
	})
}

func TestGetJSON_RetriesTransientStatus(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	var out map[string]string
	err := fastClient().GetJSON(context.Background(), srv.URL, nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, 3, calls)
}

func TestGetJSON_PermanentStatusNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	var out map[string]any
	err := fastClient().GetJSON(context.Background(), srv.URL, nil, &out)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, calls, "4xx must not be retried")
}

func TestGetJSON_MalformedBodyIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	var out map[string]any
	err := fastClient().GetJSON(context.Background(), srv.URL, nil, &out)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestQuery_DefaultParams(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		got = map[string]string{
			"path":              r.URL.Path,
			"f":                 q.Get("f"),
			"where":             q.Get("where"),
			"outFields":         q.Get("outFields"),
			"returnGeometry":    q.Get("returnGeometry"),
			"outSR":             q.Get("outSR"),
			"resultRecordCount": q.Get("resultRecordCount"),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"features": []any{}})
	}))
	defer srv.Close()

	_, err := fastClient().Query(context.Background(), srv.URL+"/0", QueryParams{})
	require.NoError(t, err)

	assert.Equal(t, "/0/query", got["path"])
	assert.Equal(t, "json", got["f"])
	assert.Equal(t, "1=1", got["where"])
	assert.Equal(t, "*", got["outFields"])
	assert.Equal(t, "false", got["returnGeometry"])
	assert.Equal(t, "4326", got["outSR"])
	assert.Equal(t, "5", got["resultRecordCount"])
}

func TestQuery_SpatialParams(t *testing.T) {
	var q map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"features": []any{}})
	}))
	defer srv.Close()

	g := NewPoint(-82.64, 27.77, WGS84)
	_, err := fastClient().Query(context.Background(), srv.URL, QueryParams{
		Geometry:   g,
		SpatialRel: SpatialRelIntersects,
	})
	require.NoError(t, err)

	assert.Equal(t, GeometryTypePoint, q["geometryType"][0])
	assert.Equal(t, SpatialRelIntersects, q["spatialRel"][0])
	assert.Equal(t, "4326", q["inSR"][0])

	var sent Geometry
	require.NoError(t, json.Unmarshal([]byte(q["geometry"][0]), &sent))
	assert.True(t, sent.IsPoint())
}

func TestQuery_ServerErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 400, "message": "Invalid query"},
		})
	}))
	defer srv.Close()

	_, err := fastClient().Query(context.Background(), srv.URL, QueryParams{})
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Contains(t, err.Error(), "Invalid query")
}

func TestLayer_ParsesSchema(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":   3,
			"name": "Zoning",
			"fields": []map[string]any{
				{"name": "ZONECLASS", "alias": "Zoning Classification", "domain": map[string]any{
					"type": "codedValue",
					"codedValues": []map[string]any{
						{"name": "Single Family Residential", "code": "R-1"},
					},
				}},
			},
		})
	}))
	defer srv.Close()

	info, err := fastClient().Layer(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, info.Fields, 1)
	assert.Equal(t, "ZONECLASS", info.Fields[0].Name)
	require.True(t, info.Fields[0].Domain.IsCodedValue())
	assert.Equal(t, "R-1", info.Fields[0].Domain.CodedValues[0].Code)
}
