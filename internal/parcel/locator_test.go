package parcel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/parcel-cli/internal/arcgis"
)

func testClient() *arcgis.Client {
	return arcgis.NewClient(arcgis.Options{})
}

func TestLocate_MapsQualifiedFields(t *testing.T) {
	var gotWhere string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWhere = r.URL.Query().Get("where")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"features": []map[string]any{{
				"attributes": map[string]any{
					"PGIS.PGIS.Parcels.PARCELID":     "19-31-17-73166-001-0010",
					"PGIS.PGIS.Parcels.SITEADDRESS":  "100 MAIN ST",
					"PGIS.PGIS.Parcels.JURISDICTION": "SP",
					"PGIS.PGIS.Parcels.OWNERNAME":    "JOHN DOE",
					"PGIS.PGIS.Parcels.LANDUSE":      "0017 Office buildings, one story",
					"PGIS.PGIS.Parcels.ACREAGE":      1.36,
				},
				"geometry": map[string]any{
					"rings": [][][]float64{{{-82.7, 27.8}, {-82.7, 27.9}, {-82.6, 27.9}, {-82.7, 27.8}}},
				},
			}},
		})
	}))
	defer srv.Close()

	loc := NewLocator(testClient(), Source{
		LayerURL: srv.URL,
		IDField:  "PGIS.PGIS.Parcels.PARCELID",
	}, map[string]string{"SP": "St. Petersburg"})

	rec, err := loc.Locate(context.Background(), "19-31-17-73166-001-0010")
	require.NoError(t, err)

	assert.Equal(t, "PGIS.PGIS.Parcels.PARCELID = '19-31-17-73166-001-0010'", gotWhere)
	assert.Equal(t, "100 MAIN ST", rec.Address)
	assert.Equal(t, "SP", rec.CityRaw)
	assert.Equal(t, "St. Petersburg", rec.City)
	assert.Equal(t, "JOHN DOE", rec.Owner)
	assert.Equal(t, "Office buildings, one story", rec.LandUse)
	assert.InDelta(t, 1.36, rec.SiteAreaAcres, 0.001)
	assert.InDelta(t, 1.36*SquareFeetPerAcre, rec.SiteAreaSqFt, 0.1)
	require.NotNil(t, rec.Geometry)
	assert.False(t, rec.Geometry.IsPoint())
}

func TestLocate_SqftToAcres(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"features": []map[string]any{{
				"attributes": map[string]any{
					"LANDSQFT": 43560.0,
				},
			}},
		})
	}))
	defer srv.Close()

	loc := NewLocator(testClient(), Source{LayerURL: srv.URL, IDField: "PARCELID"}, nil)

	rec, err := loc.Locate(context.Background(), "X")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rec.SiteAreaAcres, 0.001)
	assert.InDelta(t, 43560.0, rec.SiteAreaSqFt, 0.1)
}

func TestLocate_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"features": []any{}})
	}))
	defer srv.Close()

	loc := NewLocator(testClient(), Source{LayerURL: srv.URL, IDField: "PARCELID"}, nil)

	_, err := loc.Locate(context.Background(), "19-31-17-73166-001-9999")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocate_EscapesQuotes(t *testing.T) {
	var gotWhere string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWhere = r.URL.Query().Get("where")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"features": []any{}})
	}))
	defer srv.Close()

	loc := NewLocator(testClient(), Source{LayerURL: srv.URL, IDField: "PARCELID"}, nil)

	// Locate trusts its caller to have run Normalize, but escaping still
	// guards the where clause.
	_, _ = loc.Locate(context.Background(), "O'BRIEN")
	assert.Equal(t, "PARCELID = 'O''BRIEN'", gotWhere)
}
