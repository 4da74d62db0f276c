package parcel

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/parcel-cli/internal/arcgis"
)

// ErrNotFound reports a valid identifier with no matching parcel row. It is
// distinct from upstream failures so callers can fall back to a secondary,
// slower data path instead of failing outright.
var ErrNotFound = eris.New("parcel: not found")

// Source identifies one county's authoritative parcel feature layer.
type Source struct {
	LayerURL string
	IDField  string
}

// Each canonical attribute is mapped from source fields in fixed priority
// order; field names vary per county and sometimes per table.
var (
	addressFields = []string{"SITEADDRESS", "SITE_ADDRESS", "SITEADDR", "ADDRESS"}
	cityFields    = []string{"JURISDICTION", "CITY", "SITECITY"}
	zipFields     = []string{"ZIP", "ZIPCODE", "SITEZIP"}
	ownerFields   = []string{"OWNERNAME", "OWNER", "NAME"}
	landUseFields = []string{"PROPOSEDLANDUSE", "LANDUSE", "LANDUSECODE", "DOR_UC"}
	legalFields   = []string{"LEGAL", "LEGALDESC", "LEGAL_DESC"}
	sqftFields    = []string{"LANDSQFT", "LAND_SQFT", "SQFT", "LOTSIZE"}
	acreFields    = []string{"ACREAGE", "ACRES", "GIS_ACRES"}
)

// Locator queries a county parcel source by identifier.
type Locator struct {
	client    *arcgis.Client
	src       Source
	cityNames map[string]string
	log       *zap.Logger
}

// NewLocator creates a Locator for one county source. cityNames maps raw
// city codes (e.g. "SP") to display names and may be nil.
func NewLocator(client *arcgis.Client, src Source, cityNames map[string]string) *Locator {
	return &Locator{
		client:    client,
		src:       src,
		cityNames: cityNames,
		log:       zap.L().With(zap.String("component", "parcel.locator")),
	}
}

// Locate fetches the parcel row for a normalized identifier and maps it
// onto the canonical Record. Returns ErrNotFound when the source has no
// matching feature.
func (l *Locator) Locate(ctx context.Context, id string) (*Record, error) {
	where := fmt.Sprintf("%s = '%s'", l.src.IDField, arcgis.EscapeValue(id))

	fs, err := l.client.Query(ctx, l.src.LayerURL, arcgis.QueryParams{
		Where:             where,
		ReturnGeometry:    true,
		OutSR:             arcgis.WGS84,
		ResultRecordCount: 1,
	})
	if err != nil {
		return nil, eris.Wrap(err, "parcel: query parcel source")
	}

	attrs := fs.FirstAttributes()
	if attrs == nil {
		return nil, ErrNotFound
	}

	rec := l.mapRecord(id, attrs)
	rec.Geometry = fs.FirstGeometry()

	l.log.Debug("parcel located",
		zap.String("parcel_id", id),
		zap.String("city", rec.City),
		zap.Bool("has_geometry", rec.Geometry != nil),
	)
	return rec, nil
}

func (l *Locator) mapRecord(id string, attrs map[string]any) *Record {
	rec := &Record{
		ParcelID:         id,
		Address:          firstString(attrs, addressFields),
		CityRaw:          firstString(attrs, cityFields),
		ZIP:              firstString(attrs, zipFields),
		Owner:            firstString(attrs, ownerFields),
		LandUse:          StripUseCode(firstString(attrs, landUseFields)),
		LegalDescription: firstString(attrs, legalFields),
	}
	rec.City = ExpandCity(rec.CityRaw, l.cityNames)

	acres := firstNumber(attrs, acreFields)
	sqft := firstNumber(attrs, sqftFields)
	if acres == 0 && sqft > 0 {
		acres = sqft / SquareFeetPerAcre
	}
	if sqft == 0 && acres > 0 {
		sqft = acres * SquareFeetPerAcre
	}
	rec.SiteAreaAcres = acres
	rec.SiteAreaSqFt = sqft

	return rec
}

// firstString returns the first non-empty string value among the named
// attribute keys, matching source field names case-insensitively.
func firstString(attrs map[string]any, keys []string) string {
	for _, key := range keys {
		if v, ok := lookupField(attrs, key); ok {
			s := strings.TrimSpace(fmt.Sprint(v))
			if s != "" && s != "<nil>" {
				return s
			}
		}
	}
	return ""
}

// firstNumber returns the first positive numeric value among the named keys.
func firstNumber(attrs map[string]any, keys []string) float64 {
	for _, key := range keys {
		v, ok := lookupField(attrs, key)
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			if n > 0 {
				return n
			}
		case int:
			if n > 0 {
				return float64(n)
			}
		case string:
			if f, err := strconv.ParseFloat(strings.ReplaceAll(n, ",", ""), 64); err == nil && f > 0 {
				return f
			}
		}
	}
	return 0
}

// lookupField matches an attribute key ignoring case and any table-name
// qualification prefix (e.g. "PGIS.PGIS.Parcels.PARCELID").
func lookupField(attrs map[string]any, key string) (any, bool) {
	if v, ok := attrs[key]; ok {
		return v, true
	}
	for k, v := range attrs {
		bare := k
		if idx := strings.LastIndex(k, "."); idx >= 0 {
			bare = k[idx+1:]
		}
		if strings.EqualFold(bare, key) {
			return v, true
		}
	}
	return nil, false
}
