package parcel

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/parcel-cli/internal/arcgis"
)

// SquareFeetPerAcre converts site area when a source reports only footage.
const SquareFeetPerAcre = 43560.0

// Record is the canonical parcel shape assembled from one upstream
// response. Geometry is consumed downstream by jurisdiction resolution;
// the record itself never caches derived jurisdiction data.
type Record struct {
	ParcelID         string           `json:"parcel_id"`
	Address          string           `json:"address"`
	CityRaw          string           `json:"city_raw"`
	City             string           `json:"city"`
	ZIP              string           `json:"zip"`
	Owner            string           `json:"owner"`
	LandUse          string           `json:"land_use"`
	LegalDescription string           `json:"legal_description,omitempty"`
	SiteAreaSqFt     float64          `json:"site_area_sqft,omitempty"`
	SiteAreaAcres    float64          `json:"site_area_acres,omitempty"`
	Geometry         *arcgis.Geometry `json:"geometry,omitempty"`
}

// StripUseCode removes a leading numeric classification code from a
// land-use string: "0017 Office buildings, one story" becomes
// "Office buildings, one story". When nothing follows the code the
// original text is kept so the value is never emptied.
func StripUseCode(landUse string) string {
	text := strings.TrimSpace(landUse)
	if text == "" {
		return ""
	}
	if !unicode.IsDigit(rune(text[0])) {
		return text
	}
	_, rest, found := strings.Cut(text, " ")
	if !found || strings.TrimSpace(rest) == "" {
		return text
	}
	return strings.TrimSpace(rest)
}

var titleCaser = cases.Title(language.AmericanEnglish)

// ExpandCity maps a raw city or jurisdiction code onto its display name.
// Unknown values that arrive shouting in upper case are re-cased; mixed-case
// values pass through untouched.
func ExpandCity(raw string, names map[string]string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if name, ok := names[strings.ToUpper(trimmed)]; ok {
		return name
	}
	if trimmed == strings.ToUpper(trimmed) && len(trimmed) > 3 {
		return titleCaser.String(strings.ToLower(trimmed))
	}
	return trimmed
}
