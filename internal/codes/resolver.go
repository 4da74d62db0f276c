// Package codes resolves zoning and future-land-use classification codes
// into human-readable descriptions, using each layer's coded-value domain
// when one exists and static jurisdiction fallback tables when it does not.
package codes

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/parcel-cli/internal/arcgis"
	"github.com/sells-group/parcel-cli/internal/cache"
)

// Kind selects which classification a field lookup targets.
type Kind string

const (
	Zoning Kind = "zoning"
	FLU    Kind = "flu"
)

// CodeMap maps a normalized raw code to its description.
type CodeMap map[string]string

// FieldResolution names the code field picked from a layer schema and the
// code map built from its domain. Map is empty when the field carries no
// coded-value domain.
type FieldResolution struct {
	FieldName string
	Map       CodeMap
}

// ResolutionError reports that no suitable code field could be identified
// in a layer's schema. Callers degrade to raw codes; this never aborts an
// otherwise-successful lookup.
type ResolutionError struct {
	LayerURL string
	Kind     Kind
	Reason   string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("codes: %s field resolution failed for %s: %s", e.Kind, e.LayerURL, e.Reason)
}

// Field score weights, per kind. Presence of a coded-value domain adds
// domainBonus on top of the textual score; a non-positive total means no
// suitable field.
const (
	scoreStrongMatch = 100
	scoreWeakMatch   = 80
	domainBonus      = 50
)

// ScoreField ranks a schema field (by name and alias) for the given kind.
// Pure function; feed it synthetic field lists in tests.
func ScoreField(name, alias string, kind Kind) int {
	text := strings.ToLower(name + " " + alias)
	switch kind {
	case Zoning:
		if strings.Contains(text, "zoneclass") || strings.Contains(text, "zoning") {
			return scoreStrongMatch
		}
		if strings.Contains(text, "zone") {
			return scoreWeakMatch
		}
	case FLU:
		if strings.Contains(text, "future") && strings.Contains(text, "use") {
			return scoreStrongMatch
		}
		if strings.Contains(text, "landuse") || strings.Contains(text, "land use") ||
			strings.Contains(text, "flum") || strings.Contains(text, "flu") {
			return scoreWeakMatch
		}
	}
	return 0
}

// Resolver inspects layer schemas to find code fields and their domains.
// Resolutions are cached with a long TTL since upstream domain definitions
// change infrequently.
type Resolver struct {
	client *arcgis.Client
	cache  *cache.Cache[*FieldResolution]
	log    *zap.Logger
}

// NewResolver creates a Resolver. schemaCache may be nil to disable caching.
func NewResolver(client *arcgis.Client, schemaCache *cache.Cache[*FieldResolution]) *Resolver {
	return &Resolver{
		client: client,
		cache:  schemaCache,
		log:    zap.L().With(zap.String("component", "codes.resolver")),
	}
}

// ResolveField fetches the layer schema and picks the best-scoring code
// field for the kind, building the code map from its coded-value domain
// when one exists.
func (r *Resolver) ResolveField(ctx context.Context, layerURL string, kind Kind) (*FieldResolution, error) {
	key := layerURL + "|" + string(kind)
	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			return cached, nil
		}
	}

	info, err := r.client.Layer(ctx, layerURL)
	if err != nil {
		return nil, err
	}

	var best *arcgis.Field
	bestScore := -1
	for i := range info.Fields {
		f := &info.Fields[i]
		score := ScoreField(f.Name, f.Alias, kind)
		if f.Domain.IsCodedValue() {
			score += domainBonus
		}
		if score > bestScore {
			bestScore = score
			best = f
		}
	}

	if best == nil || bestScore <= 0 {
		return nil, &ResolutionError{LayerURL: layerURL, Kind: kind, Reason: "no field with a positive score"}
	}

	res := &FieldResolution{FieldName: best.Name, Map: domainMap(best.Domain)}
	r.log.Debug("resolved code field",
		zap.String("layer", layerURL),
		zap.String("kind", string(kind)),
		zap.String("field", best.Name),
		zap.Int("score", bestScore),
		zap.Int("domain_codes", len(res.Map)),
	)

	if r.cache != nil {
		r.cache.Put(key, res)
	}
	return res, nil
}

func domainMap(d *arcgis.Domain) CodeMap {
	m := CodeMap{}
	if !d.IsCodedValue() {
		return m
	}
	for _, cv := range d.CodedValues {
		key := arcgis.CodeKey(cv.Code)
		if key != "" {
			m[key] = cv.Name
		}
	}
	return m
}

// Alternate description fields scanned when neither the domain nor the
// fallback table knows a code.
var descriptionFields = []string{
	"ZONEDESC", "ZONE_DESC", "DESCRIPTION", "DESC",
	"LANDUSE_DESC", "FLU_DESC", "FUTURE_LAND_USE_DESC",
}

// Describe resolves a code to its description: domain map first, then the
// jurisdiction fallback table, then any alternate description field on the
// returned feature attributes. An unknown code yields an empty description
// and the caller keeps showing the raw code; no explicit unknown marker is
// invented.
func Describe(code string, domain CodeMap, fallback CodeMap, attrs map[string]any) string {
	if desc, ok := domain[code]; ok && desc != "" {
		return desc
	}
	if desc, ok := fallback[code]; ok && desc != "" {
		return desc
	}
	for _, key := range descriptionFields {
		if v, ok := attrs[key]; ok && v != nil {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return s
			}
		}
	}
	return ""
}
