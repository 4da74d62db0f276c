// Package jurisdiction determines which municipal authority governs a
// parcel footprint and maps each jurisdiction onto its zoning/FLU query
// strategy.
package jurisdiction

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/parcel-cli/internal/arcgis"
)

// Unincorporated is the sentinel returned when no municipal boundary
// contains the parcel.
const Unincorporated = "Unincorporated"

// IsUnincorporated reports whether a resolved name is the unincorporated
// sentinel (or a county-qualified variant of it).
func IsUnincorporated(name string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(name)), "unincorporated")
}

// Boundary identifies the county's municipal-boundary feature layer and
// the attribute carrying the municipality name.
type Boundary struct {
	LayerURL  string
	NameField string
}

// Resolver performs spatial containment of parcel geometry against the
// municipal-boundary layer. It is a pure geometry-to-label mapping: parcel
// attributes such as raw tax-district codes are unreliable abbreviations
// and are never consulted.
type Resolver struct {
	client   *arcgis.Client
	boundary Boundary
	offline  *OfflineIndex
	log      *zap.Logger
}

// NewResolver creates a Resolver. offline may be nil; when set it answers
// containment locally if the boundary service is unreachable.
func NewResolver(client *arcgis.Client, boundary Boundary, offline *OfflineIndex) *Resolver {
	return &Resolver{
		client:   client,
		boundary: boundary,
		offline:  offline,
		log:      zap.L().With(zap.String("component", "jurisdiction.resolver")),
	}
}

// Resolve returns the governing municipality name for the given footprint,
// or the Unincorporated sentinel when no boundary intersects it.
func (r *Resolver) Resolve(ctx context.Context, g *arcgis.Geometry) (string, error) {
	if g == nil {
		return "", eris.New("jurisdiction: nil geometry")
	}

	fs, err := r.client.Query(ctx, r.boundary.LayerURL, arcgis.QueryParams{
		OutFields:         r.boundary.NameField,
		Geometry:          g,
		SpatialRel:        arcgis.SpatialRelIntersects,
		ResultRecordCount: 5,
	})
	if err != nil {
		if r.offline != nil {
			if name, ok := r.resolveOffline(g); ok {
				r.log.Warn("boundary service unreachable, used offline index",
					zap.String("jurisdiction", name),
					zap.Error(err),
				)
				return name, nil
			}
		}
		return "", eris.Wrap(err, "jurisdiction: boundary query")
	}

	attrs := fs.FirstAttributes()
	name := strings.TrimSpace(firstBoundaryName(attrs, r.boundary.NameField))
	if name == "" {
		return Unincorporated, nil
	}
	return name, nil
}

func (r *Resolver) resolveOffline(g *arcgis.Geometry) (string, bool) {
	x, y, err := g.Centroid()
	if err != nil {
		return "", false
	}
	return r.offline.Contains(x, y)
}

func firstBoundaryName(attrs map[string]any, nameField string) string {
	if attrs == nil {
		return ""
	}
	if v, ok := attrs[nameField]; ok && v != nil {
		return fmt.Sprint(v)
	}
	for k, v := range attrs {
		if strings.EqualFold(k, nameField) && v != nil {
			return fmt.Sprint(v)
		}
	}
	return ""
}
