package jurisdiction

import (
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// OfflineIndex answers municipal containment from a locally loaded boundary
// shapefile. It is a degraded-mode fallback for when the county boundary
// service is unreachable; the spatial service remains authoritative.
type OfflineIndex struct {
	boundaries []offlineBoundary
}

type offlineBoundary struct {
	name string
	poly *geom.Polygon
}

// LoadShapefile reads municipal boundary polygons from a shapefile, taking
// each feature's name from nameField (matched case-insensitively).
func LoadShapefile(path, nameField string) (*OfflineIndex, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "jurisdiction: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	nameIdx := -1
	for i, f := range reader.Fields() {
		fn := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(fn, nameField) {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		return nil, eris.Errorf("jurisdiction: shapefile has no %q field", nameField)
	}

	idx := &OfflineIndex{}
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		polyShape, ok := shape.(*shp.Polygon)
		if !ok || len(polyShape.Points) == 0 {
			skipped++
			continue
		}

		name := strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		if name == "" {
			skipped++
			continue
		}

		poly, err := shpPolygonToGeom(polyShape)
		if err != nil {
			skipped++
			continue
		}
		idx.boundaries = append(idx.boundaries, offlineBoundary{name: name, poly: poly})
	}

	zap.L().Info("loaded offline boundary index",
		zap.String("path", path),
		zap.Int("boundaries", len(idx.boundaries)),
		zap.Int("skipped", skipped),
	)
	return idx, nil
}

// Len returns the number of loaded boundaries.
func (x *OfflineIndex) Len() int {
	return len(x.boundaries)
}

// Contains returns the name of the first boundary polygon containing the
// point, in load order.
func (x *OfflineIndex) Contains(px, py float64) (string, bool) {
	p := geom.Coord{px, py}
	for _, b := range x.boundaries {
		if polygonContains(b.poly, p) {
			return b.name, true
		}
	}
	return "", false
}

// polygonContains tests the point against the outer ring and subtracts
// holes.
func polygonContains(poly *geom.Polygon, p geom.Coord) bool {
	n := poly.NumLinearRings()
	if n == 0 {
		return false
	}
	if !xy.IsPointInRing(poly.Layout(), p, poly.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < n; i++ {
		if xy.IsPointInRing(poly.Layout(), p, poly.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}

// shpPolygonToGeom converts a shapefile polygon to a geom.Polygon. Shapefile
// parts are treated as rings of one polygon; multi-part municipalities are
// indexed per part via repeated outer rings.
func shpPolygonToGeom(s *shp.Polygon) (*geom.Polygon, error) {
	poly := geom.NewPolygon(geom.XY).SetSRID(4326)

	numParts := int(s.NumParts)
	for i := 0; i < numParts; i++ {
		start := s.Parts[i]
		var end int32
		if i+1 < numParts {
			end = s.Parts[i+1]
		} else {
			end = int32(len(s.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, s.Points[j].X, s.Points[j].Y)
		}
		if len(flat) < 8 { // a closed ring needs at least 4 points
			continue
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		if err := poly.Push(ring); err != nil {
			continue
		}
	}

	if poly.NumLinearRings() == 0 {
		return nil, eris.New("jurisdiction: polygon has no usable rings")
	}
	return poly, nil
}

// NewOfflineIndex builds an index from already-constructed polygons. Used
// by tests and by callers that assemble boundaries from other sources.
func NewOfflineIndex(names []string, polys []*geom.Polygon) *OfflineIndex {
	idx := &OfflineIndex{}
	for i := range names {
		if i < len(polys) && polys[i] != nil {
			idx.boundaries = append(idx.boundaries, offlineBoundary{name: names[i], poly: polys[i]})
		}
	}
	return idx
}
