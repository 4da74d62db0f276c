package arcgis

import (
	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
)

// ToGeom converts an Esri JSON geometry to a go-geom value carrying the
// declared SRID.
func (g *Geometry) ToGeom() (geom.T, error) {
	if g == nil {
		return nil, eris.New("arcgis: nil geometry")
	}
	srid := g.WKID()
	if srid == 0 {
		srid = WGS84
	}

	if g.IsPoint() {
		return geom.NewPointFlat(geom.XY, []float64{*g.X, *g.Y}).SetSRID(srid), nil
	}

	if len(g.Rings) == 0 {
		return nil, eris.New("arcgis: geometry has neither point nor rings")
	}

	p := geom.NewPolygon(geom.XY).SetSRID(srid)
	for _, ring := range g.Rings {
		coords := make([]geom.Coord, 0, len(ring))
		for _, pt := range ring {
			if len(pt) < 2 {
				continue
			}
			coords = append(coords, geom.Coord{pt[0], pt[1]})
		}
		if len(coords) < 4 {
			continue
		}
		ls := geom.NewLinearRing(geom.XY)
		if _, err := ls.SetCoords(coords); err != nil {
			return nil, eris.Wrap(err, "arcgis: build ring")
		}
		if err := p.Push(ls); err != nil {
			return nil, eris.Wrap(err, "arcgis: push ring")
		}
	}
	if p.NumLinearRings() == 0 {
		return nil, eris.New("arcgis: no valid rings")
	}
	return p, nil
}

// Centroid returns a representative interior point: the point itself, or
// the vertex average of the outer ring for polygons. Used when a downstream
// query wants a point probe instead of the full footprint.
func (g *Geometry) Centroid() (x, y float64, err error) {
	if g == nil {
		return 0, 0, eris.New("arcgis: nil geometry")
	}
	if g.IsPoint() {
		return *g.X, *g.Y, nil
	}
	if len(g.Rings) == 0 || len(g.Rings[0]) == 0 {
		return 0, 0, eris.New("arcgis: geometry has no coordinates")
	}

	outer := g.Rings[0]
	var sx, sy float64
	n := 0
	for _, pt := range outer {
		if len(pt) < 2 {
			continue
		}
		sx += pt[0]
		sy += pt[1]
		n++
	}
	if n == 0 {
		return 0, 0, eris.New("arcgis: geometry has no valid coordinates")
	}
	return sx / float64(n), sy / float64(n), nil
}

// FromGeom converts a go-geom point or polygon back to Esri JSON.
func FromGeom(t geom.T) (*Geometry, error) {
	srid := t.SRID()
	if srid == 0 {
		srid = WGS84
	}
	sr := &SpatialReference{WKID: srid}

	switch v := t.(type) {
	case *geom.Point:
		x, y := v.X(), v.Y()
		return &Geometry{X: &x, Y: &y, SpatialReference: sr}, nil
	case *geom.Polygon:
		rings := make([][][]float64, 0, v.NumLinearRings())
		for i := 0; i < v.NumLinearRings(); i++ {
			ring := v.LinearRing(i)
			coords := ring.Coords()
			out := make([][]float64, 0, len(coords))
			for _, c := range coords {
				out = append(out, []float64{c.X(), c.Y()})
			}
			rings = append(rings, out)
		}
		return &Geometry{Rings: rings, SpatialReference: sr}, nil
	default:
		return nil, eris.Errorf("arcgis: unsupported geometry type %T", t)
	}
}
