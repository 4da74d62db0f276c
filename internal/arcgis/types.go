// Package arcgis is a client for ArcGIS REST feature services and portal
// sharing endpoints: attribute and spatial feature queries, layer schema
// metadata, and web-map item documents.
package arcgis

import (
	"fmt"
	"strconv"
	"strings"
)

// Spatial relation constants for feature queries.
const (
	SpatialRelIntersects = "esriSpatialRelIntersects"

	GeometryTypePoint   = "esriGeometryPoint"
	GeometryTypePolygon = "esriGeometryPolygon"
)

// WGS84 is the spatial reference every query in this system pins its input
// and output geometry to, so parcel footprints stay compatible with whatever
// native reference a downstream layer uses.
const WGS84 = 4326

// SpatialReference declares the coordinate system of a geometry.
type SpatialReference struct {
	WKID int `json:"wkid,omitempty"`
}

// Geometry is an Esri JSON geometry: a point when X/Y are set, a polygon
// when Rings is set. Ring coordinates are [x, y] pairs.
type Geometry struct {
	X                *float64          `json:"x,omitempty"`
	Y                *float64          `json:"y,omitempty"`
	Rings            [][][]float64     `json:"rings,omitempty"`
	SpatialReference *SpatialReference `json:"spatialReference,omitempty"`
}

// NewPoint builds a point geometry in the given spatial reference.
func NewPoint(x, y float64, wkid int) *Geometry {
	return &Geometry{X: &x, Y: &y, SpatialReference: &SpatialReference{WKID: wkid}}
}

// IsPoint reports whether the geometry is a point.
func (g *Geometry) IsPoint() bool {
	return g != nil && g.X != nil && g.Y != nil && len(g.Rings) == 0
}

// Type returns the esri geometry type string for query parameters.
func (g *Geometry) Type() string {
	if g.IsPoint() {
		return GeometryTypePoint
	}
	return GeometryTypePolygon
}

// WKID returns the declared spatial reference, or 0 if none is carried.
func (g *Geometry) WKID() int {
	if g == nil || g.SpatialReference == nil {
		return 0
	}
	return g.SpatialReference.WKID
}

// Feature is one row of a feature query response.
type Feature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   *Geometry      `json:"geometry,omitempty"`
}

// ServerError is the error envelope ArcGIS embeds in an HTTP 200 body.
type ServerError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// FeatureSet is a feature query response.
type FeatureSet struct {
	Features []Feature    `json:"features"`
	Error    *ServerError `json:"error,omitempty"`
}

// FirstAttributes returns the attribute map of the first feature, or nil
// when the set is empty.
func (fs *FeatureSet) FirstAttributes() map[string]any {
	if fs == nil || len(fs.Features) == 0 {
		return nil
	}
	return fs.Features[0].Attributes
}

// FirstGeometry returns the geometry of the first feature, or nil.
func (fs *FeatureSet) FirstGeometry() *Geometry {
	if fs == nil || len(fs.Features) == 0 {
		return nil
	}
	return fs.Features[0].Geometry
}

// CodedValue is one code/description pair of a coded-value domain.
type CodedValue struct {
	Name string `json:"name"`
	Code any    `json:"code"`
}

// Domain is a field-level value domain from layer schema metadata.
type Domain struct {
	Type        string       `json:"type"`
	Name        string       `json:"name,omitempty"`
	CodedValues []CodedValue `json:"codedValues,omitempty"`
}

// IsCodedValue reports whether the domain maps stored codes to labels.
func (d *Domain) IsCodedValue() bool {
	return d != nil && d.Type == "codedValue"
}

// Field describes one attribute field of a layer.
type Field struct {
	Name   string  `json:"name"`
	Alias  string  `json:"alias,omitempty"`
	Type   string  `json:"type,omitempty"`
	Domain *Domain `json:"domain,omitempty"`
}

// LayerInfo is the layer schema document returned by a layer metadata request.
type LayerInfo struct {
	ID     int          `json:"id,omitempty"`
	Name   string       `json:"name,omitempty"`
	Fields []Field      `json:"fields,omitempty"`
	Error  *ServerError `json:"error,omitempty"`
}

// OperationalLayer is one entry of a web map's operational layer list.
type OperationalLayer struct {
	Title     string `json:"title,omitempty"`
	URL       string `json:"url,omitempty"`
	LayerType string `json:"layerType,omitempty"`
}

// WebMap is the data document of a web-map portal item.
type WebMap struct {
	OperationalLayers []OperationalLayer `json:"operationalLayers,omitempty"`
	Error             *ServerError       `json:"error,omitempty"`
}

// EscapeValue doubles embedded single quotes so a value can be safely
// interpolated into a quoted where-clause literal.
func EscapeValue(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

// CodeKey normalizes a raw coded value (string or JSON number) into the
// string key used by code maps. Integral floats lose their fraction so a
// stored 210 and a domain code 210.0 compare equal.
func CodeKey(code any) string {
	switch v := code.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
