// Package router dispatches a resolved jurisdiction to its zoning/FLU
// query strategy and merges both classifications into one result.
package router

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/parcel-cli/internal/arcgis"
	"github.com/sells-group/parcel-cli/internal/codes"
	"github.com/sells-group/parcel-cli/internal/discovery"
	"github.com/sells-group/parcel-cli/internal/jurisdiction"
)

// ContactJurisdiction is the placeholder shown when a jurisdiction has no
// configured layers and discovery cannot find any. The absence of
// city-specific support is not a hard failure.
const ContactJurisdiction = "Contact jurisdiction"

// Result is the terminal value of a zoning/FLU lookup. Consumers display
// it; they never mutate it.
type Result struct {
	Jurisdiction      string `json:"jurisdiction"`
	Strategy          string `json:"strategy,omitempty"`
	ZoningCode        string `json:"zoning_code"`
	ZoningDescription string `json:"zoning_description"`
	ZoningLayer       string `json:"zoning_layer,omitempty"`
	FLUCode           string `json:"flu_code"`
	FLUDescription    string `json:"flu_description"`
	FLULayer          string `json:"flu_layer,omitempty"`
	Success           bool   `json:"success"`
	Detail            string `json:"detail,omitempty"`
}

// Router routes one lookup through a single strategy branch per pass; no
// retries across branches.
type Router struct {
	client     *arcgis.Client
	codes      *codes.Resolver
	discovery  *discovery.Service
	strategies *jurisdiction.Registry
	fallbacks  *codes.FallbackTables
	log        *zap.Logger
}

// New creates a Router.
func New(
	client *arcgis.Client,
	codeResolver *codes.Resolver,
	discoverySvc *discovery.Service,
	strategies *jurisdiction.Registry,
	fallbacks *codes.FallbackTables,
) *Router {
	return &Router{
		client:     client,
		codes:      codeResolver,
		discovery:  discoverySvc,
		strategies: strategies,
		fallbacks:  fallbacks,
		log:        zap.L().With(zap.String("component", "router")),
	}
}

// Route resolves zoning and FLU for the jurisdiction using the parcel's
// already-resolved geometry. Code-resolution failures degrade to raw or
// placeholder values; they never abort an otherwise-successful lookup.
func (rt *Router) Route(ctx context.Context, jur string, g *arcgis.Geometry) *Result {
	res := &Result{Jurisdiction: jur}
	if g == nil {
		res.Detail = "no parcel geometry available"
		return res
	}

	strategy, ok := rt.strategies.Resolve(jur)
	if !ok {
		rt.log.Info("no strategy for jurisdiction, returning placeholder",
			zap.String("jurisdiction", jur),
		)
		return rt.placeholder(res, "no layers configured for this jurisdiction")
	}
	res.Strategy = strategy.Kind.String()

	switch strategy.Kind {
	case jurisdiction.StaticLayers, jurisdiction.CountyUnincorporated:
		rt.queryPair(ctx, res, strategy.ZoningLayer, strategy.FLULayer, g)
	case jurisdiction.DiscoverLayers:
		rt.routeDiscovered(ctx, res, strategy.ViewerURL, g)
	default:
		return rt.placeholder(res, "unknown strategy")
	}
	return res
}

// routeDiscovered discovers candidate layers from the jurisdiction's viewer
// and queries the best-scoring candidate per kind. Discovery failure
// degrades to the placeholder, not an error.
func (rt *Router) routeDiscovered(ctx context.Context, res *Result, viewerURL string, g *arcgis.Geometry) {
	disc, err := rt.discovery.Discover(ctx, viewerURL)
	if err != nil {
		rt.log.Warn("layer discovery failed, returning placeholder",
			zap.String("jurisdiction", res.Jurisdiction),
			zap.String("viewer_url", viewerURL),
			zap.Error(err),
		)
		rt.placeholder(res, err.Error())
		return
	}

	var zoningLayer, fluLayer string
	if best, ok := discovery.Best(disc.Zoning); ok {
		zoningLayer = best.URL
	}
	if best, ok := discovery.Best(disc.FLU); ok {
		fluLayer = best.URL
	}
	if zoningLayer == "" && fluLayer == "" {
		rt.placeholder(res, "no candidate layers in viewer configuration")
		return
	}

	rt.queryPair(ctx, res, zoningLayer, fluLayer, g)
}

// queryPair queries the zoning and FLU layers sequentially and merges the
// outcome. Success is kept unless both kinds fail outright.
func (rt *Router) queryPair(ctx context.Context, res *Result, zoningLayer, fluLayer string, g *arcgis.Geometry) {
	var details []string

	zCode, zDesc, zErr := rt.queryKind(ctx, zoningLayer, codes.Zoning, res.Jurisdiction, g)
	if zErr != nil {
		details = append(details, fmt.Sprintf("zoning: %v", zErr))
	} else {
		res.ZoningCode = zCode
		res.ZoningDescription = zDesc
		res.ZoningLayer = zoningLayer
	}

	fCode, fDesc, fErr := rt.queryKind(ctx, fluLayer, codes.FLU, res.Jurisdiction, g)
	if fErr != nil {
		details = append(details, fmt.Sprintf("flu: %v", fErr))
	} else {
		res.FLUCode = fCode
		res.FLUDescription = fDesc
		res.FLULayer = fluLayer
	}

	res.Success = zErr == nil || fErr == nil
	res.Detail = strings.Join(details, "; ")
}

type kindError struct {
	msg string
}

func (e *kindError) Error() string { return e.msg }

// queryKind resolves the code field for one layer and reads the parcel's
// intersecting feature. A missing coded-value domain degrades through the
// jurisdiction fallback table and alternate description fields; an unknown
// code comes back raw with an empty description.
func (rt *Router) queryKind(ctx context.Context, layerURL string, kind codes.Kind, jur string, g *arcgis.Geometry) (code, desc string, err error) {
	if layerURL == "" {
		return "", "", &kindError{msg: "no layer configured"}
	}

	var domain codes.CodeMap
	fieldName := ""
	resolution, rErr := rt.codes.ResolveField(ctx, layerURL, kind)
	if rErr != nil {
		// Without a code field there is nothing to read; report and let
		// the other kind proceed.
		return "", "", &kindError{msg: fmt.Sprintf("resolve code field: %v", rErr)}
	}
	fieldName = resolution.FieldName
	domain = resolution.Map

	fs, qErr := rt.client.Query(ctx, layerURL, arcgis.QueryParams{
		Geometry:          g,
		SpatialRel:        arcgis.SpatialRelIntersects,
		ResultRecordCount: 5,
	})
	if qErr != nil {
		return "", "", &kindError{msg: fmt.Sprintf("layer query: %v", qErr)}
	}

	attrs := fs.FirstAttributes()
	if attrs == nil {
		return "", "", &kindError{msg: "no intersecting feature"}
	}

	code = arcgis.CodeKey(attrs[fieldName])
	fallback := rt.fallbacks.For(jur, kind)
	desc = codes.Describe(code, domain, fallback, attrs)
	return code, desc, nil
}

// placeholder marks the result successful with literal contact-jurisdiction
// values in both classification slots.
func (rt *Router) placeholder(res *Result, detail string) *Result {
	res.Success = true
	res.ZoningCode = ContactJurisdiction
	res.ZoningDescription = ContactJurisdiction
	res.FLUCode = ContactJurisdiction
	res.FLUDescription = ContactJurisdiction
	res.Detail = detail
	return res
}
