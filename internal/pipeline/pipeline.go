// Package pipeline wires the lookup stages end to end: normalize the
// identifier, locate the parcel, resolve the governing jurisdiction, and
// route the footprint to its zoning/FLU layers.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/parcel-cli/internal/appraiser"
	"github.com/sells-group/parcel-cli/internal/cache"
	"github.com/sells-group/parcel-cli/internal/jurisdiction"
	"github.com/sells-group/parcel-cli/internal/parcel"
	"github.com/sells-group/parcel-cli/internal/router"
)

// LookupResult is the merged output of one full lookup.
type LookupResult struct {
	LookupID  string         `json:"lookup_id"`
	County    string         `json:"county"`
	ParcelID  string         `json:"parcel_id"`
	Record    *parcel.Record `json:"record"`
	Zoning    *router.Result `json:"zoning"`
	ElapsedMS int64          `json:"elapsed_ms"`
}

// Pipeline runs lookups for one county. Stages share the county's HTTP
// client and caches; the pipeline itself holds no mutable state beyond
// them and is safe for concurrent use.
type Pipeline struct {
	locator     *parcel.Locator
	resolver    *jurisdiction.Resolver
	router      *router.Router
	appraiser   *appraiser.Scraper
	parcelCache *cache.Cache[*parcel.Record]
	county      string
	format      parcel.Format
	log         *zap.Logger
}

// Options collects the per-county collaborators for New. Appraiser and
// ParcelCache may be nil; the corresponding stage is skipped.
type Options struct {
	County      string
	Format      parcel.Format
	Locator     *parcel.Locator
	Resolver    *jurisdiction.Resolver
	Router      *router.Router
	Appraiser   *appraiser.Scraper
	ParcelCache *cache.Cache[*parcel.Record]
}

// New assembles a Pipeline from already-constructed stages.
func New(opts Options) *Pipeline {
	return &Pipeline{
		locator:     opts.Locator,
		resolver:    opts.Resolver,
		router:      opts.Router,
		appraiser:   opts.Appraiser,
		parcelCache: opts.ParcelCache,
		county:      opts.County,
		format:      opts.Format,
		log:         zap.L().With(zap.String("component", "pipeline"), zap.String("county", opts.County)),
	}
}

// Lookup runs the full pipeline for one raw identifier. Validation errors
// surface as *parcel.ValidationError; a parcel missing from every source
// surfaces as parcel.ErrNotFound. Zoning-stage degradation is reported in
// the result rather than as an error.
func (p *Pipeline) Lookup(ctx context.Context, rawID string) (*LookupResult, error) {
	start := time.Now()

	id, err := parcel.Normalize(rawID, p.format)
	if err != nil {
		return nil, err
	}

	rec, err := p.locateParcel(ctx, id)
	if err != nil {
		return nil, err
	}

	// Appraiser-only records carry no footprint; the router reports the
	// missing geometry instead of the pipeline failing the whole lookup.
	jur := ""
	if rec.Geometry != nil {
		jur, err = p.resolver.Resolve(ctx, rec.Geometry)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: resolve jurisdiction")
		}
	}

	zoning := p.router.Route(ctx, jur, rec.Geometry)

	res := &LookupResult{
		LookupID:  uuid.NewString(),
		County:    p.county,
		ParcelID:  id,
		Record:    rec,
		Zoning:    zoning,
		ElapsedMS: time.Since(start).Milliseconds(),
	}

	p.log.Info("lookup complete",
		zap.String("lookup_id", res.LookupID),
		zap.String("parcel_id", id),
		zap.String("jurisdiction", jur),
		zap.Bool("success", zoning.Success),
		zap.Int64("elapsed_ms", res.ElapsedMS),
	)
	return res, nil
}

// locateParcel fetches the record through the cache and fills any missing
// site area from the appraiser page.
func (p *Pipeline) locateParcel(ctx context.Context, id string) (*parcel.Record, error) {
	cacheKey := p.county + "|" + id
	if p.parcelCache != nil {
		if rec, ok := p.parcelCache.Get(cacheKey); ok {
			return rec, nil
		}
	}

	rec, err := p.locator.Locate(ctx, id)
	if err != nil {
		if !eris.Is(err, parcel.ErrNotFound) || p.appraiser == nil {
			return nil, err
		}
		// The feature service has no row; the appraiser sometimes lists
		// parcels ahead of the GIS refresh. No geometry means downstream
		// stages degrade, but the caller still gets area figures.
		area, aErr := p.appraiser.LandArea(ctx, id)
		if aErr != nil {
			p.log.Debug("appraiser fallback failed", zap.String("parcel_id", id), zap.Error(aErr))
			return nil, err
		}
		rec = &parcel.Record{
			ParcelID:      id,
			SiteAreaSqFt:  area.SqFt,
			SiteAreaAcres: area.Acres,
		}
	} else if rec.SiteAreaSqFt == 0 && p.appraiser != nil {
		if area, aErr := p.appraiser.LandArea(ctx, id); aErr == nil {
			rec.SiteAreaSqFt = area.SqFt
			rec.SiteAreaAcres = area.Acres
		}
	}

	if p.parcelCache != nil {
		p.parcelCache.Put(cacheKey, rec)
	}
	return rec, nil
}

// County returns the county slug this pipeline serves.
func (p *Pipeline) County() string {
	return p.county
}
