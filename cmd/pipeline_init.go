package main

import (
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/parcel-cli/internal/appraiser"
	"github.com/sells-group/parcel-cli/internal/arcgis"
	"github.com/sells-group/parcel-cli/internal/cache"
	"github.com/sells-group/parcel-cli/internal/codes"
	"github.com/sells-group/parcel-cli/internal/config"
	"github.com/sells-group/parcel-cli/internal/discovery"
	"github.com/sells-group/parcel-cli/internal/jurisdiction"
	"github.com/sells-group/parcel-cli/internal/parcel"
	"github.com/sells-group/parcel-cli/internal/pipeline"
	"github.com/sells-group/parcel-cli/internal/resilience"
	"github.com/sells-group/parcel-cli/internal/router"
)

// lookupEnv holds the initialized clients, caches, and the pipeline needed
// by the lookup/batch/serve commands.
type lookupEnv struct {
	Client    *arcgis.Client
	Pipeline  *pipeline.Pipeline
	Discovery *discovery.Service
	Codes     *codes.Resolver
	County    config.CountyConfig
}

// initLookup builds the full lookup environment for the selected county.
func initLookup(countyName string) (*lookupEnv, error) {
	if countyName == "" {
		countyName = countyFlag
	}
	cc, ok := cfg.County(countyName)
	if !ok {
		return nil, eris.Errorf("unknown county %q", countyName)
	}

	retry := resilience.DefaultRetryConfig()
	if cfg.HTTP.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.HTTP.MaxAttempts
	}

	limiters := map[string]*rate.Limiter{}
	if cc.RateLimitPerSecond > 0 {
		if u, err := url.Parse(cc.ParcelLayer); err == nil && u.Host != "" {
			limiters[u.Host] = rate.NewLimiter(rate.Limit(cc.RateLimitPerSecond), int(cc.RateLimitPerSecond))
		}
	}

	client := arcgis.NewClient(arcgis.Options{
		UserAgent:    cfg.HTTP.UserAgent,
		Timeout:      time.Duration(cfg.HTTP.TimeoutSecs) * time.Second,
		Retry:        retry,
		RateLimiters: limiters,
	})

	parcelCache := cache.New[*parcel.Record](cfg.Cache.MaxEntries, time.Duration(cfg.Cache.ParcelTTLMins)*time.Minute)
	schemaCache := cache.New[*codes.FieldResolution](cfg.Cache.MaxEntries, time.Duration(cfg.Cache.SchemaTTLHours)*time.Hour)
	discoveryCache := cache.New[*discovery.Result](cfg.Cache.MaxEntries, time.Duration(cfg.Cache.SchemaTTLHours)*time.Hour)

	codeResolver := codes.NewResolver(client, schemaCache)
	discoverySvc := discovery.NewService(client, discoveryCache)

	fallbacks, err := codes.LoadFallbackTables()
	if err != nil {
		return nil, eris.Wrap(err, "load fallback code tables")
	}

	strategies := jurisdiction.NewRegistry()
	strategies.Register(jurisdiction.Unincorporated,
		jurisdiction.UnincorporatedCounty(cc.Unincorporated.Zoning, cc.Unincorporated.FLU))
	for city, pair := range cc.CityOverrides {
		strategies.Register(city, jurisdiction.Static(pair.Zoning, pair.FLU))
	}
	for city, viewerURL := range cc.CityApps {
		strategies.Register(city, jurisdiction.Discover(viewerURL))
	}

	var offline *jurisdiction.OfflineIndex
	if cc.BoundaryShapefile != "" {
		offline, err = jurisdiction.LoadShapefile(cc.BoundaryShapefile, cc.BoundaryNameField)
		if err != nil {
			zap.L().Warn("offline boundary index unavailable",
				zap.String("path", cc.BoundaryShapefile),
				zap.Error(err),
			)
			offline = nil
		}
	}

	resolver := jurisdiction.NewResolver(client, jurisdiction.Boundary{
		LayerURL:  cc.BoundaryLayer,
		NameField: cc.BoundaryNameField,
	}, offline)

	rt := router.New(client, codeResolver, discoverySvc, strategies, fallbacks)

	var scraper *appraiser.Scraper
	if cc.AppraiserURL != "" {
		scraper = appraiser.New(cc.AppraiserURL)
	}

	p := pipeline.New(pipeline.Options{
		County: normalizeCountyName(countyName),
		Format: parcel.Format{
			Segments: cc.IDSegments,
			Dashed:   cc.IDDashed,
		},
		Locator:     parcel.NewLocator(client, parcel.Source{LayerURL: cc.ParcelLayer, IDField: cc.ParcelIDField}, cc.CityNames),
		Resolver:    resolver,
		Router:      rt,
		Appraiser:   scraper,
		ParcelCache: parcelCache,
	})

	return &lookupEnv{
		Client:    client,
		Pipeline:  p,
		Discovery: discoverySvc,
		Codes:     codeResolver,
		County:    cc,
	}, nil
}

func normalizeCountyName(name string) string {
	if name == "" {
		return cfg.DefaultCounty
	}
	return name
}
