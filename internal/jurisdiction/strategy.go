package jurisdiction

import "strings"

// StrategyKind selects how a jurisdiction's zoning/FLU layers are located.
type StrategyKind int

const (
	// StaticLayers means the jurisdiction has a statically configured
	// zoning/FLU layer pair.
	StaticLayers StrategyKind = iota + 1
	// CountyUnincorporated means the county-level unincorporated layer
	// pair applies.
	CountyUnincorporated
	// DiscoverLayers means candidate layers are discovered from the
	// jurisdiction's public map-viewer configuration.
	DiscoverLayers
)

// String returns the human-readable kind name.
func (k StrategyKind) String() string {
	switch k {
	case StaticLayers:
		return "static"
	case CountyUnincorporated:
		return "unincorporated"
	case DiscoverLayers:
		return "discover"
	default:
		return "unknown"
	}
}

// Strategy is the tagged variant consumed by the router: exactly one of
// the layer pair or the viewer URL is meaningful depending on Kind.
type Strategy struct {
	Kind        StrategyKind
	ZoningLayer string
	FLULayer    string
	ViewerURL   string
}

// Static builds a static-layer strategy.
func Static(zoningLayer, fluLayer string) Strategy {
	return Strategy{Kind: StaticLayers, ZoningLayer: zoningLayer, FLULayer: fluLayer}
}

// UnincorporatedCounty builds the county-level unincorporated strategy.
func UnincorporatedCounty(zoningLayer, fluLayer string) Strategy {
	return Strategy{Kind: CountyUnincorporated, ZoningLayer: zoningLayer, FLULayer: fluLayer}
}

// Discover builds a viewer-discovery strategy.
func Discover(viewerURL string) Strategy {
	return Strategy{Kind: DiscoverLayers, ViewerURL: viewerURL}
}

// Registry maps jurisdiction names to query strategies. Name matching is
// case-insensitive; any name passing IsUnincorporated resolves to the
// registered county-unincorporated strategy.
type Registry struct {
	strategies     map[string]Strategy
	order          []string // insertion order for deterministic iteration
	unincorporated *Strategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register adds a strategy for a jurisdiction name. A CountyUnincorporated
// strategy also becomes the catch-all for every unincorporated variant.
func (r *Registry) Register(name string, s Strategy) {
	key := strings.ToLower(strings.TrimSpace(name))
	if _, exists := r.strategies[key]; !exists {
		r.order = append(r.order, name)
	}
	r.strategies[key] = s
	if s.Kind == CountyUnincorporated {
		r.unincorporated = &s
	}
}

// Resolve returns the strategy for a resolved jurisdiction name.
func (r *Registry) Resolve(name string) (Strategy, bool) {
	if s, ok := r.strategies[strings.ToLower(strings.TrimSpace(name))]; ok {
		return s, true
	}
	if IsUnincorporated(name) && r.unincorporated != nil {
		return *r.unincorporated, true
	}
	return Strategy{}, false
}

// Names returns registered jurisdiction names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
