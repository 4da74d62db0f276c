package discovery

import "strings"

// Title score weights. Documented so candidate ranking stays unit-testable
// against synthetic layer lists.
const (
	scoreZone     = 50  // "zone" or "zoning" in the title
	scoreFuture   = 25  // "future"
	scoreLandUse  = 25  // "land use", "landuse", "flum", or "flu"
	scoreOverlay  = -10 // overlay layers are usually the wrong pick
	scoreHistoric = -5  // historic-district layers likewise
)

// ScoreTitle ranks a layer title for zoning/FLU suitability.
func ScoreTitle(title string) int {
	t := strings.ToLower(title)
	s := 0
	if strings.Contains(t, "zoning") || strings.Contains(t, "zone") {
		s += scoreZone
	}
	if strings.Contains(t, "future") {
		s += scoreFuture
	}
	if strings.Contains(t, "land use") || strings.Contains(t, "landuse") ||
		strings.Contains(t, "flum") || strings.Contains(t, "flu") {
		s += scoreLandUse
	}
	if strings.Contains(t, "overlay") {
		s += scoreOverlay
	}
	if strings.Contains(t, "historic") {
		s += scoreHistoric
	}
	return s
}

// Best returns the highest-scoring candidate. The second return is false
// for an empty list.
func Best(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := candidates[0]
	bestScore := ScoreTitle(best.Title)
	for _, c := range candidates[1:] {
		if score := ScoreTitle(c.Title); score > bestScore {
			best = c
			bestScore = score
		}
	}
	return best, true
}
