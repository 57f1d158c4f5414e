package patterns

import (
	"stock-pattern-engine/internal/series"
)

// Family confidences are fixed design constants, not data-derived.
const (
	confidenceConsolidationBreakout = 0.85
	confidenceVReversal             = 0.80
	confidenceContinuousRise        = 0.90
	confidenceAIDiscovered          = 0.75
)

// detectorFunc is a pure predicate: prepared series + parameters in,
// match evidence out.
type detectorFunc func(*series.Series, Parameters) (string, bool)

// paramKey names a required parameter bound for a family.
type paramKey struct {
	name string
	kind string // "min" or "max"
}

type detectorEntry struct {
	fn         detectorFunc
	confidence float64
	required   []paramKey
}

// detectorTable routes each family to its detector. The ai_discovered
// template has no required parameters; absent parameters mean no constraint.
var detectorTable = map[Family]detectorEntry{
	FamilyConsolidationBreakout: {
		fn:         matchConsolidationBreakout,
		confidence: confidenceConsolidationBreakout,
		required: []paramKey{
			{"consolidation_days", "min"},
			{"consolidation_days", "max"},
			{"breakout_volume_ratio", "min"},
			{"breakout_rise", "min"},
			{"price_range_during_consolidation", "max"},
			{"volume_shrink_ratio", "max"},
		},
	},
	FamilyVReversal: {
		fn:         matchVReversal,
		confidence: confidenceVReversal,
		required: []paramKey{
			{"decline_amplitude", "min"},
			{"rebound_rise", "min"},
			{"rebound_days", "min"},
		},
	},
	FamilyContinuousRise: {
		fn:         matchContinuousRise,
		confidence: confidenceContinuousRise,
		required: []paramKey{
			{"daily_rise", "min"},
			{"continuous_days", "min"},
			{"total_rise", "min"},
			{"daily_volume_ratio", "min"},
		},
	},
	FamilyAIDiscovered: {
		fn:         matchAITemplate,
		confidence: confidenceAIDiscovered,
	},
}

// Match evaluates every active definition against a prepared series and
// aggregates all positive matches. A series may match zero, one, or many
// patterns; no mutual exclusivity is enforced. Definitions with unknown
// families or missing required parameters are skipped, never fatal. Safe to
// call concurrently for different series.
func Match(s *series.Series, defs []PatternDefinition) []MatchResult {
	var matched []MatchResult

	for _, def := range defs {
		if !def.IsActive {
			continue
		}

		entry, ok := detectorTable[def.PatternType]
		if !ok {
			continue
		}
		if !hasRequiredParams(def.Parameters, entry.required) {
			continue
		}

		details, ok := entry.fn(s, def.Parameters)
		if !ok {
			continue
		}

		matched = append(matched, MatchResult{
			PatternID:    def.PatternID,
			PatternName:  def.PatternName,
			Confidence:   entry.confidence,
			MatchDetails: details,
		})
	}

	return matched
}

// MatchBars prepares raw bars and matches them. A series too short to
// prepare is a silent no-match.
func MatchBars(bars []series.Bar, defs []PatternDefinition) []MatchResult {
	s, err := series.Prepare(bars)
	if err != nil {
		return nil
	}
	return Match(s, defs)
}

func hasRequiredParams(params Parameters, required []paramKey) bool {
	for _, key := range required {
		p, ok := params[key.name]
		if !ok {
			return false
		}
		switch key.kind {
		case "min":
			if p.Min == nil {
				return false
			}
		case "max":
			if p.Max == nil {
				return false
			}
		}
	}
	return true
}
