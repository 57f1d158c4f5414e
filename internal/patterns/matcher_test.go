package patterns

import (
	"reflect"
	"testing"
)

func classicDefs() []PatternDefinition {
	return []PatternDefinition{
		consolidationBreakoutDef(),
		vReversalDef(),
		continuousRiseDef(),
	}
}

func TestMatchSelectsOnlyTriggeredPatterns(t *testing.T) {
	s := prepare(t, consolidationBreakoutBars())

	results := Match(s, classicDefs())
	if len(results) != 1 {
		t.Fatalf("got %d matches, want 1", len(results))
	}
	if results[0].PatternID != "P001" {
		t.Errorf("matched %s, want P001", results[0].PatternID)
	}
	if results[0].Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", results[0].Confidence)
	}
}

func findMatch(t *testing.T, results []MatchResult, id string) MatchResult {
	t.Helper()
	for _, res := range results {
		if res.PatternID == id {
			return res
		}
	}
	t.Fatalf("no match for %s in %+v", id, results)
	return MatchResult{}
}

// A series may match several families at once; only presence and the fixed
// per-family confidence are asserted here.
func TestMatchFamilyConfidences(t *testing.T) {
	vr := Match(prepare(t, vReversalBars()), classicDefs())
	if m := findMatch(t, vr, "P002"); m.Confidence != 0.80 {
		t.Errorf("v-reversal confidence = %v, want 0.80", m.Confidence)
	}

	cr := Match(prepare(t, continuousRiseBars()), classicDefs())
	if m := findMatch(t, cr, "P003"); m.Confidence != 0.90 {
		t.Errorf("continuous rise confidence = %v, want 0.90", m.Confidence)
	}
}

func TestMatchSkipsInactive(t *testing.T) {
	def := consolidationBreakoutDef()
	def.IsActive = false
	s := prepare(t, consolidationBreakoutBars())

	if results := Match(s, []PatternDefinition{def}); len(results) != 0 {
		t.Errorf("got %d matches from an inactive definition", len(results))
	}
}

func TestMatchSkipsUnknownFamily(t *testing.T) {
	unknown := PatternDefinition{
		PatternID:   "P999",
		PatternName: "Head And Shoulders",
		PatternType: Family("head_and_shoulders"),
		IsActive:    true,
	}
	s := prepare(t, consolidationBreakoutBars())

	results := Match(s, []PatternDefinition{unknown, consolidationBreakoutDef()})
	if len(results) != 1 || results[0].PatternID != "P001" {
		t.Errorf("got %+v, want only P001", results)
	}
}

func TestMatchSkipsMissingRequiredParams(t *testing.T) {
	def := consolidationBreakoutDef()
	delete(def.Parameters, "breakout_rise")
	s := prepare(t, consolidationBreakoutBars())

	if results := Match(s, []PatternDefinition{def}); len(results) != 0 {
		t.Errorf("got %d matches from a definition missing breakout_rise", len(results))
	}
}

func TestMatchDeterministic(t *testing.T) {
	s := prepare(t, consolidationBreakoutBars())
	defs := classicDefs()

	first := Match(s, defs)
	second := Match(s, defs)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated evaluation diverged: %+v vs %+v", first, second)
	}
}

func TestMatchBarsShortSeries(t *testing.T) {
	bars := consolidationBreakoutBars()[:3]

	if results := MatchBars(bars, classicDefs()); results != nil {
		t.Errorf("got %+v from a 3-bar series, want nil", results)
	}
}
