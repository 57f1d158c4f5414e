package patterns

import "testing"

func TestParseDefinitionsEnvelope(t *testing.T) {
	doc := []byte(`{
		"patterns": [
			{
				"pattern_id": "P001",
				"pattern_name": "Consolidation Breakout",
				"pattern_type": "consolidation_breakout",
				"parameters": {
					"consolidation_days": {"min": 2, "max": 6},
					"breakout_volume_ratio": {"min": 1.2}
				}
			},
			{
				"pattern_id": "P003",
				"pattern_name": "Continuous Rise",
				"pattern_type": "continuous_rise",
				"parameters": {"no_pullback": true},
				"is_active": false
			}
		],
		"metadata": {"version": "3.0"}
	}`)

	report := ParseDefinitions(doc)
	if len(report.Rejected) != 0 {
		t.Fatalf("rejected %v", report.Rejected)
	}
	if len(report.Patterns) != 2 {
		t.Fatalf("got %d patterns, want 2", len(report.Patterns))
	}

	first := report.Patterns[0]
	if !first.IsActive {
		t.Error("missing is_active should default to active")
	}
	if lo, ok := first.Parameters.min("consolidation_days"); !ok || lo != 2 {
		t.Errorf("consolidation_days min = %v, %v", lo, ok)
	}
	if hi, ok := first.Parameters.max("consolidation_days"); !ok || hi != 6 {
		t.Errorf("consolidation_days max = %v, %v", hi, ok)
	}

	second := report.Patterns[1]
	if second.IsActive {
		t.Error("explicit is_active=false was ignored")
	}
	if !second.Parameters.flag("no_pullback", false) {
		t.Error("boolean parameter did not decode")
	}
}

func TestParseDefinitionsFaultIsolation(t *testing.T) {
	doc := []byte(`{
		"patterns": [
			{"pattern_id": "P001", "pattern_name": "Good", "pattern_type": "v_reversal",
			 "parameters": {"decline_amplitude": {"min": 0.02}}},
			{"pattern_id": "P002", "pattern_name": "Bad", "pattern_type": "v_reversal",
			 "parameters": {"decline_amplitude": "not a bound"}},
			{"pattern_type": "v_reversal", "parameters": {}}
		]
	}`)

	report := ParseDefinitions(doc)
	if len(report.Patterns) != 1 || report.Patterns[0].PatternID != "P001" {
		t.Errorf("got %+v, want only P001", report.Patterns)
	}
	if len(report.Rejected) != 2 {
		t.Errorf("rejected %v, want 2 reasons", report.Rejected)
	}
}

func TestParseDefinitionsUnparseableDocument(t *testing.T) {
	report := ParseDefinitions([]byte("not json"))
	if len(report.Patterns) != 0 {
		t.Errorf("got %+v from garbage input", report.Patterns)
	}
	if len(report.Rejected) != 1 {
		t.Errorf("rejected %v, want a single document-level reason", report.Rejected)
	}
}
