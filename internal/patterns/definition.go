// Package patterns implements the rise-pattern detectors and the dispatcher
// that evaluates pattern definitions against a prepared series.
package patterns

import (
	"encoding/json"
	"fmt"
	"os"
)

// Family is the closed set of detector families. Unknown families are
// skipped by the dispatcher so future pattern types degrade gracefully.
type Family string

const (
	FamilyConsolidationBreakout Family = "consolidation_breakout"
	FamilyVReversal             Family = "v_reversal"
	FamilyContinuousRise        Family = "continuous_rise"
	FamilyAIDiscovered          Family = "ai_discovered"
)

// Param is one named threshold. Values arrive either as {"min":x,"max":y}
// objects or as bare booleans (e.g. no_pullback). Absent bounds mean
// "no constraint".
type Param struct {
	Min  *float64
	Max  *float64
	Flag *bool
}

// UnmarshalJSON accepts both the bound-object and the boolean forms.
func (p *Param) UnmarshalJSON(data []byte) error {
	var flag bool
	if err := json.Unmarshal(data, &flag); err == nil {
		p.Flag = &flag
		return nil
	}

	var bounds struct {
		Min *float64 `json:"min"`
		Max *float64 `json:"max"`
	}
	if err := json.Unmarshal(data, &bounds); err != nil {
		return fmt.Errorf("parameter must be a bound object or a boolean: %w", err)
	}
	p.Min = bounds.Min
	p.Max = bounds.Max
	return nil
}

// MarshalJSON writes the boolean form when only a flag is set.
func (p Param) MarshalJSON() ([]byte, error) {
	if p.Flag != nil && p.Min == nil && p.Max == nil {
		return json.Marshal(*p.Flag)
	}
	return json.Marshal(struct {
		Min *float64 `json:"min,omitempty"`
		Max *float64 `json:"max,omitempty"`
	}{p.Min, p.Max})
}

// Parameters maps threshold names to their bounds.
type Parameters map[string]Param

func (ps Parameters) min(key string) (float64, bool) {
	if p, ok := ps[key]; ok && p.Min != nil {
		return *p.Min, true
	}
	return 0, false
}

func (ps Parameters) max(key string) (float64, bool) {
	if p, ok := ps[key]; ok && p.Max != nil {
		return *p.Max, true
	}
	return 0, false
}

// flag returns the boolean parameter value, defaulting when absent.
func (ps Parameters) flag(key string, def bool) bool {
	if p, ok := ps[key]; ok && p.Flag != nil {
		return *p.Flag
	}
	return def
}

// PatternDefinition is a named, parametrized rule over a series. Definitions
// come from the curated classic set or from the external pattern proposer;
// the engine only ever reads them.
type PatternDefinition struct {
	PatternID   string     `json:"pattern_id"`
	PatternName string     `json:"pattern_name"`
	PatternType Family     `json:"pattern_type"`
	Description string     `json:"description,omitempty"`
	Parameters  Parameters `json:"parameters"`
	IsActive    bool       `json:"is_active"`
}

// UnmarshalJSON treats a missing is_active field as active. Unknown extra
// fields are ignored for forward compatibility.
func (d *PatternDefinition) UnmarshalJSON(data []byte) error {
	type alias PatternDefinition
	raw := struct {
		*alias
		IsActive *bool `json:"is_active"`
	}{alias: (*alias)(d)}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.IsActive = raw.IsActive == nil || *raw.IsActive
	return nil
}

// MatchResult is the evidence for one positive (series, definition)
// evaluation. Ephemeral: callers persist only what they need.
type MatchResult struct {
	PatternID    string  `json:"pattern_id"`
	PatternName  string  `json:"pattern_name"`
	Confidence   float64 `json:"confidence"`
	MatchDetails string  `json:"match_details"`
}

// ParseReport carries per-definition parse failures so malformed upstream
// documents degrade to "no patterns extracted" instead of an error.
type ParseReport struct {
	Patterns []PatternDefinition
	Rejected []string // Human-readable reasons, one per rejected definition
}

// patternFile is the on-disk envelope: {"patterns": [...], "metadata": {...}}.
type patternFile struct {
	Patterns []json.RawMessage `json:"patterns"`
}

// ParseDefinitions decodes a pattern document, isolating faults per
// definition. A document that is not valid JSON at all yields an empty
// report with a single rejection reason.
func ParseDefinitions(data []byte) ParseReport {
	var report ParseReport

	var file patternFile
	if err := json.Unmarshal(data, &file); err != nil {
		report.Rejected = append(report.Rejected, fmt.Sprintf("document not parseable: %v", err))
		return report
	}

	for i, raw := range file.Patterns {
		var def PatternDefinition
		if err := json.Unmarshal(raw, &def); err != nil {
			report.Rejected = append(report.Rejected, fmt.Sprintf("pattern %d: %v", i, err))
			continue
		}
		if def.PatternID == "" && def.PatternName == "" {
			report.Rejected = append(report.Rejected, fmt.Sprintf("pattern %d: missing pattern_id and pattern_name", i))
			continue
		}
		report.Patterns = append(report.Patterns, def)
	}

	return report
}

// LoadDefinitions reads a pattern file from disk.
func LoadDefinitions(path string) (ParseReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ParseReport{}, fmt.Errorf("reading pattern file: %w", err)
	}
	return ParseDefinitions(data), nil
}
