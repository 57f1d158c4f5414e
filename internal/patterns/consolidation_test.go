package patterns

import (
	"strings"
	"testing"
)

func TestConsolidationBreakoutMatches(t *testing.T) {
	s := prepare(t, consolidationBreakoutBars())

	details, ok := matchConsolidationBreakout(s, consolidationBreakoutDef().Parameters)
	if !ok {
		t.Fatal("expected consolidation breakout to match")
	}

	// Shortest qualifying window wins, so the reported length is the
	// configured minimum.
	if !strings.Contains(details, "2-day consolidation") {
		t.Errorf("details = %q, want 2-day consolidation window reported", details)
	}
}

func TestConsolidationBreakoutNoBreakoutBar(t *testing.T) {
	// Flat series: no bar clears the breakout thresholds
	bars := consolidationBreakoutBars()
	bars[9] = bar(9, 10.0, 100)
	s := prepare(t, bars)

	if _, ok := matchConsolidationBreakout(s, consolidationBreakoutDef().Parameters); ok {
		t.Error("expected no match without a breakout bar")
	}
}

func TestConsolidationBreakoutEarlierBreakoutBar(t *testing.T) {
	// Breakout two bars back still qualifies: any of the most recent 3 bars
	bars := consolidationBreakoutBars()
	breakout := bars[9]
	breakout.Date = day(7)
	bars[7] = breakout
	bars[8] = bar(8, 10.3, 100)
	bars[9] = bar(9, 10.3, 100)
	s := prepare(t, bars)

	if _, ok := matchConsolidationBreakout(s, consolidationBreakoutDef().Parameters); !ok {
		t.Error("expected match with breakout bar two positions back")
	}
}

func TestConsolidationBreakoutWideRange(t *testing.T) {
	// Consolidation window swings 20%: range threshold rejects every window
	bars := consolidationBreakoutBars()
	for i := 0; i < 9; i++ {
		if i%2 == 0 {
			bars[i] = bar(i, 9.0, 100)
		} else {
			bars[i] = bar(i, 11.0, 100)
		}
	}
	s := prepare(t, bars)

	if _, ok := matchConsolidationBreakout(s, consolidationBreakoutDef().Parameters); ok {
		t.Error("expected no match with a wide consolidation range")
	}
}

func TestConsolidationBreakoutShortSeries(t *testing.T) {
	s := prepare(t, consolidationBreakoutBars()[:5])

	if _, ok := matchConsolidationBreakout(s, consolidationBreakoutDef().Parameters); ok {
		t.Error("expected no match for a 5-bar series")
	}
}
