package clock

import (
	"testing"
	"time"
)

func TestManualClockAdvances(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	c := NewManual(start)
	if !c.Now().Equal(start) || c.Now().Location() != time.UTC {
		t.Fatalf("expected utc start, got %v", c.Now())
	}
	if got := c.Advance(time.Hour); !got.Equal(start.Add(time.Hour)) {
		t.Fatalf("unexpected advanced time %v", got)
	}
	later := start.Add(48 * time.Hour)
	c.Set(later)
	if !c.Now().Equal(later) {
		t.Fatalf("expected set time %v, got %v", later, c.Now())
	}
}

func TestSystemClockIsUTC(t *testing.T) {
	if loc := NewSystem().Now().Location(); loc != time.UTC {
		t.Fatalf("expected UTC, got %v", loc)
	}
}
