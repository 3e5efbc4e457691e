package scheduler

import (
	"fmt"
	"sort"
	"strings"
)

// TechSupportMode describes how technical staff cover an event.
type TechSupportMode string

const (
	// TechSupportSetupOnly charges capacity only during the buffer margins.
	TechSupportSetupOnly TechSupportMode = "SETUP_ONLY"
	// TechSupportAttended charges capacity for the whole buffered window.
	TechSupportAttended TechSupportMode = "ATTENDED"
)

// ParseTechSupportMode resolves a mode name. An empty value means ATTENDED.
func ParseTechSupportMode(value string) (TechSupportMode, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "", string(TechSupportAttended):
		return TechSupportAttended, nil
	case string(TechSupportSetupOnly):
		return TechSupportSetupOnly, nil
	default:
		return "", fmt.Errorf("scheduler: unknown tech support mode %q", value)
	}
}

// Demand is a single continuous interval of technical staff demand.
type Demand struct {
	Start TimeOfDay
	End   TimeOfDay
}

// DemandIntervals returns the intervals during which an event occupies
// technical staff. ATTENDED yields the whole buffered window, SETUP_ONLY yields
// the before and after margins only. Intervals are clamped to the day and empty
// intervals are dropped.
func DemandIntervals(w TimeWindow, bufferBefore, bufferAfter int, mode TechSupportMode) []Demand {
	if w.IsZero() {
		return nil
	}
	if bufferBefore < 0 {
		bufferBefore = 0
	}
	if bufferAfter < 0 {
		bufferAfter = 0
	}

	var demands []Demand
	add := func(start, end TimeOfDay) {
		start, end = start.Clamp(), end.Clamp()
		if start < end {
			demands = append(demands, Demand{Start: start, End: end})
		}
	}

	switch mode {
	case TechSupportSetupOnly:
		if bufferBefore > 0 {
			add(w.Start().Add(-bufferBefore), w.Start())
		}
		if bufferAfter > 0 {
			add(w.End(), w.End().Add(bufferAfter))
		}
	default:
		buffered := w.WithBuffers(bufferBefore, bufferAfter)
		add(buffered.Start(), buffered.End())
	}
	return demands
}

// DayBlocks returns the start of every block of the given size in a day.
func DayBlocks(blockMinutes int) []TimeOfDay {
	if blockMinutes <= 0 {
		return nil
	}
	blocks := make([]TimeOfDay, 0, MinutesPerDay/blockMinutes+1)
	for start := 0; start < MinutesPerDay; start += blockMinutes {
		blocks = append(blocks, TimeOfDay(start))
	}
	return blocks
}

// BlockEnd returns the exclusive end of the block starting at start.
func BlockEnd(start TimeOfDay, blockMinutes int) TimeOfDay {
	return start.Add(blockMinutes).Clamp()
}

// ComputeBlocks discretises the technical demand of an event into the set of
// block start times it touches, sorted ascending. A block is touched when its
// half-open interval intersects any demand interval.
func ComputeBlocks(w TimeWindow, bufferBefore, bufferAfter int, mode TechSupportMode, blockMinutes int) []TimeOfDay {
	demands := DemandIntervals(w, bufferBefore, bufferAfter, mode)
	if len(demands) == 0 || blockMinutes <= 0 {
		return nil
	}

	touched := make(map[TimeOfDay]struct{})
	for _, demand := range demands {
		first := TimeOfDay((int(demand.Start) / blockMinutes) * blockMinutes)
		for start := first; start < demand.End; start = start.Add(blockMinutes) {
			if start < demand.End && demand.Start < BlockEnd(start, blockMinutes) {
				touched[start] = struct{}{}
			}
		}
	}

	blocks := make([]TimeOfDay, 0, len(touched))
	for start := range touched {
		blocks = append(blocks, start)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })
	return blocks
}

// Usage counts how many events touch each block.
type Usage map[TimeOfDay]int

// Add charges one unit to every block in blocks.
func (u Usage) Add(blocks []TimeOfDay) {
	for _, block := range blocks {
		u[block]++
	}
}

// Saturated returns the candidate blocks that cannot take one more unit under
// the given per-block capacity. An empty result means the candidate fits.
func (u Usage) Saturated(candidate []TimeOfDay, slotsPerBlock int) []TimeOfDay {
	var full []TimeOfDay
	for _, block := range candidate {
		if u[block]+1 > slotsPerBlock {
			full = append(full, block)
		}
	}
	return full
}
