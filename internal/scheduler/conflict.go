package scheduler

// Booking is a scheduled claim on a space, carried with its stored buffers.
type Booking struct {
	ID           string
	Window       TimeWindow
	BufferBefore int
	BufferAfter  int
}

// Effective returns the booking window widened by its buffers.
func (b Booking) Effective() TimeWindow {
	return b.Window.WithBuffers(b.BufferBefore, b.BufferAfter)
}

// Overlap details an existing booking whose effective window collides with a
// candidate window.
type Overlap struct {
	BookingID string
	Effective TimeWindow
}

// DetectOverlaps returns, in input order, every booking in existing whose
// buffered window overlaps candidate. The booking identified by ignoreID is
// skipped so an event can be re-checked against its own slot.
func DetectOverlaps(existing []Booking, candidate TimeWindow, ignoreID string) []Overlap {
	if len(existing) == 0 || candidate.IsZero() {
		return nil
	}

	var overlaps []Overlap
	for _, booking := range existing {
		if ignoreID != "" && booking.ID == ignoreID {
			continue
		}
		effective := booking.Effective()
		if !effective.Overlaps(candidate) {
			continue
		}
		overlaps = append(overlaps, Overlap{BookingID: booking.ID, Effective: effective})
	}
	return overlaps
}
