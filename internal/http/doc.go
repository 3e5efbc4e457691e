// Package http exposes the venue booking engine as a JSON API.
//
// The router exposes the following endpoints:
//   - POST /availability: checks a slot for a space or free location. Body:
//     {"date","space_id"|"free_location","from","to","buffer_before","buffer_after",
//     "ignore_event_id"}. Response: {"available","conflicts":[...]}.
//   - GET /spaces/{id}/occupancy?date=YYYY-MM-DD: raw blocking events of a space.
//   - POST /tech-capacity/check: {"has_capacity": bool} for a candidate slot and
//     support mode (ATTENDED or SETUP_ONLY).
//   - GET /tech-capacity?date=: every block of the day with used and available slots.
//   - GET /tech-capacity/events?date=: events requiring technical support.
//   - POST /events/{id}/displace: registers priority conflicts for the lower
//     priority events overlapping the given event.
//   - GET /events/{id}/conflicts: open conflicts raised by the event.
//   - GET /conflicts/{code}, POST /conflicts/{code}/decision: inspect and decide a
//     conflict. Body: {"decision":"KEEP"|"REBOOK_OTHER","reason","target":{...}}.
//
// The caller identity is read from the X-Actor header. Errors use the
// errorResponse payload: 422 for validation failures, 404 for unknown records,
// 409 for availability conflicts, exhausted technical capacity, decided
// conflicts and contended rebooking slots.
package http
