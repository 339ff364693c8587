package scheduling

import (
	"sort"
	"time"
)

// Booking is the seat demand of one allocation over its window.
type Booking struct {
	ID     string
	Window Window
	Seats  int
}

type seatEvent struct {
	at    int64 // UnixNano; windows are instants, not calendar values
	delta int
}

// CheckCapacity runs the sweep-line ledger over the existing allocations
// plus the candidate and reports the first instant at which concurrent seat
// demand would exceed the room capacity. Ties at the same instant release
// departing seats before admitting arrivals, so a sitting ending at T and
// another starting at T never stack.
func CheckCapacity(capacity int, existing []Booking, candidate Booking) *Rejection {
	events := make([]seatEvent, 0, 2*(len(existing)+1))
	push := func(b Booking) {
		events = append(events,
			seatEvent{at: b.Window.Start.UnixNano(), delta: b.Seats},
			seatEvent{at: b.Window.End.UnixNano(), delta: -b.Seats},
		)
	}
	for _, b := range existing {
		push(b)
	}
	push(candidate)

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].at != events[j].at {
			return events[i].at < events[j].at
		}
		return events[i].delta < events[j].delta
	})

	running := 0
	for _, ev := range events {
		running += ev.delta
		if running > capacity {
			return &Rejection{
				Kind:  KindCapacityExceeded,
				At:    time.Unix(0, ev.at).UTC(),
				Total: running,
			}
		}
	}
	return nil
}
