package world

import (
	"sort"

	"github.com/HBIDamian/CustomJukebox/internal/sim/jukebox"
)

// tickScheduler runs callbacks on the world goroutine at the start of a tick.
// It is only touched from the world loop, so it needs no locking.
type tickScheduler struct {
	now     func() uint64
	nextSeq uint64
	pending []*tickTimer
}

type tickTimer struct {
	due      uint64
	seq      uint64
	fn       func()
	canceled bool
	fired    bool
}

// Stop prevents the callback if it has not run yet. It reports whether this
// call was the one that prevented it.
func (t *tickTimer) Stop() bool {
	if t.canceled || t.fired {
		return false
	}
	t.canceled = true
	return true
}

func newTickScheduler(now func() uint64) *tickScheduler {
	return &tickScheduler{now: now}
}

// AfterTicks schedules fn to run ticks ticks from now; zero is treated as one.
func (s *tickScheduler) AfterTicks(ticks uint64, fn func()) jukebox.Timer {
	if ticks == 0 {
		ticks = 1
	}
	s.nextSeq++
	t := &tickTimer{due: s.now() + ticks, seq: s.nextSeq, fn: fn}
	s.pending = append(s.pending, t)
	return t
}

// runDue fires every live timer due at or before tick in (due, scheduling)
// order. Timers scheduled by a callback wait for a later call.
func (s *tickScheduler) runDue(tick uint64) int {
	var due, keep []*tickTimer
	for _, t := range s.pending {
		switch {
		case t.canceled:
		case t.due <= tick:
			due = append(due, t)
		default:
			keep = append(keep, t)
		}
	}
	s.pending = keep
	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].seq < due[j].seq
	})
	n := 0
	for _, t := range due {
		// An earlier callback in this batch may have stopped it.
		if t.canceled {
			continue
		}
		t.fired = true
		t.fn()
		n++
	}
	return n
}

func (s *tickScheduler) Len() int {
	n := 0
	for _, t := range s.pending {
		if !t.canceled {
			n++
		}
	}
	return n
}
