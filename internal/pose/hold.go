package pose

// HoldStatus is the lifecycle state of a hold attempt.
type HoldStatus int

const (
	// HoldIdle means no stable-good run is in progress.
	HoldIdle HoldStatus = iota
	// HoldAccumulating means a run is in progress, possibly inside a grace lapse.
	HoldAccumulating
	// HoldCompleted is terminal until Reset.
	HoldCompleted
)

// String returns the lowercase status name.
func (s HoldStatus) String() string {
	switch s {
	case HoldIdle:
		return "idle"
	case HoldAccumulating:
		return "accumulating"
	case HoldCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s HoldStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EventKind names a hold state transition.
type EventKind string

const (
	EventHoldStarted    EventKind = "hold_started"
	EventHoldProgressed EventKind = "hold_progressed"
	EventHoldCompleted  EventKind = "hold_completed"
	EventHoldReset      EventKind = "hold_reset"
)

// Event is emitted by HoldTimer.Advance.
type Event struct {
	Kind        EventKind `json:"kind"`
	ElapsedMs   int64     `json:"elapsedMs"`
	TimestampMs int64     `json:"timestamp"`
}

// HoldState is a snapshot of the timer. Nil timestamps are unset.
type HoldState struct {
	Status    HoldStatus `json:"status"`
	GoodSince *int64     `json:"goodSince,omitempty"`
	BadSince  *int64     `json:"badSince,omitempty"`
}

// HoldTimer tracks continuous stable-good duration with a grace period for
// short lapses. The zero value is an idle timer.
type HoldTimer struct {
	status    HoldStatus
	goodSince int64
	badSince  int64
	hasGood   bool
	hasBad    bool
	heldMs    int64
}

// Advance feeds one tick and returns the events it produced. A bad run
// clears progress only once it has lasted longer than graceMs; completion
// fires exactly once.
func (h *HoldTimer) Advance(stableGood bool, now, holdMs, graceMs int64) []Event {
	switch h.status {
	case HoldCompleted:
		return nil

	case HoldIdle:
		if !stableGood {
			return nil
		}
		h.status = HoldAccumulating
		h.goodSince, h.hasGood = now, true
		h.hasBad = false
		events := []Event{{Kind: EventHoldStarted, TimestampMs: now}}
		return append(events, h.progress(now, holdMs)...)

	default:
		if stableGood {
			h.hasBad = false
			return h.progress(now, holdMs)
		}
		if !h.hasBad {
			h.badSince, h.hasBad = now, true
			return nil
		}
		if now-h.badSince > graceMs {
			elapsed := h.Elapsed(now)
			h.Reset()
			return []Event{{Kind: EventHoldReset, ElapsedMs: elapsed, TimestampMs: now}}
		}
		return nil
	}
}

func (h *HoldTimer) progress(now, holdMs int64) []Event {
	elapsed := now - h.goodSince
	if elapsed >= holdMs {
		h.status = HoldCompleted
		h.heldMs = elapsed
		return []Event{
			{Kind: EventHoldProgressed, ElapsedMs: elapsed, TimestampMs: now},
			{Kind: EventHoldCompleted, ElapsedMs: elapsed, TimestampMs: now},
		}
	}
	return []Event{{Kind: EventHoldProgressed, ElapsedMs: elapsed, TimestampMs: now}}
}

// Status returns the current lifecycle state.
func (h *HoldTimer) Status() HoldStatus {
	return h.status
}

// State returns a copy of the timer state.
func (h *HoldTimer) State() HoldState {
	s := HoldState{Status: h.status}
	if h.hasGood {
		g := h.goodSince
		s.GoodSince = &g
	}
	if h.hasBad {
		b := h.badSince
		s.BadSince = &b
	}
	return s
}

// Elapsed returns the hold progress at now. Progress is frozen once the hold
// completes and is zero while idle.
func (h *HoldTimer) Elapsed(now int64) int64 {
	if h.status == HoldCompleted {
		return h.heldMs
	}
	if !h.hasGood || now < h.goodSince {
		return 0
	}
	return now - h.goodSince
}

// Reset returns the timer to idle with both timestamps cleared.
func (h *HoldTimer) Reset() {
	*h = HoldTimer{}
}
