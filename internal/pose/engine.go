package pose

import (
	"time"

	"github.com/ayusman/asana/internal/detector"
)

// DefaultSampleInterval is the minimum spacing between accepted frames.
const DefaultSampleInterval = 33 * time.Millisecond

// RuleSource supplies the live rule set for a pose. Current must return an
// immutable snapshot and be safe to call while a writer publishes a new one.
type RuleSource interface {
	Current() RuleSet
}

// StaticRules is a RuleSource that never changes.
type StaticRules RuleSet

// Current implements RuleSource.
func (s StaticRules) Current() RuleSet {
	return RuleSet(s)
}

// Option configures an Engine.
type Option func(*Engine)

// WithWindowSize sets the smoother window length.
func WithWindowSize(n int) Option {
	return func(e *Engine) {
		e.smoother = NewSmoother(n)
	}
}

// WithSampleInterval sets the throttle interval. Zero disables throttling
// but out-of-order frames are still dropped.
func WithSampleInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.intervalMs = d.Milliseconds()
		}
	}
}

// TickStatus is the per-tick output of the engine.
type TickStatus struct {
	Pose        string     `json:"pose"`
	TimestampMs int64      `json:"timestamp"`
	Dropped     bool       `json:"dropped"`
	Subject     bool       `json:"subject"`
	Pass        bool       `json:"pass"`
	StableGood  bool       `json:"stableGood"`
	GoodCount   int        `json:"goodCount"`
	WindowSize  int        `json:"windowSize"`
	Side        Side       `json:"side,omitempty"`
	Features    FeatureSet `json:"features"`
	Checks      []Check    `json:"checks,omitempty"`
	Hold        HoldStatus `json:"hold"`
	ElapsedMs   int64      `json:"elapsedMs"`
	TargetMs    int64      `json:"targetMs"`
	Events      []Event    `json:"events,omitempty"`
}

// Completed reports whether this tick (or an earlier one) completed the hold.
func (s TickStatus) Completed() bool {
	return s.Hold == HoldCompleted
}

// Engine runs Extract, Evaluate, Smooth and Advance for one pose. It is not
// safe for concurrent use; run one engine per active exercise.
type Engine struct {
	def        *Definition
	rules      RuleSource
	lastGood   RuleSet
	smoother   *Smoother
	timer      HoldTimer
	intervalMs int64
	lastTs     int64
	hasLast    bool
}

// NewEngine creates an engine for def reading thresholds from rules. A nil
// source uses the built-in defaults.
func NewEngine(def *Definition, rules RuleSource, opts ...Option) *Engine {
	if rules == nil {
		rules = StaticRules(def.Defaults())
	}
	e := &Engine{
		def:        def,
		rules:      rules,
		lastGood:   def.Defaults(),
		smoother:   NewSmoother(DefaultWindowSize),
		intervalMs: DefaultSampleInterval.Milliseconds(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Pose returns the pose name.
func (e *Engine) Pose() string {
	return e.def.Name
}

// Definition returns the pose definition the engine evaluates.
func (e *Engine) Definition() *Definition {
	return e.def
}

// Completed reports whether the hold has completed.
func (e *Engine) Completed() bool {
	return e.timer.Status() == HoldCompleted
}

// HoldState returns the hold timer snapshot.
func (e *Engine) HoldState() HoldState {
	return e.timer.State()
}

// Rules returns the rule set used by the most recent accepted tick.
func (e *Engine) Rules() RuleSet {
	return e.lastGood.Clone()
}

// Reset restarts the exercise: the smoother is cleared, the hold timer goes
// back to idle and the throttle forgets the last frame.
func (e *Engine) Reset() {
	e.smoother.Reset()
	e.timer.Reset()
	e.hasLast = false
}

// Tick evaluates one frame. Frames older than the previous one, or closer to
// it than the sample interval, are dropped without touching any state. A
// frame with no subject counts as a failing verdict.
func (e *Engine) Tick(frame detector.Frame) TickStatus {
	now := frame.TimestampMs
	status := TickStatus{
		Pose:        e.def.Name,
		TimestampMs: now,
		WindowSize:  e.smoother.Size(),
	}

	if e.hasLast && (now < e.lastTs || now-e.lastTs < e.intervalMs) {
		status.Dropped = true
		return e.fill(status, now)
	}
	e.lastTs, e.hasLast = now, true

	if e.Completed() {
		return e.fill(status, now)
	}

	rs := e.currentRules()

	fs, err := e.def.Extract(&frame, rs.MinVisibility)
	if err == nil {
		status.Subject = true
		verdict := e.def.Evaluate(fs, rs)
		status.Pass = verdict.Pass
		status.Checks = verdict.Checks
	}
	status.Side = fs.Side
	status.Features = fs

	status.StableGood, status.GoodCount = e.smoother.Push(status.Pass, rs.MinGoodCount)
	status.Events = e.timer.Advance(status.StableGood, now, rs.HoldDurationMs, rs.GraceMs)

	return e.fill(status, now)
}

func (e *Engine) fill(s TickStatus, now int64) TickStatus {
	s.GoodCount = e.smoother.Good()
	s.Hold = e.timer.Status()
	s.ElapsedMs = e.timer.Elapsed(now)
	s.TargetMs = e.lastGood.HoldDurationMs
	return s
}

// currentRules reads the live snapshot once per tick and falls back to the
// last rule set that validated.
func (e *Engine) currentRules() RuleSet {
	rs := e.rules.Current()
	if rs.Validate() != nil {
		return e.lastGood
	}
	e.lastGood = rs
	return rs
}
