// Package app runs the pose-hold pipeline for the asana coach.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/asana/internal/detector"
	"github.com/ayusman/asana/internal/metrics"
	"github.com/ayusman/asana/internal/pose"
	"github.com/ayusman/asana/internal/rules"
	"github.com/ayusman/asana/internal/store"
)

// lastPoseSetting is the settings key holding the most recently started pose.
const lastPoseSetting = "last_pose"

var (
	// ErrNotRunning is returned when a command needs an exercise and none exists.
	ErrNotRunning = errors.New("no exercise running")

	// ErrStopped is returned when the pipeline loop has exited.
	ErrStopped = errors.New("pipeline stopped")
)

// Config holds configuration options for the application.
type Config struct {
	Store          *store.Store
	Registry       *rules.Registry
	Source         FrameSource
	Metrics        *metrics.Metrics
	Logger         *logrus.Logger
	SampleInterval time.Duration
	WindowSize     int
	DefaultPose    string
}

// Exercise is the published view of the current exercise.
type Exercise struct {
	SessionID string          `json:"session,omitempty"`
	Pose      string          `json:"pose"`
	Running   bool            `json:"running"`
	Status    pose.TickStatus `json:"status"`
}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdReset
)

type command struct {
	kind  commandKind
	pose  string
	reply chan result
}

type result struct {
	exercise Exercise
	err      error
}

// App owns the frame source and at most one engine. Every engine access
// happens on the Run goroutine; other goroutines talk to it through commands.
type App struct {
	config Config
	log    *logrus.Logger
	cmds   chan command
	done   chan struct{}

	mu      sync.RWMutex
	current Exercise
	subs    map[int]func(Exercise)
	nextSub int

	now func() time.Time

	// Loop-owned state.
	engine      *pose.Engine
	running     bool
	sourceOpen  bool
	lastFrame   detector.Frame
	lastFrameAt time.Time
}

// New creates a new App. The initial pose is the last one started, falling
// back to config.DefaultPose.
func New(config Config) *App {
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	if config.Registry == nil {
		config.Registry = rules.NewRegistry(config.Logger)
	}
	if config.SampleInterval <= 0 {
		config.SampleInterval = pose.DefaultSampleInterval
	}
	if config.WindowSize <= 0 {
		config.WindowSize = pose.DefaultWindowSize
	}

	a := &App{
		config: config,
		log:    config.Logger,
		cmds:   make(chan command),
		done:   make(chan struct{}),
		subs:   make(map[int]func(Exercise)),
		now:    time.Now,
	}
	a.current.Pose = a.initialPose()
	a.current.Status = a.idleStatus(a.current.Pose)
	return a
}

func (a *App) initialPose() string {
	if a.config.Store != nil {
		if name, err := a.config.Store.Settings().Get(lastPoseSetting); err == nil {
			if _, err := pose.Lookup(name); err == nil {
				return name
			}
		}
	}
	if _, err := pose.Lookup(a.config.DefaultPose); err == nil {
		return a.config.DefaultPose
	}
	return ""
}

func (a *App) idleStatus(name string) pose.TickStatus {
	st := pose.TickStatus{Pose: name, Hold: pose.HoldIdle, WindowSize: a.config.WindowSize}
	if rs, err := a.config.Registry.Current(name); err == nil {
		st.TargetMs = rs.HoldDurationMs
	}
	return st
}

// Current returns the latest published exercise view.
func (a *App) Current() Exercise {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// Subscribe registers fn for every published exercise view and returns a
// func that removes it. fn runs on the pipeline goroutine and must not block
// or call back into the App.
func (a *App) Subscribe(fn func(Exercise)) func() {
	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}

// Start begins a new exercise for name, or for the current pose when name
// is empty. A running exercise is abandoned first.
func (a *App) Start(ctx context.Context, name string) (Exercise, error) {
	return a.send(ctx, command{kind: cmdStart, pose: name})
}

// Stop abandons the running exercise.
func (a *App) Stop(ctx context.Context) (Exercise, error) {
	return a.send(ctx, command{kind: cmdStop})
}

// Reset restarts the current pose from an idle hold.
func (a *App) Reset(ctx context.Context) (Exercise, error) {
	return a.send(ctx, command{kind: cmdReset})
}

func (a *App) send(ctx context.Context, cmd command) (Exercise, error) {
	cmd.reply = make(chan result, 1)

	select {
	case a.cmds <- cmd:
	case <-a.done:
		return Exercise{}, ErrStopped
	case <-ctx.Done():
		return Exercise{}, ctx.Err()
	}

	select {
	case res := <-cmd.reply:
		return res.exercise, res.err
	case <-ctx.Done():
		return Exercise{}, ctx.Err()
	}
}

// Run drives the pipeline until ctx is cancelled. It must be called once.
func (a *App) Run(ctx context.Context) error {
	defer close(a.done)

	ticker := time.NewTicker(a.config.SampleInterval)
	defer ticker.Stop()

	a.log.WithFields(logrus.Fields{
		"interval": a.config.SampleInterval,
		"window":   a.config.WindowSize,
	}).Info("pipeline started")

	for {
		select {
		case <-ctx.Done():
			a.shutdown()
			return nil
		case cmd := <-a.cmds:
			ex, err := a.handle(cmd)
			cmd.reply <- result{exercise: ex, err: err}
		case <-ticker.C:
			a.tick()
		}
	}
}

// throttleInterval is the engine's minimum frame spacing for a loop ticking
// every interval. Frames are stamped after a blocking camera read, so
// consecutive frames may land up to an eighth of the interval early.
func throttleInterval(interval time.Duration) time.Duration {
	return interval - interval/8
}

func (a *App) handle(cmd command) (Exercise, error) {
	switch cmd.kind {
	case cmdStart:
		return a.start(cmd.pose)
	case cmdStop:
		if !a.running {
			return a.Current(), ErrNotRunning
		}
		a.finish(store.SessionAbandoned, a.Current().Status.ElapsedMs)
		a.closeSource()
		return a.publish(a.Current().Status), nil
	case cmdReset:
		if a.engine == nil {
			return a.Current(), ErrNotRunning
		}
		return a.start(a.engine.Pose())
	default:
		return a.Current(), fmt.Errorf("unknown command %d", cmd.kind)
	}
}

func (a *App) start(name string) (Exercise, error) {
	if name == "" {
		name = a.Current().Pose
	}
	def, err := pose.Lookup(name)
	if err != nil {
		return a.Current(), err
	}
	src, err := a.config.Registry.Source(name)
	if err != nil {
		return a.Current(), err
	}

	if a.running {
		a.finish(store.SessionAbandoned, a.Current().Status.ElapsedMs)
	}

	if err := a.openSource(); err != nil {
		return a.Current(), err
	}

	a.engine = pose.NewEngine(def, src,
		pose.WithWindowSize(a.config.WindowSize),
		pose.WithSampleInterval(throttleInterval(a.config.SampleInterval)),
	)
	a.lastFrame, a.lastFrameAt = detector.Frame{}, time.Time{}
	status := a.idleStatus(name)

	id := uuid.New().String()
	if a.config.Store != nil {
		sess := &store.Session{ID: id, Pose: name, TargetMs: status.TargetMs}
		if err := a.config.Store.Sessions().Create(sess); err != nil {
			a.log.WithError(err).WithField("pose", name).Warn("failed to record session")
		}
		if err := a.config.Store.Settings().Set(lastPoseSetting, name); err != nil {
			a.log.WithError(err).Warn("failed to save last pose")
		}
	}

	a.running = true
	a.config.Metrics.SetSessionActive(true)

	a.mu.Lock()
	a.current.SessionID = id
	a.mu.Unlock()

	a.log.WithFields(logrus.Fields{
		"pose":     name,
		"session":  id,
		"targetMs": status.TargetMs,
	}).Info("exercise started")

	return a.publish(status), nil
}

// finish records the outcome of the running exercise.
func (a *App) finish(outcome store.SessionStatus, heldMs int64) {
	ex := a.Current()
	a.running = false
	a.config.Metrics.SetSessionActive(false)

	if a.config.Store != nil && ex.SessionID != "" {
		if err := a.config.Store.Sessions().Finish(ex.SessionID, outcome, heldMs); err != nil {
			a.log.WithError(err).WithField("session", ex.SessionID).Warn("failed to finish session")
		}
	}

	a.log.WithFields(logrus.Fields{
		"pose":    ex.Pose,
		"session": ex.SessionID,
		"outcome": outcome,
		"heldMs":  heldMs,
	}).Info("exercise finished")
}

func (a *App) openSource() error {
	if a.sourceOpen || a.config.Source == nil {
		return nil
	}
	if err := a.config.Source.Open(); err != nil {
		return fmt.Errorf("open frame source: %w", err)
	}
	a.sourceOpen = true
	return nil
}

func (a *App) closeSource() {
	if !a.sourceOpen {
		return
	}
	if err := a.config.Source.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close frame source")
	}
	a.sourceOpen = false
}

func (a *App) shutdown() {
	if a.running {
		a.finish(store.SessionAbandoned, a.Current().Status.ElapsedMs)
	}
	a.closeSource()
	a.log.Info("pipeline stopped")
}

// publish stores the view built from status and notifies subscribers.
func (a *App) publish(status pose.TickStatus) Exercise {
	a.mu.Lock()
	a.current.Pose = status.Pose
	a.current.Running = a.running
	a.current.Status = status
	ex := a.current
	subs := make([]func(Exercise), 0, len(a.subs))
	for _, fn := range a.subs {
		subs = append(subs, fn)
	}
	a.mu.Unlock()

	for _, fn := range subs {
		fn(ex)
	}
	return ex
}
