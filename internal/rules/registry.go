// Package rules keeps the live rule set of every catalog pose and feeds it
// from local storage, redis and the HTTP API. Readers get immutable
// snapshots; writers publish a new snapshot per update.
package rules

import (
	"fmt"
	"maps"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/asana/internal/pose"
)

// Names of the sources that publish rule updates.
const (
	SourceDefault = "default"
	SourceStore   = "store"
	SourceRedis   = "redis"
	SourceAPI     = "api"
)

// Update describes one publish to the registry.
type Update struct {
	Pose     string       `json:"pose"`
	Source   string       `json:"source"`
	Rules    pose.RuleSet `json:"rules"`
	Rejected []string     `json:"rejected,omitempty"`
	Changed  bool         `json:"changed"`
}

// Registry holds one atomically swapped snapshot per catalog pose.
type Registry struct {
	logger *logrus.Logger

	// Fixed at construction; only the pointers it holds change.
	snapshots map[string]*atomic.Pointer[pose.RuleSet]

	writeMu sync.Mutex

	subMu  sync.RWMutex
	subs   map[int]func(Update)
	nextID int
}

// NewRegistry creates a registry seeded with the built-in defaults of every
// catalog pose.
func NewRegistry(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	r := &Registry{
		logger:    logger,
		snapshots: make(map[string]*atomic.Pointer[pose.RuleSet]),
		subs:      make(map[int]func(Update)),
	}
	for _, def := range pose.Catalog() {
		p := &atomic.Pointer[pose.RuleSet]{}
		rs := def.Defaults()
		p.Store(&rs)
		r.snapshots[def.Name] = p
	}
	return r
}

// Poses returns the names of every pose the registry tracks.
func (r *Registry) Poses() []string {
	names := make([]string, 0, len(r.snapshots))
	for name := range r.snapshots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Current returns the live rule set for name.
func (r *Registry) Current(name string) (pose.RuleSet, error) {
	p, err := r.pointer(name)
	if err != nil {
		return pose.RuleSet{}, err
	}
	return *p.Load(), nil
}

// Source returns a pose.RuleSource bound to name. Each Current call loads
// the latest snapshot without locking.
func (r *Registry) Source(name string) (pose.RuleSource, error) {
	p, err := r.pointer(name)
	if err != nil {
		return nil, err
	}
	return snapshotSource{p: p}, nil
}

// Apply merges a flat rule document over the current snapshot of name and
// publishes the result. Fields with non-finite or out-of-range values and
// unknown threshold names keep their previous value and are reported back.
func (r *Registry) Apply(name string, fields map[string]float64, source string) (Update, error) {
	return r.publish(name, fields, source, false)
}

// Replace publishes the built-in defaults of name overlaid with fields,
// discarding earlier overrides. A nil document restores the defaults.
func (r *Registry) Replace(name string, fields map[string]float64, source string) (Update, error) {
	return r.publish(name, fields, source, true)
}

// Subscribe registers fn to receive every update. fn runs on the writer's
// goroutine while the write lock is held, so it must not publish. The
// returned func removes the subscription.
func (r *Registry) Subscribe(fn func(Update)) func() {
	r.subMu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

func (r *Registry) publish(name string, fields map[string]float64, source string, fromDefaults bool) (Update, error) {
	p, err := r.pointer(name)
	if err != nil {
		return Update{}, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	prev := *p.Load()
	base := prev
	if fromDefaults {
		def, _ := pose.Lookup(name)
		base = def.Defaults()
	}

	next, rejected := base.Merge(fields)
	if err := next.Validate(); err != nil {
		return Update{}, fmt.Errorf("%s rules from %s: %w", name, source, err)
	}

	u := Update{
		Pose:     name,
		Source:   source,
		Rules:    next,
		Rejected: rejected,
		Changed:  !sameRules(prev, next),
	}
	if u.Changed {
		p.Store(&next)
	} else {
		u.Rules = prev
	}

	entry := r.logger.WithFields(logrus.Fields{
		"pose":    name,
		"source":  source,
		"changed": u.Changed,
	})
	if len(rejected) > 0 {
		entry.WithField("rejected", rejected).Warn("Rejected rule fields")
	}
	if u.Changed {
		entry.Info("Rule set updated")
	} else {
		entry.Debug("Rule set unchanged")
	}

	r.subMu.RLock()
	for _, fn := range r.subs {
		fn(u)
	}
	r.subMu.RUnlock()

	return u, nil
}

func (r *Registry) pointer(name string) (*atomic.Pointer[pose.RuleSet], error) {
	p, ok := r.snapshots[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", pose.ErrUnknownPose, name)
	}
	return p, nil
}

type snapshotSource struct {
	p *atomic.Pointer[pose.RuleSet]
}

func (s snapshotSource) Current() pose.RuleSet {
	return *s.p.Load()
}

func sameRules(a, b pose.RuleSet) bool {
	return a.Pose == b.Pose &&
		a.HoldDurationMs == b.HoldDurationMs &&
		a.GraceMs == b.GraceMs &&
		a.MinGoodCount == b.MinGoodCount &&
		a.MinVisibility == b.MinVisibility &&
		maps.Equal(a.Thresholds, b.Thresholds)
}
