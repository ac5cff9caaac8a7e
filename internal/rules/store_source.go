package rules

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/asana/internal/store"
)

// DefaultPollInterval is how often StoreSource checks for changed documents.
const DefaultPollInterval = 2 * time.Second

// RuleStore is the subset of store.RuleRepository the poller reads.
type RuleStore interface {
	Get(pose string) (*store.RuleDocument, error)
	Versions() (map[string]int64, error)
}

// Overlay is a rule source layered above the local database. After a stored
// document replaces a pose's rules, each overlay reloads that pose so its
// fields win again.
type Overlay interface {
	Load(ctx context.Context, pose string) error
}

// StoreSource publishes rule documents saved in the local database. A
// document replaces earlier overrides; a deleted document restores the
// built-in defaults. Overlays are reapplied after either.
type StoreSource struct {
	repo     RuleStore
	registry *Registry
	interval time.Duration
	logger   *logrus.Logger
	applied  map[string]int64
	overlays []Overlay
}

// NewStoreSource creates a poller. Intervals <= 0 use DefaultPollInterval.
func NewStoreSource(repo RuleStore, registry *Registry, interval time.Duration, logger *logrus.Logger) *StoreSource {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &StoreSource{
		repo:     repo,
		registry: registry,
		interval: interval,
		logger:   logger,
		applied:  make(map[string]int64),
	}
}

// Layer adds an overlay. Call it before Sync or Run.
func (s *StoreSource) Layer(o Overlay) {
	s.overlays = append(s.overlays, o)
}

// Sync publishes every document whose version changed since the last call.
// It is not safe for concurrent use; Run calls it from one goroutine.
func (s *StoreSource) Sync(ctx context.Context) error {
	versions, err := s.repo.Versions()
	if err != nil {
		return err
	}

	var errs []error
	for _, name := range s.registry.Poses() {
		version, stored := versions[name]
		last, seen := s.applied[name]

		switch {
		case stored && (!seen || version != last):
			doc, err := s.repo.Get(name)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if _, err := s.registry.Replace(name, doc.Fields, SourceStore); err != nil {
				errs = append(errs, err)
				continue
			}
			s.applied[name] = version
			errs = append(errs, s.reapply(ctx, name))

		case !stored && seen:
			if _, err := s.registry.Replace(name, nil, SourceStore); err != nil {
				errs = append(errs, err)
				continue
			}
			delete(s.applied, name)
			errs = append(errs, s.reapply(ctx, name))
		}
	}

	for name := range versions {
		if _, known := s.applied[name]; !known {
			s.logger.WithField("pose", name).Debug("Ignoring stored rules for unknown pose")
		}
	}

	return errors.Join(errs...)
}

func (s *StoreSource) reapply(ctx context.Context, pose string) error {
	var errs []error
	for _, o := range s.overlays {
		if err := o.Load(ctx, pose); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run syncs immediately and then on every interval until ctx is done.
func (s *StoreSource) Run(ctx context.Context) error {
	if err := s.Sync(ctx); err != nil {
		s.logger.WithError(err).Warn("Initial rule sync failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil {
				s.logger.WithError(err).Warn("Rule sync failed")
			}
		}
	}
}
