package rules

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Default redis names for rule documents.
const (
	DefaultKeyPrefix     = "poseRules:"
	DefaultUpdateChannel = "poseRules:updates"
)

// ReloadAll is the update payload asking subscribers to reload every pose.
const ReloadAll = "*"

// RedisSource keeps rule documents in redis hashes (one per pose, field ->
// number) and reloads a pose when its name is published on the update
// channel. Documents are merged over the live snapshot, so a field that is
// missing or unparseable keeps its previous value.
type RedisSource struct {
	client   *redis.Client
	registry *Registry
	logger   *logrus.Logger
	prefix   string
	channel  string
}

// NewRedisSource creates a source using the default key prefix and channel.
func NewRedisSource(client *redis.Client, registry *Registry, logger *logrus.Logger) *RedisSource {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisSource{
		client:   client,
		registry: registry,
		logger:   logger,
		prefix:   DefaultKeyPrefix,
		channel:  DefaultUpdateChannel,
	}
}

// Key returns the hash key holding the document for pose.
func (s *RedisSource) Key(pose string) string {
	return s.prefix + pose
}

// Load reads the document for pose and applies it. A missing hash leaves the
// live rules untouched.
func (s *RedisSource) Load(ctx context.Context, pose string) error {
	raw, err := s.client.HGetAll(ctx, s.Key(pose)).Result()
	if err != nil {
		return fmt.Errorf("read %s: %w", s.Key(pose), err)
	}
	if len(raw) == 0 {
		s.logger.WithField("pose", pose).Debug("No redis rule document")
		return nil
	}

	fields := make(map[string]float64, len(raw))
	var unparsed []string
	for name, value := range raw {
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			unparsed = append(unparsed, name)
			continue
		}
		fields[name] = v
	}
	if len(unparsed) > 0 {
		s.logger.WithFields(logrus.Fields{
			"pose":   pose,
			"fields": unparsed,
		}).Warn("Ignoring non-numeric rule fields")
	}

	_, err = s.registry.Apply(pose, fields, SourceRedis)
	return err
}

// LoadAll loads the document of every registered pose.
func (s *RedisSource) LoadAll(ctx context.Context) error {
	var errs []error
	for _, pose := range s.registry.Poses() {
		if err := s.Load(ctx, pose); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Publish writes fields into the document for pose and notifies every
// subscriber, including this process.
func (s *RedisSource) Publish(ctx context.Context, pose string, fields map[string]float64) error {
	if len(fields) == 0 {
		return nil
	}

	values := make(map[string]interface{}, len(fields))
	for name, v := range fields {
		values[name] = strconv.FormatFloat(v, 'f', -1, 64)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.Key(pose), values)
	pipe.Publish(ctx, s.channel, pose)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish %s rules: %w", pose, err)
	}
	return nil
}

// Run subscribes to the update channel, loads every document once and then
// reloads poses as their names are published, until ctx is done.
func (s *RedisSource) Run(ctx context.Context) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	// Wait for the subscription before the initial load so no update
	// published in between is lost.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}

	if err := s.LoadAll(ctx); err != nil {
		s.logger.WithError(err).Warn("Initial redis rule load failed")
	}
	s.logger.WithField("channel", s.channel).Info("Watching redis rule updates")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			pose := strings.TrimSpace(msg.Payload)

			var err error
			if pose == "" || pose == ReloadAll {
				err = s.LoadAll(ctx)
			} else {
				err = s.Load(ctx, pose)
			}
			if err != nil {
				s.logger.WithError(err).WithField("pose", pose).Warn("Redis rule reload failed")
			}
		}
	}
}
