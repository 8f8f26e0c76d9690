package features

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/employdex/base-platform/internal/audit"
)

// DefaultCacheTTL bounds how stale a cached toggle state may be after a
// direct database change that bypassed Set.
const DefaultCacheTTL = 60 * time.Second

// Service answers toggle queries through a Redis read-through cache.
// Every failure path reads as disabled.
type Service struct {
	repo   Repository
	cache  *redis.Client
	ttl    time.Duration
	sink   audit.Sink
	logger *slog.Logger
}

// NewService constructs a Service. The cache client may be nil, in which
// case every check hits the repository.
func NewService(repo Repository, cache *redis.Client, ttl time.Duration, sink audit.Sink, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if sink == nil {
		sink = audit.Discard{}
	}
	return &Service{repo: repo, cache: cache, ttl: ttl, sink: sink, logger: logger}
}

func cacheKey(name string) string {
	return "feature:" + name
}

// IsEnabled reports whether the named toggle is on. Unknown names, store
// errors, and cache corruption all return false.
func (s *Service) IsEnabled(ctx context.Context, name string) bool {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey(name)).Result()
		if err == nil {
			return cached == "1"
		}
		if err != redis.Nil && s.logger != nil {
			s.logger.Warn("feature cache read", slog.String("feature", name), slog.Any("error", err))
		}
	}

	toggle, err := s.repo.Get(ctx, name)
	if err != nil {
		return false
	}
	s.writeCache(ctx, name, toggle.Enabled)
	return toggle.Enabled
}

// List returns every toggle straight from the store.
func (s *Service) List(ctx context.Context) ([]Toggle, error) {
	return s.repo.List(ctx)
}

// Set upserts the toggle and refreshes the cached state so the change is
// visible on the next check.
func (s *Service) Set(ctx context.Context, actorID int64, name string, enabled bool, description string) (*Toggle, error) {
	toggle, err := s.repo.Upsert(ctx, name, enabled, description)
	if err != nil {
		return nil, err
	}
	s.writeCache(ctx, name, toggle.Enabled)

	entry := audit.Entry{
		ActorID:  actorID,
		Action:   "feature.set",
		Entity:   "feature_toggle",
		EntityID: toggle.Name,
		Meta:     map[string]any{"enabled": strconv.FormatBool(toggle.Enabled)},
	}
	if err := s.sink.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", entry.Action), slog.Any("error", err))
	}
	return toggle, nil
}

func (s *Service) writeCache(ctx context.Context, name string, enabled bool) {
	if s.cache == nil {
		return
	}
	state := "0"
	if enabled {
		state = "1"
	}
	if err := s.cache.Set(ctx, cacheKey(name), state, s.ttl).Err(); err != nil && s.logger != nil {
		s.logger.Warn("feature cache write", slog.String("feature", name), slog.Any("error", err))
	}
}
