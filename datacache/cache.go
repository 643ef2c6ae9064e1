// Package datacache keeps the GRC data sets warmed after login in expirable
// LRU caches and drops them when the session is cleared.
package datacache

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jrsteele09/go-grc-client/httpclient"
	"github.com/jrsteele09/go-grc-client/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTTL  = 30 * time.Minute
	DefaultSize = 64
)

// DefaultResources are the data sets fetched after login, keyed by name.
var DefaultResources = map[string]string{
	"risk":         "/api/risk/",
	"incident":     "/api/incident/",
	"tree":         "/api/frameworks/",
	"compliance":   "/api/compliance/",
	"integrations": "/api/integrations/",
}

// Stats is a point-in-time view of a Service's cache.
type Stats struct {
	Name      string
	Entries   int
	Hits      int
	Misses    int
	LastFetch time.Time
}

// Service caches a fixed set of backend resources for one data domain.
// Entries expire after the configured TTL and are dropped on logout.
type Service struct {
	name      string
	client    *httpclient.Client
	resources map[string]string
	ttl       time.Duration
	size      int
	logger    zerolog.Logger
	cache     *expirable.LRU[string, json.RawMessage]

	lock      sync.Mutex
	hits      int
	misses    int
	lastFetch time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTTL sets how long a fetched resource stays cached.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithSize bounds the number of cached resources.
func WithSize(size int) Option {
	return func(s *Service) {
		s.size = size
	}
}

// WithLogger sets the logger. Defaults to the global zerolog logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService caches the resources (key to API path) fetched through client.
func NewService(name string, client *httpclient.Client, resources map[string]string, opts ...Option) *Service {
	s := &Service{
		name:      name,
		client:    client,
		resources: resources,
		ttl:       DefaultTTL,
		size:      DefaultSize,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = expirable.NewLRU[string, json.RawMessage](s.size, nil, s.ttl)
	return s
}

// Defaults builds one service per entry of DefaultResources.
func Defaults(client *httpclient.Client, opts ...Option) []*Service {
	names := make([]string, 0, len(DefaultResources))
	for name := range DefaultResources {
		names = append(names, name)
	}
	sort.Strings(names)

	services := make([]*Service, 0, len(names))
	for _, name := range names {
		services = append(services, NewService(name, client, map[string]string{name: DefaultResources[name]}, opts...))
	}
	return services
}

// Name is the prefetcher and cleanup name the service registers under.
func (s *Service) Name() string {
	return s.name
}

// Fetch loads every resource in parallel. Resources that succeed are cached
// even when another one fails.
func (s *Service) Fetch(ctx context.Context) error {
	var g errgroup.Group
	for key, path := range s.resources {
		g.Go(func() error {
			resp, err := s.client.Get(ctx, path)
			if err != nil {
				return errors.Wrapf(err, "Service.Fetch %s", key)
			}
			s.cache.Add(key, resp.JSON())
			return nil
		})
	}
	err := g.Wait()

	s.lock.Lock()
	s.lastFetch = time.Now()
	s.lock.Unlock()

	s.logger.Debug().Str("cache", s.name).Int("entries", s.cache.Len()).Msg("data fetched")
	return err
}

// Get returns the cached body for key, if present and not expired.
func (s *Service) Get(key string) (json.RawMessage, bool) {
	v, ok := s.cache.Get(key)

	s.lock.Lock()
	defer s.lock.Unlock()
	if ok {
		s.hits++
	} else {
		s.misses++
	}
	return v, ok
}

// Stats returns the entry count, hit and miss counters and last fetch time.
func (s *Service) Stats() Stats {
	s.lock.Lock()
	defer s.lock.Unlock()
	return Stats{
		Name:      s.name,
		Entries:   s.cache.Len(),
		Hits:      s.hits,
		Misses:    s.misses,
		LastFetch: s.lastFetch,
	}
}

// Clear drops every cached resource. The counters are kept.
func (s *Service) Clear(_ context.Context) error {
	s.cache.Purge()

	s.lock.Lock()
	defer s.lock.Unlock()
	s.lastFetch = time.Time{}
	return nil
}

// Register hooks the service into the session: it is fetched after login and
// cleared with the session.
func (s *Service) Register(mgr *session.Manager) {
	mgr.RegisterPrefetcher(s.name, func(ctx context.Context, _ *session.User) error {
		return s.Fetch(ctx)
	})
	mgr.RegisterCleanup(s.name, s.Clear)
}
