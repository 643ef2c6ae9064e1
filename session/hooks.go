package session

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-grc-client/storage"
	"golang.org/x/sync/errgroup"
)

type EventType string

const (
	EventLogin  EventType = "login"
	EventLogout EventType = "logout"
)

// Event is passed to listeners. User is set for EventLogin only.
type Event struct {
	Type EventType
	User *User
}

// Listener is called synchronously for every event.
type Listener func(Event)

// CleanupFunc drops data another component cached for the session.
type CleanupFunc func(ctx context.Context) error

// PrefetchFunc warms a data set right after login.
type PrefetchFunc func(ctx context.Context, user *User) error

type namedCleanup struct {
	name string
	fn   CleanupFunc
}

type namedPrefetcher struct {
	name string
	fn   PrefetchFunc
}

// Subscribe registers fn and returns a function that removes it.
func (m *Manager) Subscribe(fn Listener) func() {
	id := uuid.NewString()
	m.hooksLock.Lock()
	m.listeners[id] = fn
	m.hooksLock.Unlock()
	return func() {
		m.hooksLock.Lock()
		delete(m.listeners, id)
		m.hooksLock.Unlock()
	}
}

func (m *Manager) emit(e Event) {
	m.hooksLock.RLock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.hooksLock.RUnlock()
	for _, l := range listeners {
		l(e)
	}
}

// RegisterCleanup adds fn to the callbacks run whenever the session is cleared.
func (m *Manager) RegisterCleanup(name string, fn CleanupFunc) {
	m.hooksLock.Lock()
	defer m.hooksLock.Unlock()
	m.cleanups = append(m.cleanups, namedCleanup{name: name, fn: fn})
}

// RegisterPrefetcher adds fn to the data sets fetched in the background after
// login. A successful fetch sets the "<name>_data_fetched" flag.
func (m *Manager) RegisterPrefetcher(name string, fn PrefetchFunc) {
	m.hooksLock.Lock()
	defer m.hooksLock.Unlock()
	m.prefetchers = append(m.prefetchers, namedPrefetcher{name: name, fn: fn})
}

// WaitPrefetch blocks until any running prefetch has finished.
func (m *Manager) WaitPrefetch() {
	m.prefetchWG.Wait()
}

func (m *Manager) startPrefetch(ctx context.Context, user *User) {
	m.hooksLock.RLock()
	prefetchers := append([]namedPrefetcher(nil), m.prefetchers...)
	m.hooksLock.RUnlock()
	if len(prefetchers) == 0 {
		return
	}

	gen := m.currentGeneration()
	m.prefetchWG.Add(1)
	go func() {
		defer m.prefetchWG.Done()
		if !m.IsAuthenticated(ctx) || !m.current(gen) {
			m.logger.Debug().Msg("session ended before prefetch, skipping")
			return
		}

		start := m.now()
		var g errgroup.Group
		for _, p := range prefetchers {
			g.Go(func() error {
				if err := p.fn(ctx, user); err != nil {
					m.logger.Warn().Err(err).Str("data", p.name).Msg("prefetch failed")
					return nil
				}
				if m.current(gen) {
					_ = m.store.Set(ctx, storage.DataFetchedKey(p.name), "true")
				}
				return nil
			})
		}
		_ = g.Wait()

		if !m.current(gen) {
			return
		}
		duration := m.now().Sub(start)
		if err := m.setAll(ctx,
			storage.KeyAllDataFetched, "true",
			storage.KeyDataFetchTime, m.now().UTC().Format(time.RFC3339),
			storage.KeyDataFetchDuration, strconv.FormatInt(duration.Milliseconds(), 10),
		); err != nil {
			m.logger.Err(err).Msg("failed to record prefetch completion")
			return
		}
		m.logger.Debug().Dur("duration", duration).Int("data_sets", len(prefetchers)).Msg("prefetch complete")
	}()
}
