package session

import (
	"context"
	"time"
)

// StartPeriodicRefresh checks the access token every refresh interval while
// the session is authenticated. A running timer is replaced.
func (m *Manager) StartPeriodicRefresh(ctx context.Context) {
	if !m.IsAuthenticated(ctx) {
		return
	}

	m.lock.Lock()
	m.stopTimerLocked()
	m.timerGen++
	gen := m.timerGen
	stop := make(chan struct{})
	m.timerStop = stop
	interval := m.refreshInterval
	m.lock.Unlock()

	go m.runTimer(ctx, gen, stop, interval)
	m.logger.Debug().Dur("interval", interval).Msg("periodic token refresh started")
}

// StopPeriodicRefresh stops the background refresh. Once it returns no
// further tick starts a refresh.
func (m *Manager) StopPeriodicRefresh() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.stopTimerLocked()
}

func (m *Manager) stopTimerLocked() {
	if m.timerStop != nil {
		close(m.timerStop)
		m.timerStop = nil
	}
	m.timerGen++
}

func (m *Manager) timerActive(gen uint64) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.timerGen == gen && !m.loggingOut
}

func (m *Manager) runTimer(ctx context.Context, gen uint64, stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.timerActive(gen) {
				return
			}
			// Admission re-checks the timer generation under the lock, so a
			// tick racing StopPeriodicRefresh cannot start a refresh.
			m.checkAndRefresh(ctx, func() bool { return m.timerGen == gen })
		}
	}
}

// RefreshTimerRunning reports whether the periodic refresher is active.
func (m *Manager) RefreshTimerRunning() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.timerStop != nil
}
