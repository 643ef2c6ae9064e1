package consent

import (
	"context"
	"sync"
)

// Checker is the part of Gate the Manager needs.
type Checker interface {
	CheckConsentRequired(ctx context.Context, actionType string) Result
}

var _ Checker = (*Gate)(nil)

// Pending is an action waiting for the user to accept consent.
type Pending struct {
	ActionType string
	Config     *Config
}

// Manager holds at most one action deferred until consent is accepted.
type Manager struct {
	checker  Checker
	lock     sync.Mutex
	pending  *Pending
	callback func(context.Context) error
}

// NewManager creates a Manager that asks checker before running an action.
func NewManager(checker Checker) *Manager {
	return &Manager{checker: checker}
}

// ExecuteWithConsent runs callback straight away unless consent is required,
// in which case the callback is kept until OnConsentAccepted. It reports
// whether the callback ran.
func (m *Manager) ExecuteWithConsent(ctx context.Context, actionType string, callback func(context.Context) error) (bool, error) {
	res := m.checker.CheckConsentRequired(ctx, actionType)
	if res.Required && res.Config != nil {
		m.lock.Lock()
		m.pending = &Pending{ActionType: actionType, Config: res.Config}
		m.callback = callback
		m.lock.Unlock()
		return false, nil
	}
	return true, callback(ctx)
}

// OnConsentAccepted runs the deferred callback once and forgets it.
func (m *Manager) OnConsentAccepted(ctx context.Context) error {
	m.lock.Lock()
	callback := m.callback
	m.pending = nil
	m.callback = nil
	m.lock.Unlock()
	if callback == nil {
		return nil
	}
	return callback(ctx)
}

// Pending returns the action waiting for consent, if any.
func (m *Manager) Pending() (Pending, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.pending == nil {
		return Pending{}, false
	}
	return *m.pending, true
}

// Clear drops the deferred action without running it.
func (m *Manager) Clear() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.pending = nil
	m.callback = nil
}
