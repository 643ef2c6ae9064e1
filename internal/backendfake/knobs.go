package backendfake

import (
	"strings"
	"time"
)

func (b *Backend) SetAccessTTL(d time.Duration) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.accessTTL = d
}

// SetOmitExpiry drops the *_expires fields from login responses.
func (b *Backend) SetOmitExpiry(omit bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.omitExpiry = omit
}

func (b *Backend) SetRotateRefresh(rotate bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.rotateRefresh = rotate
}

func (b *Backend) SetFailRefresh(fail bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.failRefresh = fail
}

func (b *Backend) SetRefreshDelay(d time.Duration) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.refreshDelay = d
}

func (b *Backend) SetFailLogout(fail bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.failLogout = fail
}

func (b *Backend) SetConsentRequired(actionType string, required bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.consent[actionType] = required
}

func (b *Backend) SetFailConsent(fail bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.failConsent = fail
}

// InvalidateAccessTokens makes every access token issued so far answer 401.
func (b *Backend) InvalidateAccessTokens() {
	b.lock.Lock()
	defer b.lock.Unlock()
	for k := range b.validAccess {
		b.validAccess[k] = false
	}
}

// Count returns how many requests hit path.
func (b *Backend) Count(path string) int {
	b.lock.Lock()
	defer b.lock.Unlock()
	n := 0
	for _, c := range b.calls {
		if c.Path == path {
			n++
		}
	}
	return n
}

// Calls returns the recorded requests whose path starts with prefix.
func (b *Backend) Calls(prefix string) []Call {
	b.lock.Lock()
	defer b.lock.Unlock()
	var out []Call
	for _, c := range b.calls {
		if strings.HasPrefix(c.Path, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (b *Backend) LastCall(prefix string) (Call, bool) {
	calls := b.Calls(prefix)
	if len(calls) == 0 {
		return Call{}, false
	}
	return calls[len(calls)-1], true
}

func (b *Backend) Accepted() []map[string]any {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]map[string]any(nil), b.accepted...)
}
