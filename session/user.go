package session

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	apperrors "github.com/jrsteele09/go-grc-client/internal/errors"
	"github.com/jrsteele09/go-grc-client/storage"
	"github.com/pkg/errors"
)

// User is the profile the backend returns on login.
type User struct {
	UserID          int64           `json:"UserId"`
	UserName        string          `json:"UserName"`
	Email           string          `json:"Email"`
	FirstName       string          `json:"FirstName"`
	LastName        string          `json:"LastName"`
	IsActive        json.RawMessage `json:"IsActive,omitempty"`
	ConsentAccepted json.RawMessage `json:"consent_accepted,omitempty"`
	LicenseKey      string          `json:"license_key,omitempty"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// sessionUser is the profile shape of the cookie-session login endpoint.
type sessionUser struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (s sessionUser) toUser() User {
	return User{
		UserID:    s.ID,
		UserName:  s.Username,
		Email:     s.Email,
		FirstName: s.FirstName,
		LastName:  s.LastName,
	}
}

func decodeUser(raw []byte) (*User, error) {
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, errors.Wrap(err, "decode user")
	}
	if u.UserID == 0 {
		var su sessionUser
		if err := json.Unmarshal(raw, &su); err == nil && su.ID != 0 {
			u = su.toUser()
		}
	}
	return &u, nil
}

// CurrentUser returns the stored profile or ErrNotAuthenticated.
func (m *Manager) CurrentUser(ctx context.Context) (*User, error) {
	raw, err := m.store.Get(ctx, storage.KeyUser)
	if err != nil {
		return nil, errors.Wrap(err, "Manager.CurrentUser")
	}
	if raw == "" {
		return nil, apperrors.ErrNotAuthenticated
	}
	return decodeUser([]byte(raw))
}

// storeProfile writes the raw profile JSON and the derived convenience keys.
func (m *Manager) storeProfile(ctx context.Context, raw json.RawMessage, u *User) error {
	return m.setAll(ctx,
		storage.KeyUser, string(raw),
		storage.KeyUserID, strconv.FormatInt(u.UserID, 10),
		storage.KeyUserEmail, u.Email,
		storage.KeyUserName, u.UserName,
		storage.KeyUserFullName, u.FirstName+" "+u.LastName,
		storage.KeyIsAuthenticated, "true",
		storage.KeyIsLoggedIn, "true",
	)
}

// setAll stores alternating key, value pairs.
func (m *Manager) setAll(ctx context.Context, kv ...string) error {
	for i := 0; i+1 < len(kv); i += 2 {
		if err := m.store.Set(ctx, kv[i], kv[i+1]); err != nil {
			return errors.Wrapf(err, "store %s", kv[i])
		}
	}
	return nil
}
