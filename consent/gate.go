// Package consent asks the backend whether a user action needs explicit
// consent and records acceptances. Checks fail open.
package consent

import (
	"context"
	"encoding/json"

	"github.com/jrsteele09/go-grc-client/httpclient"
	"github.com/jrsteele09/go-grc-client/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	checkPath  = "/api/consent/check/"
	acceptPath = "/api/consent/accept/"

	defaultFrameworkID = "1"
)

// Config is the backend's consent configuration for one action.
type Config struct {
	ConfigID    json.Number `json:"config_id"`
	ActionType  string      `json:"action_type"`
	ActionLabel string      `json:"action_label"`
	IsEnabled   bool        `json:"is_enabled"`
	ConsentText string      `json:"consent_text"`
	FrameworkID json.Number `json:"framework_id,omitempty"`
}

// Result is the outcome of a consent check. Config is set whenever the
// action has a consent configuration, required or not.
type Result struct {
	Required bool
	Config   *Config
}

// Gate checks and records user consent for gated actions.
type Gate struct {
	client             *httpclient.Client
	store              storage.Store
	sessionStore       storage.Store
	userAgent          string
	defaultFrameworkID string
	logger             zerolog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithSessionStore adds a second, shorter lived store consulted after the
// primary one when resolving the framework id.
func WithSessionStore(s storage.Store) Option {
	return func(g *Gate) {
		g.sessionStore = s
	}
}

// WithUserAgent overrides the user agent recorded with an acceptance.
func WithUserAgent(ua string) Option {
	return func(g *Gate) {
		g.userAgent = ua
	}
}

// WithDefaultFrameworkID sets the framework used when none is stored.
func WithDefaultFrameworkID(id string) Option {
	return func(g *Gate) {
		g.defaultFrameworkID = id
	}
}

// WithLogger sets the logger. Defaults to the global zerolog logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// New creates a Gate that calls the consent endpoints through client and
// reads the user and framework ids from store.
func New(client *httpclient.Client, store storage.Store, opts ...Option) *Gate {
	g := &Gate{
		client:             client,
		store:              store,
		userAgent:          "grc-client",
		defaultFrameworkID: defaultFrameworkID,
		logger:             log.Logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FrameworkID resolves the active framework. When nothing is stored the
// default is used and persisted.
func (g *Gate) FrameworkID(ctx context.Context) string {
	for _, key := range []string{storage.KeyFrameworkID, storage.KeySelectedFrameworkID, storage.KeyFrameworkIDLegacy} {
		if v, err := g.store.Get(ctx, key); err == nil && v != "" {
			return v
		}
	}
	if g.sessionStore != nil {
		for _, key := range []string{storage.KeyFrameworkID, storage.KeySelectedFrameworkID} {
			if v, err := g.sessionStore.Get(ctx, key); err == nil && v != "" {
				return v
			}
		}
	}
	g.logger.Warn().Str("framework_id", g.defaultFrameworkID).Msg("framework id not found in storage, using default")
	if err := g.store.Set(ctx, storage.KeyFrameworkID, g.defaultFrameworkID); err != nil {
		g.logger.Err(err).Msg("failed to persist default framework id")
	}
	return g.defaultFrameworkID
}

type checkResponse struct {
	Status   string  `json:"status"`
	Required bool    `json:"required"`
	Config   *Config `json:"config"`
}

// CheckConsentRequired never fails: a missing token, a transport error or an
// unexpected answer all mean consent is not required.
func (g *Gate) CheckConsentRequired(ctx context.Context, actionType string) Result {
	frameworkID := g.FrameworkID(ctx)
	token, err := g.store.Get(ctx, storage.KeyAccessToken)
	if err != nil || token == "" {
		g.logger.Error().Str("action", actionType).Msg("no access token for consent check")
		return Result{}
	}

	resp, err := g.client.Post(ctx, checkPath, map[string]string{
		"action_type":  actionType,
		"framework_id": frameworkID,
	}, httpclient.WithBearer(token))
	if err != nil {
		g.logger.Warn().Err(err).Str("action", actionType).Msg("consent check failed, allowing action")
		return Result{}
	}

	var cr checkResponse
	if err := resp.Decode(&cr); err != nil || cr.Status != "success" {
		g.logger.Warn().Str("action", actionType).Str("body", string(resp.Body)).Msg("unexpected consent check response, allowing action")
		return Result{}
	}
	g.logger.Debug().Str("action", actionType).Bool("required", cr.Required).Msg("consent checked")
	return Result{Required: cr.Required, Config: cr.Config}
}

type acceptRequest struct {
	UserID      json.Number `json:"user_id"`
	ConfigID    json.Number `json:"config_id"`
	ActionType  string      `json:"action_type"`
	FrameworkID *string     `json:"framework_id"`
	IPAddress   *string     `json:"ip_address"`
	UserAgent   string      `json:"user_agent"`
}

// RecordConsentAcceptance reports whether the backend stored the acceptance.
// Errors are logged and reported as false.
func (g *Gate) RecordConsentAcceptance(ctx context.Context, userID, configID json.Number, actionType string, ipAddress *string) bool {
	token, _ := g.store.Get(ctx, storage.KeyAccessToken)
	req := acceptRequest{
		UserID:     userID,
		ConfigID:   configID,
		ActionType: actionType,
		IPAddress:  ipAddress,
		UserAgent:  g.userAgent,
	}
	if fid, err := g.store.Get(ctx, storage.KeyFrameworkID); err == nil && fid != "" {
		req.FrameworkID = &fid
	}

	resp, err := g.client.Post(ctx, acceptPath, req, httpclient.WithBearer(token))
	if err != nil {
		g.logger.Err(err).Str("action", actionType).Msg("failed to record consent acceptance")
		return false
	}
	var body struct {
		Status string `json:"status"`
	}
	return resp.Decode(&body) == nil && body.Status == "success"
}
