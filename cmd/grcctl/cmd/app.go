package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/jrsteele09/go-grc-client/bcp"
	"github.com/jrsteele09/go-grc-client/consent"
	"github.com/jrsteele09/go-grc-client/datacache"
	"github.com/jrsteele09/go-grc-client/endpoints"
	"github.com/jrsteele09/go-grc-client/httpclient"
	"github.com/jrsteele09/go-grc-client/internal/config"
	"github.com/jrsteele09/go-grc-client/session"
	"github.com/jrsteele09/go-grc-client/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type app struct {
	cfg      config.Config
	resolver *endpoints.Resolver
	store    storage.Store
	manager  *session.Manager
	client   *httpclient.Client
	tprm     *httpclient.Client
	gate     *consent.Gate
	bcp      *bcp.API
	caches   []*datacache.Service
	closers  []func() error
}

var current *app

// getApp builds the client stack once per process.
func getApp(ctx context.Context) (*app, error) {
	if current != nil {
		return current, nil
	}
	a, err := newApp(ctx)
	if err != nil {
		return nil, err
	}
	current = a
	return a, nil
}

func closeApp() {
	if current == nil {
		return
	}
	current.close()
	current = nil
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.GetLogLevel())
	return cfg, nil
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.WarnLevel
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, resolver: endpoints.New(os.Getenv)}

	if a.store, err = a.openStore(ctx); err != nil {
		return nil, err
	}

	mw := []httpclient.Middleware{httpclient.RequestID(), httpclient.Logging(log.Logger)}
	if rps := cfg.GetMaxRequestsPerSecond(); rps > 0 {
		mw = append(mw, httpclient.RateLimit(rate.NewLimiter(rate.Limit(rps), rps)))
	}
	mw = append(mw, httpclient.UserIDParam(a.store))
	newRaw := func(baseURL string) *httpclient.Client {
		return httpclient.New(baseURL,
			httpclient.WithTimeout(cfg.GetRequestTimeout()),
			httpclient.WithUserAgent(cfg.GetUserAgent()),
			httpclient.WithLogger(log.Logger),
			httpclient.WithMiddleware(mw...),
		)
	}
	raw := newRaw(a.resolver.ServerURL())

	a.manager = session.New(raw, a.store,
		session.WithLogger(log.Logger),
		session.WithRefreshThreshold(cfg.GetRefreshThreshold()),
		session.WithRefreshInterval(cfg.GetRefreshInterval()),
		session.WithMaxRefreshAttempts(cfg.GetMaxRefreshAttempts()),
	)
	a.client = a.manager.AuthenticatedClient()
	a.caches = datacache.Defaults(a.client, datacache.WithLogger(log.Logger))
	for _, c := range a.caches {
		c.Register(a.manager)
	}
	a.gate = consent.New(a.client, a.store,
		consent.WithUserAgent(cfg.GetUserAgent()),
		consent.WithLogger(log.Logger),
	)
	a.tprm = a.client
	if tprmURL := a.resolver.TPRMServerURL(); tprmURL != a.resolver.ServerURL() {
		a.tprm = a.manager.Authenticate(newRaw(tprmURL))
	}
	a.bcp = bcp.New(a.tprm)

	a.manager.Resume(ctx)
	return a, nil
}

func (a *app) openStore(ctx context.Context) (storage.Store, error) {
	kind := a.cfg.GetStoreKind()
	if storeKind != "" {
		kind = config.StoreKind(storeKind)
	}

	switch kind {
	case config.StoreMemory:
		return storage.NewMemoryStore(), nil
	case config.StoreRedis:
		rs, err := storage.NewRedisStoreFromURL(ctx, a.cfg.GetRedisURL(), a.cfg.GetRedisPrefix())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rs.Close)
		return rs, nil
	case config.StoreFile:
		var opts []storage.FileStoreOption
		if p := a.cfg.GetStorePassphrase(); p != "" {
			opts = append(opts, storage.WithCodec(storage.NewPassphraseCodec(p)))
		}
		return storage.NewFileStore(a.cfg.GetStorePath(), opts...)
	default:
		return nil, errors.Errorf("unknown store %q", kind)
	}
}

func (a *app) close() {
	a.manager.StopPeriodicRefresh()
	a.manager.WaitPrefetch()
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Err(err).Msg("close failed")
		}
	}
}
