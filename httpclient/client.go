// Package httpclient is a thin JSON client for the GRC backend: a base URL,
// shared default headers, a cookie policy and a middleware chain.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-grc-client/endpoints"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderAccept        = "Accept"
	HeaderUserAgent     = "User-Agent"

	contentTypeJSON = "application/json"
)

// defaultHeaders is shared by a client and every client derived from it with With.
type defaultHeaders struct {
	lock sync.RWMutex
	h    http.Header
}

// Client is a JSON HTTP client bound to one base URL. Clients derived with
// With share the transport, cookie jar and default headers.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	headers     *defaultHeaders
	middleware  []Middleware
	credentials bool
	logger      zerolog.Logger
	handler     Handler
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every request. Zero, the default, means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHeader sets a default header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.h.Set(key, value)
	}
}

// WithUserAgent sets the default User-Agent header.
func WithUserAgent(ua string) Option {
	return WithHeader(HeaderUserAgent, ua)
}

// WithCredentials keeps cookies between requests and echoes the CSRF cookie
// back as a header.
func WithCredentials(enabled bool) Option {
	return func(c *Client) {
		c.credentials = enabled
	}
}

// WithHTTPClient uses a copy of hc as the underlying client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		copied := *hc
		c.httpClient = &copied
	}
}

// WithMiddleware appends mw to the chain. The first middleware runs first.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, mw...)
	}
}

// WithLogger sets the logger. Defaults to the global zerolog logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for baseURL. Cookies and the CSRF header are
// handled unless WithCredentials(false) is passed.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		headers: &defaultHeaders{h: http.Header{
			HeaderContentType: []string{contentTypeJSON},
			HeaderAccept:      []string{contentTypeJSON},
		}},
		credentials: true,
		logger:      log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.credentials && c.httpClient.Jar == nil {
		// cookiejar.New only fails on a bad PublicSuffixList, and none is passed.
		jar, _ := cookiejar.New(nil)
		c.httpClient.Jar = jar
	}
	c.build()
	return c
}

func (c *Client) build() {
	mw := append([]Middleware{}, c.middleware...)
	if c.credentials {
		mw = append(mw, XSRF(c.httpClient.Jar, DefaultXSRFCookieName, DefaultXSRFHeaderName))
	}
	c.handler = ChainMiddleware(c.httpClient.Do, mw...)
}

// With returns a client that shares this client's transport, cookies and
// default headers, with mw wrapped around the existing chain.
func (c *Client) With(mw ...Middleware) *Client {
	derived := &Client{
		baseURL:     c.baseURL,
		httpClient:  c.httpClient,
		headers:     c.headers,
		middleware:  append(append([]Middleware{}, mw...), c.middleware...),
		credentials: c.credentials,
		logger:      c.logger,
	}
	derived.build()
	return derived
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Jar returns the cookie jar, nil without credentials.
func (c *Client) Jar() http.CookieJar {
	return c.httpClient.Jar
}

// SetDefaultHeader sets a header on every later request of this client and
// the clients derived from it.
func (c *Client) SetDefaultHeader(key, value string) {
	c.headers.lock.Lock()
	defer c.headers.lock.Unlock()
	c.headers.h.Set(key, value)
}

func (c *Client) DelDefaultHeader(key string) {
	c.headers.lock.Lock()
	defer c.headers.lock.Unlock()
	c.headers.h.Del(key)
}

func (c *Client) DefaultHeader(key string) string {
	c.headers.lock.RLock()
	defer c.headers.lock.RUnlock()
	return c.headers.h.Get(key)
}

// URL resolves path against the base URL. Absolute URLs pass through.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return endpoints.JoinURL(c.baseURL, path)
}

// Get is Do with GET and no body.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, opts...)
}

func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, opts...)
}

func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, opts...)
}

func (c *Client) Patch(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, path, body, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, opts...)
}

// Do sends a request through the middleware chain and reads the whole body.
// A non-2xx status is returned as a *StatusError alongside the response.
func (c *Client) Do(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	ro := requestOptions{}
	for _, opt := range opts {
		opt(&ro)
	}

	u, err := url.Parse(c.URL(path))
	if err != nil {
		return nil, errors.Wrapf(err, "Client.Do parse %s", path)
	}
	if len(ro.query) > 0 {
		q := u.Query()
		for k, vs := range ro.query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	payload, err := encodeBody(body)
	if err != nil {
		return nil, errors.Wrap(err, "Client.Do encode body")
	}
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, errors.Wrap(err, "Client.Do new request")
	}

	c.headers.lock.RLock()
	for k, vs := range c.headers.h {
		req.Header[k] = append([]string(nil), vs...)
	}
	c.headers.lock.RUnlock()
	for k, v := range ro.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.handler(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, u.Path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s read body", method, u.Path)
	}
	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, newStatusError(method, u.Path, resp.StatusCode, data)
	}
	return out, nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	case string:
		return []byte(b), nil
	case io.Reader:
		return io.ReadAll(b)
	default:
		return json.Marshal(b)
	}
}

type requestOptions struct {
	query   url.Values
	headers map[string]string
}

// RequestOption adjusts a single request.
type RequestOption func(*requestOptions)

// WithQuery adds params to the request URL. Nil is ignored.
func WithQuery(params url.Values) RequestOption {
	return func(o *requestOptions) {
		if params == nil {
			return
		}
		if o.query == nil {
			o.query = url.Values{}
		}
		for k, vs := range params {
			o.query[k] = append(o.query[k], vs...)
		}
	}
}

// WithRequestHeader sets a header on this request only.
func WithRequestHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}

// WithBearer sets the Authorization header for one request.
func WithBearer(token string) RequestOption {
	return WithRequestHeader(HeaderAuthorization, "Bearer "+token)
}
