package httpclient_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/go-grc-client/httpclient"
	"github.com/jrsteele09/go-grc-client/storage"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type capturedRequest struct {
	method  string
	path    string
	query   url.Values
	header  http.Header
	payload []byte
}

type recorder struct {
	lock     sync.Mutex
	requests []capturedRequest
}

func (r *recorder) get(i int) capturedRequest {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.requests[i]
}

func (r *recorder) count() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.requests)
}

func setupTestServer(t *testing.T, status int, response string) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.lock.Lock()
		rec.requests = append(rec.requests, capturedRequest{
			method:  r.Method,
			path:    r.URL.Path,
			query:   r.URL.Query(),
			header:  r.Header.Clone(),
			payload: body,
		})
		rec.lock.Unlock()
		if r.URL.Path == "/api/csrf/" {
			http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "csrf-123", Path: "/"})
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestDefaultHeadersAndJSONBody(t *testing.T) {
	srv, captured := setupTestServer(t, http.StatusOK, `{"status":"success"}`)
	c := httpclient.New(srv.URL + "/")

	resp, err := c.Post(context.Background(), "/api/items/", map[string]string{"name": "x"},
		httpclient.WithQuery(url.Values{"page": {"2"}}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Status string `json:"status"`
	}
	require.NoError(t, resp.Decode(&out))
	require.Equal(t, "success", out.Status)

	require.Equal(t, 1, captured.count())
	got := captured.get(0)
	require.Equal(t, http.MethodPost, got.method)
	require.Equal(t, "/api/items/", got.path)
	require.Equal(t, "2", got.query.Get("page"))
	require.Equal(t, "application/json", got.header.Get("Content-Type"))
	require.Equal(t, "application/json", got.header.Get("Accept"))
	require.JSONEq(t, `{"name":"x"}`, string(got.payload))
}

func TestDefaultHeaderMutation(t *testing.T) {
	srv, captured := setupTestServer(t, http.StatusOK, `{}`)
	c := httpclient.New(srv.URL)
	derived := c.With()

	c.SetDefaultHeader(httpclient.HeaderAuthorization, "Bearer abc")
	_, err := derived.Get(context.Background(), "/api/a/")
	require.NoError(t, err)
	require.Equal(t, "Bearer abc", captured.get(0).header.Get("Authorization"))

	c.DelDefaultHeader(httpclient.HeaderAuthorization)
	_, err = derived.Get(context.Background(), "/api/a/")
	require.NoError(t, err)
	require.Empty(t, captured.get(1).header.Get("Authorization"))
}

func TestStatusError(t *testing.T) {
	srv, _ := setupTestServer(t, http.StatusBadRequest, `{"status":"error","message":"bad things"}`)
	c := httpclient.New(srv.URL)

	resp, err := c.Get(context.Background(), "/api/broken/")
	require.Error(t, err)
	require.NotNil(t, resp)
	require.True(t, httpclient.IsStatus(err, http.StatusBadRequest))

	var se *httpclient.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "bad things", se.Message)
}

func TestXSRFCookieEchoed(t *testing.T) {
	srv, captured := setupTestServer(t, http.StatusOK, `{}`)
	c := httpclient.New(srv.URL, httpclient.WithCredentials(true))

	_, err := c.Get(context.Background(), "/api/csrf/")
	require.NoError(t, err)
	_, err = c.Post(context.Background(), "/api/items/", nil)
	require.NoError(t, err)

	require.Empty(t, captured.get(0).header.Get("X-CSRFToken"))
	require.Equal(t, "csrf-123", captured.get(1).header.Get("X-CSRFToken"))
}

func TestMiddlewareOrder(t *testing.T) {
	srv, _ := setupTestServer(t, http.StatusOK, `{}`)
	var order []string
	mark := func(name string) httpclient.Middleware {
		return func(next httpclient.Handler) httpclient.Handler {
			return func(req *http.Request) (*http.Response, error) {
				order = append(order, name)
				return next(req)
			}
		}
	}

	c := httpclient.New(srv.URL, httpclient.WithMiddleware(mark("inner")))
	outer := c.With(mark("first"), mark("second"))
	_, err := outer.Get(context.Background(), "/api/x/")
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second", "inner"}, order)
}

func TestRequestIDAndUserIDParam(t *testing.T) {
	srv, captured := setupTestServer(t, http.StatusOK, `{}`)
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), storage.KeyUserID, "42"))

	c := httpclient.New(srv.URL, httpclient.WithMiddleware(
		httpclient.RequestID(),
		httpclient.UserIDParam(store),
		httpclient.RateLimit(rate.NewLimiter(rate.Inf, 1)),
	))

	_, err := c.Get(context.Background(), "/api/risk/")
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "/api/risk/", httpclient.WithQuery(url.Values{"user_id": {"7"}}))
	require.NoError(t, err)

	require.NotEmpty(t, captured.get(0).header.Get("X-Request-ID"))
	require.Equal(t, "42", captured.get(0).query.Get("user_id"))
	require.Equal(t, []string{"7"}, captured.get(1).query["user_id"])
}

func TestRawBodyPassThrough(t *testing.T) {
	srv, captured := setupTestServer(t, http.StatusOK, `{"ok":true}`)
	c := httpclient.New(srv.URL)

	resp, err := c.Put(context.Background(), "/api/raw/", json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(resp.JSON()))
	require.JSONEq(t, `{"a":1}`, string(captured.get(0).payload))
}

func TestRateLimitHonoursContext(t *testing.T) {
	srv, _ := setupTestServer(t, http.StatusOK, `{}`)
	var calls atomic.Int32
	c := httpclient.New(srv.URL, httpclient.WithMiddleware(
		httpclient.RateLimit(rate.NewLimiter(rate.Limit(0.001), 1)),
		func(next httpclient.Handler) httpclient.Handler {
			return func(req *http.Request) (*http.Response, error) {
				calls.Add(1)
				return next(req)
			}
		},
	))

	_, err := c.Get(context.Background(), "/api/x/")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Get(ctx, "/api/x/")
	require.Error(t, err)
	require.EqualValues(t, 1, calls.Load())
}
