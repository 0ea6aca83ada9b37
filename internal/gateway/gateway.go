// Package gateway is the single HTTP entry point to the remote API. It attaches the
// stored credential to every request and applies one failure policy to every response.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/and161185/learnhub-client/internal/errs"
	"github.com/and161185/learnhub-client/internal/routes"
	"github.com/and161185/learnhub-client/internal/storage"
	"github.com/and161185/learnhub-client/internal/ui"
)

const maxBody = 4 << 20

// DefaultAuthEndpoints are the calls whose 401 belongs to the session store, not the gateway.
var DefaultAuthEndpoints = []string{"/login", "/register", "/forgot-password", "/reset-password"}

// Request describes one API call. Path is relative to the gateway base URL.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Header      http.Header
	Body        []byte
	ContentType string
}

// Response is a successful (2xx) reply.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// JSON builds a request with a JSON body; v may be nil.
func JSON(method, path string, v any) (*Request, error) {
	r := &Request{Method: method, Path: path}
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		r.Body = b
		r.ContentType = "application/json"
	}
	return r, nil
}

// FilePart is one file of a multipart request.
type FilePart struct {
	Field    string
	Filename string
	Content  io.Reader
}

// Multipart builds a POST multipart/form-data request.
func Multipart(path string, fields map[string]string, files ...FilePart) (*Request, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	for _, f := range files {
		if f.Content == nil {
			return nil, fmt.Errorf("%w: file %q has no content", errs.ErrInvalidInput, f.Field)
		}
		w, err := mw.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(w, f.Content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return &Request{Method: http.MethodPost, Path: path, Body: buf.Bytes(), ContentType: mw.FormDataContentType()}, nil
}

// Gateway wraps an http.Client with the outbound and inbound interception policy.
type Gateway struct {
	base          string
	hc            *http.Client
	store         storage.Storage
	routes        *routes.Table
	loc           ui.Location
	nav           ui.Navigator
	notifier      ui.Notifier
	log           *zap.Logger
	metrics       *Metrics
	limiter       *rate.Limiter
	authEndpoints []string

	mu      sync.RWMutex
	onExpry []func(context.Context)
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(hc *http.Client) Option { return func(g *Gateway) { g.hc = hc } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(g *Gateway) { g.log = l } }

// WithLocation sets where the user currently is.
func WithLocation(l ui.Location) Option { return func(g *Gateway) { g.loc = l } }

// WithNavigator sets the redirect sink.
func WithNavigator(n ui.Navigator) Option { return func(g *Gateway) { g.nav = n } }

// WithNotifier sets the notification sink.
func WithNotifier(n ui.Notifier) Option { return func(g *Gateway) { g.notifier = n } }

// WithMetrics enables request metrics.
func WithMetrics(m *Metrics) Option { return func(g *Gateway) { g.metrics = m } }

// WithRateLimit throttles outbound requests; a non-positive limit disables throttling.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(g *Gateway) {
		if limit > 0 {
			g.limiter = rate.NewLimiter(limit, burst)
		}
	}
}

// WithAuthEndpoints overrides DefaultAuthEndpoints.
func WithAuthEndpoints(paths ...string) Option {
	return func(g *Gateway) { g.authEndpoints = paths }
}

type nopNotifier struct{}

func (nopNotifier) Notify(ui.Notification) {}

type nopNavigator struct{}

func (nopNavigator) Navigate(context.Context, string) {}

// New constructs a gateway for baseURL. store is read for the raw credential and cleared on 401;
// rt decides whether a 401 is announced.
func New(baseURL string, store storage.Storage, rt *routes.Table, opts ...Option) (*Gateway, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", errs.ErrInvalidInput, baseURL)
	}
	g := &Gateway{
		base:          strings.TrimRight(u.String(), "/"),
		hc:            &http.Client{Timeout: 30 * time.Second},
		store:         store,
		routes:        rt,
		loc:           ui.NewRouter("/"),
		nav:           nopNavigator{},
		notifier:      nopNotifier{},
		log:           zap.NewNop(),
		authEndpoints: DefaultAuthEndpoints,
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// OnSessionExpired registers a hook run after the gateway clears the credential on a 401.
// The hook receives a context marked with WithRetried.
func (g *Gateway) OnSessionExpired(fn func(context.Context)) {
	g.mu.Lock()
	g.onExpry = append(g.onExpry, fn)
	g.mu.Unlock()
}

func (g *Gateway) expiredHooks() []func(context.Context) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.onExpry)
}

// Do sends r. Non-2xx replies and transport failures come back as *Error after the
// matching side effect (notification, credential clear, redirect) has run.
// A cancelled ctx is returned as ctx.Err() without side effects.
func (g *Gateway) Do(ctx context.Context, r *Request) (*Response, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	hr, reqID, err := g.build(ctx, r)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := g.hc.Do(hr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e := &Error{Kind: KindNetwork, Method: r.Method, Path: r.Path, Err: err}
		g.finish(ctx, r, reqID, start, e)
		return nil, e
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e := &Error{Kind: KindNetwork, Method: r.Method, Path: r.Path, Status: resp.StatusCode, Err: err}
		g.finish(ctx, r, reqID, start, e)
		return nil, e
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		g.finish(ctx, r, reqID, start, &Error{Status: resp.StatusCode})
		return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
	}
	e := newStatusError(r.Method, r.Path, resp.StatusCode, body)
	g.finish(ctx, r, reqID, start, e)
	return nil, e
}

// finish logs, records metrics and runs the failure policy. A result with an empty Kind is a success.
func (g *Gateway) finish(ctx context.Context, r *Request, reqID string, start time.Time, res *Error) {
	dur := time.Since(start)
	outcome := "ok"
	if res.Kind != "" {
		outcome = string(res.Kind)
	}
	g.log.Debug("http",
		zap.String("method", r.Method),
		zap.String("path", r.Path),
		zap.Int("status", res.Status),
		zap.String("outcome", outcome),
		zap.Duration("dur", dur),
		zap.String("request_id", reqID),
	)
	g.metrics.observe(r.Method, outcome, dur)
	if res.Kind != "" {
		g.handle(ctx, res)
	}
}

// build creates the outbound request and attaches the stored credential, if any.
func (g *Gateway) build(ctx context.Context, r *Request) (*http.Request, string, error) {
	target := g.base + "/" + strings.TrimLeft(r.Path, "/")
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	hr, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, "", err
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			hr.Header.Add(k, v)
		}
	}
	if r.ContentType != "" {
		hr.Header.Set("Content-Type", r.ContentType)
	}
	hr.Header.Set("Accept", "application/json")

	id, err := uuid.NewV4()
	if err != nil {
		return nil, "", err
	}
	reqID := id.String()
	hr.Header.Set("X-Request-ID", reqID)

	tok, err := g.store.Get(ctx, storage.KeyToken)
	switch {
	case err == nil && len(tok) > 0:
		(&oauth2.Token{AccessToken: string(tok), TokenType: "Bearer"}).SetAuthHeader(hr)
	case err != nil && !errors.Is(err, errs.ErrNotFound):
		g.log.Warn("read credential", zap.Error(err))
	}
	return hr, reqID, nil
}

// Get issues a GET and returns the body.
func (g *Gateway) Get(ctx context.Context, path string) (*Response, error) {
	return g.Do(ctx, &Request{Method: http.MethodGet, Path: path})
}

// PostJSON issues a POST with a JSON body.
func (g *Gateway) PostJSON(ctx context.Context, path string, v any) (*Response, error) {
	r, err := JSON(http.MethodPost, path, v)
	if err != nil {
		return nil, err
	}
	return g.Do(ctx, r)
}
