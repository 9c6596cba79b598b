package client

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/imroc/req/v3"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

const refreshPath = "/auth/refresh/"

// TokenStore is the session the client reads tokens from. The client never
// imports the session package; it is handed one at construction.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	SetTokens(ctx context.Context, access, refresh string) error
	Clear(ctx context.Context) error
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	// Language returns the Accept-Language value for each request; optional.
	Language func() string
	Debug    bool
}

type Client struct {
	http     *req.Client
	tokens   TokenStore
	language func() string
	refresh  singleflight.Group

	// bounds a refresh that no caller can cancel
	refreshTimeout time.Duration
}

func New(cfg Config, tokens TokenStore) *Client {
	h := req.C().
		SetBaseURL(cfg.BaseURL).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal).
		SetCommonHeader("Accept", "application/json").
		SetUserAgent("ielts-learner/1")
	if cfg.Timeout > 0 {
		h.SetTimeout(cfg.Timeout)
	}
	if cfg.Debug {
		h.EnableDumpAllWithoutResponseBody()
	}
	rt := cfg.Timeout
	if rt <= 0 {
		rt = 30 * time.Second
	}
	return &Client{http: h, tokens: tokens, language: cfg.Language, refreshTimeout: rt}
}

// Request describes one API call. The client may send it twice: once, and
// again after a token refresh.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Result any
	// Anonymous requests carry no bearer token and never trigger a refresh.
	Anonymous bool

	retried bool
}

// Do sends r. A 401 on a request that has not been retried triggers exactly
// one refresh; on success the request is replayed once with the new token,
// on failure the session is cleared and ErrSessionExpired is returned.
// Any other non-2xx status comes back as *APIError.
func (c *Client) Do(ctx context.Context, r *Request) error {
	resp, body, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized && !r.Anonymous && !r.retried {
		r.retried = true
		if err := c.refreshTokens(ctx); err != nil {
			return err
		}
		if resp, body, err = c.send(ctx, r); err != nil {
			return err
		}
	}
	if resp.StatusCode/100 != 2 {
		return newAPIError(resp.StatusCode, body)
	}
	if r.Result == nil || len(body) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(body, r.Result), "failed to decode %s %s", r.Method, r.Path)
}

func (c *Client) send(ctx context.Context, r *Request) (*req.Response, []byte, error) {
	rq := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString())
	if c.language != nil {
		if lang := c.language(); lang != "" {
			rq.SetHeader("Accept-Language", lang)
		}
	}
	if !r.Anonymous {
		if tok := c.tokens.AccessToken(); tok != "" {
			rq.SetBearerAuthToken(tok)
		}
	}
	if len(r.Query) > 0 {
		rq.SetQueryString(r.Query.Encode())
	}
	if r.Body != nil {
		rq.SetBodyJsonMarshal(r.Body)
	}
	resp, err := rq.Send(r.Method, r.Path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%s %s failed", r.Method, r.Path)
	}
	body, err := resp.ToBytes()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read body of %s %s", r.Method, r.Path)
	}
	return resp, body, nil
}

// refreshTokens coalesces concurrent refreshes into one backend call; every
// caller waits for it before replaying its own request. The exchange is
// detached from the caller's context, so one caller giving up does not fail
// the refresh for the others.
func (c *Client) refreshTokens(ctx context.Context) error {
	ch := c.refresh.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		return nil, c.exchangeRefreshToken(rctx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for token refresh")
	}
}

// exchangeRefreshToken clears the session only when there is no refresh
// token or the backend rejected it. Transport failures and 5xx leave the
// session alone.
func (c *Client) exchangeRefreshToken(ctx context.Context) error {
	rt := c.tokens.RefreshToken()
	if rt == "" {
		return c.expire(ctx, errors.New("no refresh token"))
	}
	var out struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	err := c.Do(ctx, &Request{
		Method:    http.MethodPost,
		Path:      refreshPath,
		Body:      map[string]string{"refresh": rt},
		Result:    &out,
		Anonymous: true,
	})
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Status/100 == 4:
		return c.expire(ctx, err)
	case err != nil:
		return errors.Wrap(err, "token refresh failed")
	case out.Access == "":
		return c.expire(ctx, errors.New("refresh response carried no access token"))
	}
	return errors.Wrap(c.tokens.SetTokens(ctx, out.Access, out.Refresh), "failed to store refreshed token")
}

func (c *Client) expire(ctx context.Context, cause error) error {
	if cerr := c.tokens.Clear(ctx); cerr != nil {
		log.Printf("client: clear session after failed refresh: %v", cerr)
	}
	return errors.Wrapf(ErrSessionExpired, "token refresh failed: %v", cause)
}

func (c *Client) Get(ctx context.Context, path string, q url.Values, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: q, Result: out})
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body, Result: out})
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body, Result: out})
}

// PostAnonymous is for endpoints that must not carry or refresh a token (login, register).
func (c *Client) PostAnonymous(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body, Result: out, Anonymous: true})
}
