package commerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-commerce/core"
	goerrors "github.com/goliatone/go-errors"
)

type envelope struct {
	Data       json.RawMessage `json:"data"`
	Pagination *Pagination     `json:"pagination,omitempty"`
	Warnings   []APIMessage    `json:"warnings,omitempty"`
}

type apiRequest struct {
	method string
	path   string
	query  map[string]string
	body   any
	public bool
}

func (c *Client) call(ctx context.Context, req apiRequest) (envelope, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now()
	out, statusCode, err := c.execute(ctx, req)
	fields := map[string]any{
		"method":   req.method,
		"resource": resourceName(req.path),
	}
	if statusCode > 0 {
		fields["status_code"] = statusCode
	}
	c.observer.Observe(ctx, startedAt, "api_request", err, fields)
	if err != nil {
		return envelope{}, err
	}
	return out, nil
}

func (c *Client) execute(ctx context.Context, req apiRequest) (envelope, int, error) {
	target, err := c.resolve(req.path)
	if err != nil {
		return envelope{}, 0, err
	}
	transportReq := core.TransportRequest{
		Method:  req.method,
		URL:     target,
		Query:   req.query,
		Timeout: c.cfg.RequestTimeout,
	}
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return envelope{}, 0, core.MapError(fmt.Errorf("commerce: request body is invalid: %w", err))
		}
		transportReq.Body = raw
		transportReq.Headers = map[string]string{"Content-Type": "application/json"}
	}

	adapter := c.api
	if req.public {
		adapter = c.public
	}
	signedWith := c.tokens.AccessToken()
	res, err := adapter.Do(ctx, transportReq)
	if err != nil {
		return envelope{}, 0, err
	}

	if res.StatusCode == http.StatusUnauthorized && !req.public && c.shouldRetryUnauthorized() {
		// A pair rotated while the request was out is already fresh; retry with it.
		if c.tokens.AccessToken() == signedWith {
			if _, err := c.tokens.Refresh(ctx); err != nil {
				return envelope{}, res.StatusCode, err
			}
		}
		res, err = adapter.Do(ctx, transportReq)
		if err != nil {
			return envelope{}, 0, err
		}
	}

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return envelope{}, res.StatusCode, decodeAPIError(res)
	}
	var decoded envelope
	if len(strings.TrimSpace(string(res.Body))) > 0 {
		if err := json.Unmarshal(res.Body, &decoded); err != nil {
			return envelope{}, res.StatusCode, goerrors.Wrap(err, goerrors.CategoryExternal, "commerce: decode response envelope").
				WithCode(http.StatusBadGateway).
				WithTextCode(core.ErrorTextAPIFailure)
		}
	}
	return decoded, res.StatusCode, nil
}

func (c *Client) shouldRetryUnauthorized() bool {
	if c.cfg.DisableUnauthorizedRetry {
		return false
	}
	return c.tokens.Credentials().HasRefreshToken()
}

// resolve joins a relative resource path or a server provided uri such as
// pagination.next_uri with the base API uri. The result must stay on the
// base uri's scheme and host since requests carry the bearer token.
func (c *Client) resolve(path string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(path))
	if err != nil {
		return "", core.MapError(fmt.Errorf("commerce: resource path %q is invalid: %w", path, err))
	}
	target := c.baseURL.ResolveReference(ref)
	if !strings.EqualFold(target.Scheme, c.baseURL.Scheme) || !strings.EqualFold(target.Host, c.baseURL.Host) {
		return "", core.MapError(fmt.Errorf("commerce: resource uri %q must be on %s://%s", target.Redacted(), c.baseURL.Scheme, c.baseURL.Host))
	}
	return target.String(), nil
}

func decodeInto[T any](env envelope) (T, error) {
	var out T
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, goerrors.Wrap(err, goerrors.CategoryExternal, "commerce: decode response data").
			WithCode(http.StatusBadGateway).
			WithTextCode(core.ErrorTextAPIFailure)
	}
	return out, nil
}

func getOne[T any](ctx context.Context, c *Client, req apiRequest) (T, error) {
	req.method = http.MethodGet
	env, err := c.call(ctx, req)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeInto[T](env)
}

func postOne[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	env, err := c.call(ctx, apiRequest{method: http.MethodPost, path: path, body: body})
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeInto[T](env)
}

func getPage[T any](ctx context.Context, c *Client, path string, query map[string]string) (Page[T], error) {
	env, err := c.call(ctx, apiRequest{method: http.MethodGet, path: path, query: query})
	if err != nil {
		return Page[T]{}, err
	}
	data, err := decodeInto[[]T](env)
	if err != nil {
		return Page[T]{}, err
	}
	page := Page[T]{Data: data}
	if env.Pagination != nil {
		page.Pagination = *env.Pagination
	}
	page.next = func(ctx context.Context, nextURI string) (Page[T], error) {
		return getPage[T](ctx, c, nextURI, nil)
	}
	return page, nil
}

func resourcePath(collection string, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", core.MapError(fmt.Errorf("commerce: %s id is required", strings.TrimSuffix(collection, "s")))
	}
	return collection + "/" + url.PathEscape(id), nil
}

func resourceName(path string) string {
	path = strings.TrimPrefix(strings.TrimSpace(path), "/")
	if index := strings.IndexAny(path, "?"); index >= 0 {
		path = path[:index]
	}
	path = strings.TrimPrefix(path, "v2/")
	if index := strings.Index(path, "/"); index >= 0 {
		path = path[:index]
	}
	return path
}
