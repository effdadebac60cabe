package apiclient

import (
	"context"
	"net/http"
	"net/url"
)

// JSONDoer is the part of the pipeline the domain services depend on.
type JSONDoer interface {
	DoJSON(ctx context.Context, req Request, out any) error
}

var _ JSONDoer = (*Client)(nil)

// DoJSON executes req and decodes the response body into out (which may be nil).
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.DoJSON(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.DoJSON(ctx, Request{Method: http.MethodPost, Path: path, Body: in}, out)
}

func (c *Client) PatchJSON(ctx context.Context, path string, in, out any) error {
	return c.DoJSON(ctx, Request{Method: http.MethodPatch, Path: path, Body: in}, out)
}

// PostPublicJSON posts to an endpoint that must not carry credentials, such as login.
func (c *Client) PostPublicJSON(ctx context.Context, path string, in, out any) error {
	return c.DoJSON(ctx, Request{Method: http.MethodPost, Path: path, Body: in, Public: true}, out)
}
