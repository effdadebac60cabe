package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jrsteele09/zhancare-client/internal/errors"
)

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

// refreshAccessToken returns an access token to retry with. Concurrent callers holding
// the same refresh token share one refresh call. If the session already holds a
// different token than the one that was rejected, that token is returned without
// calling the backend.
func (c *Client) refreshAccessToken(ctx context.Context, rejected string) (string, error) {
	tok, ok := c.session.Token()
	if ok && tok.AccessToken != "" && tok.AccessToken != rejected {
		c.metrics.RefreshTotal.WithLabelValues(refreshReused).Inc()
		return tok.AccessToken, nil
	}
	if !ok || tok.RefreshToken == "" {
		c.forceLogout(ctx, "no refresh token")
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, errors.ErrMissingRefreshToken)
	}

	// Flights are keyed by refresh token so a refresh started under one login is never
	// shared with callers of the next.
	refreshToken := tok.RefreshToken
	ch := c.refreshGroup.DoChan(refreshToken, func() (any, error) {
		return c.runRefresh(context.WithoutCancel(ctx), refreshToken, rejected)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Client) runRefresh(ctx context.Context, refreshToken, rejected string) (string, error) {
	// A refresh that finished just before this flight started already replaced the token.
	if tok, ok := c.session.Token(); ok && tok.RefreshToken == refreshToken &&
		tok.AccessToken != "" && tok.AccessToken != rejected {
		c.metrics.RefreshTotal.WithLabelValues(refreshReused).Inc()
		return tok.AccessToken, nil
	}

	access, err := c.postRefresh(ctx, refreshToken)
	if err != nil {
		c.metrics.RefreshTotal.WithLabelValues(refreshFailure).Inc()
		if !c.sessionHolds(refreshToken) {
			// The session this refresh belonged to is gone; leave its successor alone.
			c.logger.Debug().Err(err).Msg("token refresh failed for a replaced session")
			return "", fmt.Errorf("%w: %w", ErrSessionExpired, errors.ErrSessionChanged)
		}
		c.logger.Warn().Err(err).Msg("token refresh failed")
		c.forceLogout(ctx, "session expired")
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	if err := c.session.UpdateAccessToken(ctx, refreshToken, access); err != nil {
		// Logged out or logged in again while the refresh was in flight; do not
		// resurrect or overwrite the session.
		c.metrics.RefreshTotal.WithLabelValues(refreshFailure).Inc()
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	c.metrics.RefreshTotal.WithLabelValues(refreshSuccess).Inc()
	c.logger.Debug().Msg("access token refreshed")
	return access, nil
}

func (c *Client) sessionHolds(refreshToken string) bool {
	tok, ok := c.session.Token()
	return ok && tok.RefreshToken == refreshToken
}

// postRefresh calls the refresh endpoint directly, outside the pipeline, so a failure
// here can never recurse into another refresh.
func (c *Client) postRefresh(ctx context.Context, refreshToken string) (string, error) {
	raw, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(c.refreshPath, nil), bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", contentTypeJSON)
	httpReq.Header.Set("Accept", contentTypeJSON)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", errors.Wrapf(err, "refresh request")
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return "", errors.Wrapf(err, "refresh read")
	}
	if !isSuccess(httpResp.StatusCode) {
		return "", errors.Wrapf(errors.ErrInvalidRefreshToken, "refresh status %d", httpResp.StatusCode)
	}

	var out refreshResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", errors.Wrapf(err, "refresh decode")
	}
	if out.AccessToken == "" {
		return "", errors.Wrapf(errors.ErrInvalidRefreshToken, "refresh response has no access_token")
	}
	return out.AccessToken, nil
}

func (c *Client) forceLogout(ctx context.Context, reason string) {
	c.metrics.ForcedLogouts.Inc()
	c.session.ForceLogout(ctx, reason)
}
