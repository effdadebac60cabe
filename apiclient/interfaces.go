package apiclient

import (
	"context"

	"golang.org/x/oauth2"
)

// Session is the credential source the client reads from and writes refreshed
// tokens back to. *sessions.Store implements it.
//
// UpdateAccessToken must only apply accessToken while the session still holds
// refreshToken, the token the refresh was made with.
type Session interface {
	Token() (*oauth2.Token, bool)
	UpdateAccessToken(ctx context.Context, refreshToken, accessToken string) error
	ForceLogout(ctx context.Context, reason string)
}

// Reporter receives every rejected request. Implementations must not block the
// caller; wrap slow sinks in NewAsyncReporter.
type Reporter interface {
	Report(ctx context.Context, err *Error)
}
