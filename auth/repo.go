package auth

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/jrsteele09/zhancare-client/sessions"
	"github.com/jrsteele09/zhancare-client/users"
)

// SessionStore is where a successful login is recorded.
type SessionStore interface {
	Login(ctx context.Context, user *users.User, tok *oauth2.Token) error
	Logout(ctx context.Context) error
}

var _ SessionStore = (*sessions.Store)(nil)
