package sessions

import "context"

// Persisted credential keys. They are always written and removed together.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// CredentialKeys lists every key owned by the session.
var CredentialKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

// Storage is durable key/value storage for the persisted session.
//
// MultiGet omits keys that are not present. MultiSet must be atomic: after an error
// none of the given values may be visible. MultiRemove ignores missing keys.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	MultiGet(ctx context.Context, keys ...string) (map[string]string, error)
	MultiSet(ctx context.Context, values map[string]string) error
	MultiRemove(ctx context.Context, keys ...string) error
}
