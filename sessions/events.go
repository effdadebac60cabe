package sessions

import (
	"time"

	"github.com/jrsteele09/zhancare-client/users"
)

type EventKind string

const (
	EventRestored     EventKind = "restored"
	EventLogin        EventKind = "login"
	EventLogout       EventKind = "logout"
	EventForcedLogout EventKind = "forced_logout"
)

// Event describes a session state change delivered to subscribers.
type Event struct {
	Kind          EventKind
	Authenticated bool
	User          *users.User // nil after logout
	Reason        string      // set for forced logout
	At            time.Time
}

// Listener receives session events. Listeners run on the goroutine that changed the
// session and must return quickly.
type Listener func(Event)
