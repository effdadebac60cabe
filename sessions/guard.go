package sessions

import "github.com/jrsteele09/zhancare-client/users"

// Navigation targets used by the guard.
const (
	RouteLogin  = "/login"
	RouteTabs   = "/(tabs)"
	RouteDoctor = "/doctor"
)

// GuardRedirect decides where a consumer should navigate given the auth state and
// whether it currently shows a protected area. ok is false when no redirect is needed.
func GuardRedirect(authenticated, inProtectedArea bool) (route string, ok bool) {
	switch {
	case !authenticated && inProtectedArea:
		return RouteLogin, true
	case authenticated && !inProtectedArea:
		return RouteTabs, true
	default:
		return "", false
	}
}

// HomeRoute is where a user lands after login or registration.
func HomeRoute(u *users.User) string {
	if u.IsDoctor() {
		return RouteDoctor
	}
	return RouteTabs
}

// Redirect applies GuardRedirect to the store. Nothing is decided until Restore has finished.
func (s *Store) Redirect(inProtectedArea bool) (string, bool) {
	select {
	case <-s.ready:
	default:
		return "", false
	}
	return GuardRedirect(s.IsAuthenticated(), inProtectedArea)
}
