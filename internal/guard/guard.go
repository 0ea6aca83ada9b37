// Package guard decides whether a route may render for the current session.
package guard

import (
	"context"
	"fmt"

	"github.com/and161185/learnhub-client/internal/model"
	"github.com/and161185/learnhub-client/internal/routes"
)

// Action is what the UI should do with a route.
type Action int

const (
	// Allow renders the route.
	Allow Action = iota
	// Wait shows a placeholder; a session check is in flight.
	Wait
	// Redirect sends the user to Decision.Target.
	Redirect
)

func (a Action) String() string {
	switch a {
	case Allow:
		return "allow"
	case Wait:
		return "wait"
	case Redirect:
		return "redirect"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Decision is the outcome for one path.
type Decision struct {
	Action Action
	Target string
}

// Decide is pure: public routes always render, auth-only routes bounce signed-in users home,
// protected routes wait while loading and otherwise need a session (and a role where one is required).
func Decide(rt *routes.Table, s model.Snapshot, path string) Decision {
	switch rt.Classify(path) {
	case routes.Public:
		return Decision{Action: Allow}
	case routes.AuthOnly:
		if s.IsAuthenticated {
			return Decision{Action: Redirect, Target: rt.Home()}
		}
		return Decision{Action: Allow}
	}
	if s.IsLoading {
		return Decision{Action: Wait}
	}
	if !s.IsAuthenticated {
		return Decision{Action: Redirect, Target: rt.SignIn()}
	}
	if role := rt.RequiredRole(path); role != "" && !s.User.HasRole(role) {
		return Decision{Action: Redirect, Target: rt.Home()}
	}
	return Decision{Action: Allow}
}

// Session is the part of the session store the guard uses.
type Session interface {
	CheckAuth(ctx context.Context, force bool) error
	Snapshot() model.Snapshot
}

// Enter validates the session for path and decides. The session's location must
// already point at path. A failed check still yields a decision from the state it left.
func Enter(ctx context.Context, s Session, rt *routes.Table, path string) (Decision, error) {
	err := s.CheckAuth(ctx, false)
	return Decide(rt, s.Snapshot(), path), err
}
