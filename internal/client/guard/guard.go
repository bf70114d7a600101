// Package guard decides whether a screen may be shown for the current
// session or where the user should be sent instead.
package guard

import (
	"github.com/youthcouncil/portal/internal/client/session"
	"github.com/youthcouncil/portal/internal/core/domain"
)

const (
	PathHome      = "/"
	PathLogin     = "/login"
	PathRoleSetup = "/account/setup"
)

type Action int

const (
	Render Action = iota
	Redirect
)

func (a Action) String() string {
	if a == Redirect {
		return "redirect"
	}
	return "render"
}

// Decision is the outcome of a guard. From is the path the user asked for,
// set on redirects to the login screen so it can send them back afterwards.
type Decision struct {
	Action Action
	To     string
	From   string
}

func render() Decision { return Decision{Action: Render} }

func redirect(to, from string) Decision {
	return Decision{Action: Redirect, To: to, From: from}
}

// GuestOnly protects the login and registration screens: a signed-in user
// holding a role goes home instead.
func GuestOnly(s session.Snapshot) Decision {
	if s.Authenticated() && len(s.Roles()) > 0 {
		return redirect(PathHome, "")
	}
	return render()
}

// Authenticated protects a screen at path. Without a session the user is
// sent to login; without any role, to the role setup screen; and when
// allowed is non-empty the active role must be one of them.
func Authenticated(s session.Snapshot, path string, allowed ...string) Decision {
	if !s.Authenticated() {
		return redirect(PathLogin, path)
	}
	if len(s.Roles()) == 0 && path != PathRoleSetup {
		return redirect(PathRoleSetup, path)
	}
	if len(allowed) > 0 && !domain.ContainsRole(allowed, s.ActiveRole) {
		return redirect(PathHome, "")
	}
	return render()
}
