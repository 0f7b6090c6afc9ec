// Package policy holds the single definition of who may see and who may join a team,
// shared by listings and by JoinTeam.
package policy

import (
	"time"

	"github.com/yakoovad/teamhub/internal/model"
	"github.com/yakoovad/teamhub/internal/repository"
)

type Decision int

const (
	Allowed Decision = iota
	DeniedExpired
	DeniedPrivate
	DeniedPassword
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case DeniedExpired:
		return "expired"
	case DeniedPrivate:
		return "private"
	case DeniedPassword:
		return "bad_password"
	}
	return "unknown"
}

type PasswordVerifier interface {
	Verify(plaintext, digest string) bool
}

// Expired reports whether the team's expiry is at or before now.
func Expired(team *repository.Team, now time.Time) bool {
	return team.ExpiresAt != nil && !team.ExpiresAt.After(now)
}

// CanView hides expired teams from everyone and private teams from everyone
// except admins and the owner.
func CanView(caller model.Caller, team *repository.Team, now time.Time) bool {
	if Expired(team, now) {
		return false
	}
	if team.Visibility == model.VisibilityPrivate {
		return caller.IsAdmin || (caller.UserID != "" && caller.UserID == team.OwnerID)
	}
	return true
}

// CanJoin applies the expiry, private and secret-password gates in that order.
// Admins pass the private gate but not the password gate.
func CanJoin(caller model.Caller, team *repository.Team, password string, verifier PasswordVerifier, now time.Time) Decision {
	if Expired(team, now) {
		return DeniedExpired
	}

	switch team.Visibility {
	case model.VisibilityPrivate:
		if !caller.IsAdmin {
			return DeniedPrivate
		}
	case model.VisibilitySecret:
		if !verifier.Verify(password, team.PasswordHash) {
			return DeniedPassword
		}
	}
	return Allowed
}

// ListableVisibilities returns the visibilities a caller may list.
// A non-nil requested value narrows the result; ok is false when the caller asked
// for something it may not see.
func ListableVisibilities(caller model.Caller, requested model.Visibility) (res []model.Visibility, ok bool) {
	if requested != "" {
		if requested == model.VisibilityPrivate && !caller.IsAdmin {
			return nil, false
		}
		return []model.Visibility{requested}, true
	}

	if caller.IsAdmin {
		return nil, true
	}
	return []model.Visibility{model.VisibilityPublic, model.VisibilitySecret}, true
}
