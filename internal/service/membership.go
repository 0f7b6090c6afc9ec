package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/yakoovad/teamhub/internal/lock"
	"github.com/yakoovad/teamhub/internal/model"
	"github.com/yakoovad/teamhub/internal/policy"
	"github.com/yakoovad/teamhub/internal/repository"
	"github.com/yakoovad/teamhub/pkg/logger"
	"go.uber.org/zap"
)

func (t *TeamService) JoinTeam(ctx context.Context, caller model.Caller, teamID, password string) *Error {
	l := logger.FromContext(ctx).With(zap.String("op", opJoinTeam), zap.String("team_id", teamID), zap.String("user_id", caller.UserID))
	l.Info("joining team")

	return t.finish(l, opJoinTeam, t.joinTeam(ctx, l, caller, teamID, password))
}

func (t *TeamService) joinTeam(ctx context.Context, l *zap.Logger, caller model.Caller, teamID, password string) error {
	if caller.UserID == "" {
		return NewError(ErrorCodeUnauthenticated, "caller is not authenticated")
	}

	unlock, err := t.acquire(ctx, opJoinTeam, lock.TeamKey(teamID), lock.UserKey(caller.UserID))
	if err != nil {
		return err
	}
	defer unlock()

	return t.tx.WithinTransaction(context.WithoutCancel(ctx), func(txCtx context.Context) error {
		team, err := t.getForUpdate(txCtx, l, teamID)
		if err != nil {
			return err
		}

		now := t.now()
		switch policy.CanJoin(caller, team, password, t.hasher, now) {
		case policy.DeniedExpired:
			return NewError(ErrorCodeExpired, "team has expired")
		case policy.DeniedPrivate:
			return NewError(ErrorCodeForbidden, "team is private")
		case policy.DeniedPassword:
			return NewError(ErrorCodeUnauthorized, "wrong team password")
		}

		joined, err := t.memberships.CountByUser(txCtx, caller.UserID)
		if err != nil {
			return systemError(l, "failed to count memberships", err)
		}
		if joined >= model.MaxTeamsJoined {
			return NewError(ErrorCodeQuotaExceeded, "user already belongs to the maximum number of teams")
		}

		exists, err := t.memberships.Exists(txCtx, caller.UserID, teamID)
		if err != nil {
			return systemError(l, "failed to check membership", err)
		}
		if exists {
			return NewError(ErrorCodeAlreadyMember, "user is already a member of the team")
		}

		members, err := t.memberships.CountByTeam(txCtx, teamID)
		if err != nil {
			return systemError(l, "failed to count team members", err)
		}
		if members >= team.Capacity {
			return NewError(ErrorCodeTeamFull, "team is full")
		}

		err = t.memberships.Create(txCtx, &repository.Membership{
			UserID:   caller.UserID,
			TeamID:   teamID,
			JoinedAt: now,
		})
		if errors.Is(err, repository.ErrAlreadyExists) {
			return NewError(ErrorCodeAlreadyMember, "user is already a member of the team")
		}
		if err != nil {
			return systemError(l, "failed to create membership", err)
		}

		l.Debug("team joined", zap.Int("members", members+1), zap.Int("capacity", team.Capacity))
		return nil
	})
}

func (t *TeamService) QuitTeam(ctx context.Context, userID, teamID string) *Error {
	l := logger.FromContext(ctx).With(zap.String("op", opQuitTeam), zap.String("team_id", teamID), zap.String("user_id", userID))
	l.Info("quitting team")

	return t.finish(l, opQuitTeam, t.quitTeam(ctx, l, userID, teamID))
}

func (t *TeamService) quitTeam(ctx context.Context, l *zap.Logger, userID, teamID string) error {
	if userID == "" {
		return NewError(ErrorCodeUnauthenticated, "caller is not authenticated")
	}

	unlock, err := t.acquire(ctx, opQuitTeam, lock.TeamKey(teamID))
	if err != nil {
		return err
	}
	defer unlock()

	// While the team key is held its member set cannot change, so the potential
	// successors read here are the ones whose owned-team quota must be frozen.
	successors, err := t.potentialSuccessors(ctx, l, userID, teamID)
	if err != nil {
		return err
	}
	if len(successors) > 0 {
		keys := make([]string, 0, len(successors))
		for _, id := range successors {
			keys = append(keys, lock.UserKey(id))
		}

		unlockUsers, err := t.acquire(ctx, opQuitTeam, keys...)
		if err != nil {
			return err
		}
		defer unlockUsers()
	}

	return t.tx.WithinTransaction(context.WithoutCancel(ctx), func(txCtx context.Context) error {
		team, err := t.getForUpdate(txCtx, l, teamID)
		if err != nil {
			return err
		}

		count, err := t.memberships.CountByTeam(txCtx, teamID)
		if err != nil {
			return systemError(l, "failed to count team members", err)
		}

		err = t.memberships.Delete(txCtx, userID, teamID)
		if errors.Is(err, repository.ErrNotFound) {
			return NewError(ErrorCodeNotMember, "user is not a member of the team")
		}
		if err != nil {
			return systemError(l, "failed to delete membership", err)
		}

		// The quitting user was the last member: the team dissolves with them.
		if count == 1 {
			if err = t.teams.Delete(txCtx, teamID); err != nil {
				return systemError(l, "failed to delete dissolved team", err)
			}
			l.Debug("team dissolved")
			return nil
		}

		if team.OwnerID != userID {
			l.Debug("team left", zap.Int("members", count-1))
			return nil
		}

		return t.succeed(txCtx, l, team)
	})
}

// potentialSuccessors lists the other members when userID owns the team, nil otherwise.
func (t *TeamService) potentialSuccessors(ctx context.Context, l *zap.Logger, userID, teamID string) ([]string, error) {
	team, err := t.teams.Get(ctx, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "team not found")
	}
	if err != nil {
		return nil, systemError(l, "failed to get team", err)
	}
	if team.OwnerID != userID {
		return nil, nil
	}

	members, err := t.memberships.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, systemError(l, "failed to list team members", err)
	}

	res := make([]string, 0, len(members))
	for _, m := range members {
		if m.UserID != userID {
			res = append(res, m.UserID)
		}
	}
	return res, nil
}

// succeed hands leadership to the longest-tenured remaining member who can still own another team.
func (t *TeamService) succeed(ctx context.Context, l *zap.Logger, team *repository.Team) error {
	remaining, err := t.memberships.ListByTeam(ctx, team.ID)
	if err != nil {
		return systemError(l, "failed to list team members", err)
	}
	if len(remaining) == 0 {
		l.Error("no successor in a non-empty team", zap.String("owner_id", team.OwnerID))
		return NewError(ErrorCodeSystem, "leadership succession found no remaining member")
	}

	var successor string
	for _, m := range remaining {
		owned, err := t.teams.CountByOwner(ctx, m.UserID)
		if err != nil {
			return systemError(l, "failed to count owned teams", err)
		}
		if owned < model.MaxTeamsOwned {
			successor = m.UserID
			break
		}
	}
	if successor == "" {
		return NewError(ErrorCodeQuotaExceeded, "no remaining member can take over leadership")
	}

	_, err = t.teams.Patch(ctx, &repository.TeamPatch{
		ID:        team.ID,
		Version:   team.Version,
		OwnerID:   &successor,
		UpdatedAt: t.now(),
	})
	if errors.Is(err, repository.ErrVersionConflict) {
		return NewError(ErrorCodeConflict, "team was modified concurrently, retry")
	}
	if err != nil {
		return systemError(l, "failed to transfer leadership", err)
	}

	l.Debug("leadership transferred", zap.String("new_owner_id", successor))
	return nil
}
