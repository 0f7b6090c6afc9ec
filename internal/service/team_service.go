package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/yakoovad/teamhub/internal/db"
	"github.com/yakoovad/teamhub/internal/lock"
	"github.com/yakoovad/teamhub/internal/model"
	"github.com/yakoovad/teamhub/internal/repository"
	"github.com/yakoovad/teamhub/pkg/logger"
	"github.com/yakoovad/teamhub/pkg/validation"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	opCreateTeam = "create_team"
	opJoinTeam   = "join_team"
	opQuitTeam   = "quit_team"
	opDeleteTeam = "delete_team"
	opUpdateTeam = "update_team"
)

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// TeamService coordinates the team lifecycle. Every mutation takes its locks first,
// then runs as one transaction that re-reads and re-checks everything it depends on.
type TeamService struct {
	tx       db.Transactor
	locker   lock.Locker
	hasher   PasswordHasher
	validate *validator.Validate

	teams       repository.TeamRepository
	memberships repository.MembershipRepository
	users       repository.UserRepository

	metrics *Metrics
	now     func() time.Time
	newID   func() string
}

func NewTeamService(tx db.Transactor, locker lock.Locker, hasher PasswordHasher) *TeamService {
	return &TeamService{
		tx:       tx,
		locker:   locker,
		hasher:   hasher,
		validate: validation.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (t *TeamService) CreateTeam(ctx context.Context, ownerID string, spec *model.TeamSpec) (string, *Error) {
	l := logger.FromContext(ctx).With(zap.String("op", opCreateTeam), zap.String("owner_id", ownerID))
	l.Info("creating team", zap.String("team_name", spec.Name), zap.String("visibility", string(spec.Visibility)))

	id, err := t.createTeam(ctx, l, ownerID, spec)
	return id, t.finish(l, opCreateTeam, err)
}

func (t *TeamService) createTeam(ctx context.Context, l *zap.Logger, ownerID string, spec *model.TeamSpec) (string, error) {
	if ownerID == "" {
		return "", NewError(ErrorCodeUnauthenticated, "caller is not authenticated")
	}
	if err := t.validate.Struct(spec); err != nil {
		return "", NewError(ErrorCodeInvalidArgument, errors.Wrap(err, "invalid team").Error())
	}

	now := t.now()
	visibility := spec.Visibility
	if visibility == "" {
		visibility = model.VisibilityPublic
	}
	if spec.ExpiresAt != nil && !spec.ExpiresAt.After(now) {
		return "", NewError(ErrorCodeInvalidArgument, "expires_at must be in the future")
	}

	var passwordHash string
	switch {
	case visibility == model.VisibilitySecret:
		if strings.TrimSpace(spec.Password) == "" {
			return "", NewError(ErrorCodeInvalidArgument, "secret team requires a password")
		}
		hash, err := t.hashPassword(l, spec.Password)
		if err != nil {
			return "", err
		}
		passwordHash = hash
	case spec.Password != "":
		return "", NewError(ErrorCodeInvalidArgument, "only secret teams have a password")
	}

	unlock, err := t.acquire(ctx, opCreateTeam, lock.UserKey(ownerID))
	if err != nil {
		return "", err
	}
	defer unlock()

	team := &repository.Team{
		ID:           t.newID(),
		OwnerID:      ownerID,
		Name:         spec.Name,
		Description:  spec.Description,
		Capacity:     spec.Capacity,
		Visibility:   visibility,
		PasswordHash: passwordHash,
		ExpiresAt:    spec.ExpiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = t.tx.WithinTransaction(context.WithoutCancel(ctx), func(txCtx context.Context) error {
		owned, err := t.teams.CountByOwner(txCtx, ownerID)
		if err != nil {
			return systemError(l, "failed to count owned teams", err)
		}
		if owned >= model.MaxTeamsOwned {
			return NewError(ErrorCodeQuotaExceeded, "user already owns the maximum number of teams")
		}

		joined, err := t.memberships.CountByUser(txCtx, ownerID)
		if err != nil {
			return systemError(l, "failed to count memberships", err)
		}
		if joined >= model.MaxTeamsJoined {
			return NewError(ErrorCodeQuotaExceeded, "user already belongs to the maximum number of teams")
		}

		if err = t.teams.Create(txCtx, team); err != nil {
			return systemError(l, "failed to create team", err)
		}

		if err = t.memberships.Create(txCtx, &repository.Membership{
			UserID:   ownerID,
			TeamID:   team.ID,
			JoinedAt: now,
		}); err != nil {
			return systemError(l, "failed to create owner membership", err)
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	l.Debug("team created", zap.String("team_id", team.ID))
	return team.ID, nil
}

func (t *TeamService) DeleteTeam(ctx context.Context, callerID, teamID string) *Error {
	l := logger.FromContext(ctx).With(zap.String("op", opDeleteTeam), zap.String("team_id", teamID), zap.String("caller_id", callerID))
	l.Info("deleting team")

	return t.finish(l, opDeleteTeam, t.deleteTeam(ctx, l, callerID, teamID))
}

func (t *TeamService) deleteTeam(ctx context.Context, l *zap.Logger, callerID, teamID string) error {
	if callerID == "" {
		return NewError(ErrorCodeUnauthenticated, "caller is not authenticated")
	}

	unlock, err := t.acquire(ctx, opDeleteTeam, lock.TeamKey(teamID))
	if err != nil {
		return err
	}
	defer unlock()

	return t.tx.WithinTransaction(context.WithoutCancel(ctx), func(txCtx context.Context) error {
		team, err := t.getForUpdate(txCtx, l, teamID)
		if err != nil {
			return err
		}
		if team.OwnerID != callerID {
			return NewError(ErrorCodeForbidden, "only the owner can delete the team")
		}

		removed, err := t.memberships.DeleteByTeam(txCtx, teamID)
		if err != nil {
			return systemError(l, "failed to delete memberships", err)
		}

		if err = t.teams.Delete(txCtx, teamID); err != nil {
			return systemError(l, "failed to delete team", err)
		}

		l.Debug("team deleted", zap.Int64("memberships_removed", removed))
		return nil
	})
}

func (t *TeamService) UpdateTeam(ctx context.Context, caller model.Caller, patch *model.TeamPatch) (*model.TeamView, *Error) {
	l := logger.FromContext(ctx).With(zap.String("op", opUpdateTeam), zap.String("team_id", patch.ID), zap.String("caller_id", caller.UserID))
	l.Info("updating team")

	view, err := t.updateTeam(ctx, l, caller, patch)
	return view, t.finish(l, opUpdateTeam, err)
}

func (t *TeamService) updateTeam(ctx context.Context, l *zap.Logger, caller model.Caller, patch *model.TeamPatch) (*model.TeamView, error) {
	if caller.UserID == "" {
		return nil, NewError(ErrorCodeUnauthenticated, "caller is not authenticated")
	}
	if err := t.validate.Struct(patch); err != nil {
		return nil, NewError(ErrorCodeInvalidArgument, errors.Wrap(err, "invalid team patch").Error())
	}

	now := t.now()
	if patch.ExpiresAt != nil && !patch.ExpiresAt.After(now) {
		return nil, NewError(ErrorCodeInvalidArgument, "expires_at must be in the future")
	}

	var newHash string
	hasPassword := patch.Password != nil && strings.TrimSpace(*patch.Password) != ""
	if hasPassword {
		hash, err := t.hashPassword(l, *patch.Password)
		if err != nil {
			return nil, err
		}
		newHash = hash
	}

	unlock, err := t.acquire(ctx, opUpdateTeam, lock.TeamKey(patch.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var updated *repository.Team

	err = t.tx.WithinTransaction(context.WithoutCancel(ctx), func(txCtx context.Context) error {
		team, err := t.getForUpdate(txCtx, l, patch.ID)
		if err != nil {
			return err
		}
		if team.OwnerID != caller.UserID && !caller.IsAdmin {
			return NewError(ErrorCodeForbidden, "only the owner or an admin can update the team")
		}
		if patch.Version != nil && *patch.Version != team.Version {
			return NewError(ErrorCodeConflict, "team was modified concurrently, reload and retry")
		}

		repoPatch := &repository.TeamPatch{
			ID:          team.ID,
			Version:     team.Version,
			Name:        patch.Name,
			Description: patch.Description,
			Visibility:  patch.Visibility,
			ExpiresAt:   patch.ExpiresAt,
			UpdatedAt:   now,
		}

		target := team.Visibility
		if patch.Visibility != nil {
			target = *patch.Visibility
		}

		switch {
		case target == model.VisibilitySecret && hasPassword:
			repoPatch.PasswordHash = &newHash
		case target == model.VisibilitySecret && (patch.Visibility != nil || patch.Password != nil):
			// Setting secret visibility or sending a password both require a non-blank password.
			return NewError(ErrorCodeInvalidArgument, "secret team requires a non-blank password")
		case target != model.VisibilitySecret && hasPassword:
			return NewError(ErrorCodeInvalidArgument, "only secret teams have a password")
		case target != model.VisibilitySecret && team.PasswordHash != "":
			cleared := ""
			repoPatch.PasswordHash = &cleared
		}

		updated, err = t.teams.Patch(txCtx, repoPatch)
		if errors.Is(err, repository.ErrVersionConflict) {
			return NewError(ErrorCodeConflict, "team was modified concurrently, reload and retry")
		}
		if errors.Is(err, repository.ErrNotFound) {
			return NewError(ErrorCodeNotFound, "team not found")
		}
		if err != nil {
			return systemError(l, "failed to update team", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.Debug("team updated", zap.Int64("version", updated.Version))
	return toView(updated), nil
}

func (t *TeamService) getForUpdate(ctx context.Context, l *zap.Logger, teamID string) (*repository.Team, error) {
	team, err := t.teams.GetForUpdate(ctx, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "team not found")
	}
	if err != nil {
		return nil, systemError(l, "failed to get team", err)
	}
	return team, nil
}

func (t *TeamService) hashPassword(l *zap.Logger, password string) (string, error) {
	hash, err := t.hasher.Hash(password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", NewError(ErrorCodeInvalidArgument, "password is too long")
	}
	if err != nil {
		return "", systemError(l, "failed to hash password", err)
	}
	return hash, nil
}

// acquire takes the named locks. A wait that runs out is reported as a conflict the caller may retry.
func (t *TeamService) acquire(ctx context.Context, op string, keys ...string) (func(), error) {
	start := time.Now()
	unlock, err := t.locker.Lock(ctx, keys...)
	t.metrics.observeLockWait(op, time.Since(start))

	if errors.Is(err, lock.ErrTimeout) {
		return nil, NewError(ErrorCodeConflict, "team is busy, retry later")
	}
	if err != nil {
		return nil, systemError(logger.FromContext(ctx), "failed to acquire lock", err)
	}
	return unlock, nil
}

// finish logs the outcome of an operation and records it.
func (t *TeamService) finish(l *zap.Logger, op string, err error) *Error {
	res := asError(err)

	switch {
	case res == nil:
	case res.Code == ErrorCodeSystem:
		var serviceErr *Error
		if !errors.As(err, &serviceErr) {
			l.Error("operation failed", zap.Error(err))
		}
	default:
		l.Warn("operation rejected", zap.String("code", string(res.Code)), zap.String("reason", res.Message))
	}

	t.metrics.observe(op, res)
	return res
}

func systemError(l *zap.Logger, msg string, err error) *Error {
	l.Error(msg, zap.Error(err))
	return NewError(ErrorCodeSystem, msg)
}

func (t *TeamService) WithTeamRepo(r repository.TeamRepository) *TeamService {
	t.teams = r
	return t
}

func (t *TeamService) WithMembershipRepo(r repository.MembershipRepository) *TeamService {
	t.memberships = r
	return t
}

func (t *TeamService) WithUserRepo(r repository.UserRepository) *TeamService {
	t.users = r
	return t
}

func (t *TeamService) WithMetrics(m *Metrics) *TeamService {
	t.metrics = m
	return t
}

func (t *TeamService) WithClock(now func() time.Time) *TeamService {
	t.now = now
	return t
}

func (t *TeamService) WithIDGenerator(newID func() string) *TeamService {
	t.newID = newID
	return t
}
