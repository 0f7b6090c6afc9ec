package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/yakoovad/teamhub/internal/model"
	"github.com/yakoovad/teamhub/internal/policy"
	"github.com/yakoovad/teamhub/internal/repository"
	"github.com/yakoovad/teamhub/pkg/logger"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListTeams returns the active teams matching filter that caller may see, newest first.
func (t *TeamService) ListTeams(ctx context.Context, caller model.Caller, filter *model.TeamFilter) ([]*model.TeamView, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("listing teams", zap.String("caller_id", caller.UserID), zap.Any("filter", filter))

	if err := t.validate.Struct(filter); err != nil {
		return nil, NewError(ErrorCodeInvalidArgument, errors.Wrap(err, "invalid filter").Error())
	}

	visibilities, ok := policy.ListableVisibilities(caller, filter.Visibility)
	if !ok {
		l.Warn("private listing denied", zap.String("caller_id", caller.UserID))
		return nil, NewError(ErrorCodeForbidden, "private teams are listed to admins only")
	}

	pageNum, pageSize := filter.PageNum, filter.PageSize
	if pageNum < 1 {
		pageNum = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	ids := filter.IDs
	if filter.ID != "" {
		ids = append([]string{filter.ID}, ids...)
	}

	now := t.now()
	teams, err := t.teams.List(ctx, &repository.TeamFilter{
		IDs:          ids,
		SearchText:   filter.SearchText,
		Name:         filter.Name,
		Description:  filter.Description,
		Capacity:     filter.Capacity,
		OwnerID:      filter.OwnerID,
		Visibilities: visibilities,
		ActiveAt:     now,
		Limit:        pageSize,
		Offset:       (pageNum - 1) * pageSize,
	})
	if err != nil {
		return nil, systemError(l, "failed to list teams", err)
	}

	visible := teams[:0]
	for _, team := range teams {
		if policy.CanView(caller, team, now) {
			visible = append(visible, team)
		}
	}

	return t.project(ctx, l, caller, visible)
}

func (t *TeamService) GetTeam(ctx context.Context, caller model.Caller, teamID string) (*model.TeamView, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("getting team", zap.String("team_id", teamID), zap.String("caller_id", caller.UserID))

	team, err := t.teams.Get(ctx, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "team not found")
	}
	if err != nil {
		return nil, systemError(l, "failed to get team", err)
	}

	now := t.now()
	if policy.Expired(team, now) {
		return nil, NewError(ErrorCodeExpired, "team has expired")
	}
	if !policy.CanView(caller, team, now) {
		return nil, NewError(ErrorCodeNotFound, "team not found")
	}

	views, res := t.project(ctx, l, caller, []*repository.Team{team})
	if res != nil {
		return nil, res
	}
	return views[0], nil
}

// ListOwnedTeams returns the active teams userID leads, whatever their visibility.
func (t *TeamService) ListOwnedTeams(ctx context.Context, userID string) ([]*model.TeamView, *Error) {
	l := logger.FromContext(ctx)
	if userID == "" {
		return nil, NewError(ErrorCodeUnauthenticated, "caller is not authenticated")
	}

	teams, err := t.teams.List(ctx, &repository.TeamFilter{OwnerID: userID, ActiveAt: t.now()})
	if err != nil {
		return nil, systemError(l, "failed to list owned teams", err)
	}
	return t.project(ctx, l, model.Caller{UserID: userID}, teams)
}

// ListJoinedTeams returns the active teams userID is a member of, including owned ones.
func (t *TeamService) ListJoinedTeams(ctx context.Context, userID string) ([]*model.TeamView, *Error) {
	l := logger.FromContext(ctx)
	if userID == "" {
		return nil, NewError(ErrorCodeUnauthenticated, "caller is not authenticated")
	}

	ids, err := t.memberships.ListTeamIDsByUser(ctx, userID)
	if err != nil {
		return nil, systemError(l, "failed to list memberships", err)
	}
	if len(ids) == 0 {
		return []*model.TeamView{}, nil
	}

	teams, err := t.teams.List(ctx, &repository.TeamFilter{IDs: ids, ActiveAt: t.now()})
	if err != nil {
		return nil, systemError(l, "failed to list joined teams", err)
	}
	return t.project(ctx, l, model.Caller{UserID: userID}, teams)
}

// project turns team rows into views carrying the owner's redacted profile,
// the member count and whether caller is a member.
func (t *TeamService) project(ctx context.Context, l *zap.Logger, caller model.Caller, teams []*repository.Team) ([]*model.TeamView, *Error) {
	res := make([]*model.TeamView, 0, len(teams))
	if len(teams) == 0 {
		return res, nil
	}

	teamIDs := make([]string, 0, len(teams))
	ownerIDs := make([]string, 0, len(teams))
	for _, team := range teams {
		teamIDs = append(teamIDs, team.ID)
		ownerIDs = append(ownerIDs, team.OwnerID)
	}

	owners, err := t.users.GetMany(ctx, ownerIDs)
	if err != nil {
		return nil, systemError(l, "failed to get team owners", err)
	}

	counts, err := t.memberships.CountByTeams(ctx, teamIDs)
	if err != nil {
		return nil, systemError(l, "failed to count team members", err)
	}

	joined := make(map[string]struct{})
	if caller.UserID != "" {
		ids, err := t.memberships.ListTeamIDsByUser(ctx, caller.UserID)
		if err != nil {
			return nil, systemError(l, "failed to list memberships", err)
		}
		for _, id := range ids {
			joined[id] = struct{}{}
		}
	}

	for _, team := range teams {
		view := toView(team)
		view.MemberCount = counts[team.ID]
		_, view.Joined = joined[team.ID]
		if owner, ok := owners[team.OwnerID]; ok {
			view.Owner = toUserView(owner)
		}
		res = append(res, view)
	}
	return res, nil
}

func toView(team *repository.Team) *model.TeamView {
	return &model.TeamView{
		ID:          team.ID,
		Name:        team.Name,
		Description: team.Description,
		Capacity:    team.Capacity,
		Visibility:  team.Visibility,
		ExpiresAt:   team.ExpiresAt,
		Version:     team.Version,
		OwnerID:     team.OwnerID,
		CreatedAt:   team.CreatedAt,
	}
}

func toUserView(user *repository.User) *model.UserView {
	return &model.UserView{
		ID:        user.ID,
		Username:  user.Username,
		AvatarURL: user.AvatarURL,
		Gender:    user.Gender,
		Phone:     model.MaskPhone(user.Phone),
		Email:     model.MaskEmail(user.Email),
	}
}
