package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yakoovad/teamhub/internal/model"
	"github.com/yakoovad/teamhub/internal/repository"
)

func TestTeamService_ListTeams(t *testing.T) {
	teams := []*repository.Team{
		{ID: "t2", OwnerID: "u1", Name: "b", Capacity: 4, Visibility: model.VisibilitySecret, PasswordHash: "hash", Version: 1},
		{ID: "t1", OwnerID: "u2", Name: "a", Capacity: 2, Visibility: model.VisibilityPublic},
	}
	owners := map[string]*repository.User{
		"u1": {ID: "u1", Username: "alice", Phone: "13812345678", Email: "alice@example.com", Gender: model.GenderFemale},
	}

	tests := []struct {
		name         string
		caller       model.Caller
		filter       *model.TeamFilter
		setupMocks   func(*mocks)
		expectedCode ErrorCode
		expected     []*model.TeamView
	}{
		{
			name:   "user defaults",
			caller: model.Caller{UserID: "u3"},
			filter: &model.TeamFilter{SearchText: "hike"},
			setupMocks: func(m *mocks) {
				m.teams.On("List", mock.Anything, mock.MatchedBy(func(f *repository.TeamFilter) bool {
					return f.SearchText == "hike" && f.Limit == 20 && f.Offset == 0 && f.ActiveAt.Equal(fixedNow) &&
						assert.ObjectsAreEqual([]model.Visibility{model.VisibilityPublic, model.VisibilitySecret}, f.Visibilities)
				})).Return(teams, nil)
				m.users.On("GetMany", mock.Anything, []string{"u1", "u2"}).Return(owners, nil)
				m.memberships.On("CountByTeams", mock.Anything, []string{"t2", "t1"}).Return(map[string]int{"t2": 3, "t1": 1}, nil)
				m.memberships.On("ListTeamIDsByUser", mock.Anything, "u3").Return([]string{"t1"}, nil)
			},
			expected: []*model.TeamView{
				{
					ID: "t2", OwnerID: "u1", Name: "b", Capacity: 4, Visibility: model.VisibilitySecret, Version: 1, MemberCount: 3,
					Owner: &model.UserView{ID: "u1", Username: "alice", Phone: "138****5678", Email: "a****@example.com", Gender: model.GenderFemale},
				},
				{ID: "t1", OwnerID: "u2", Name: "a", Capacity: 2, Visibility: model.VisibilityPublic, MemberCount: 1, Joined: true},
			},
		},
		{
			name:   "anonymous caller with paging and ids",
			caller: model.Caller{},
			filter: &model.TeamFilter{ID: "t1", IDs: []string{"t2"}, PageNum: 3, PageSize: 10},
			setupMocks: func(m *mocks) {
				m.teams.On("List", mock.Anything, mock.MatchedBy(func(f *repository.TeamFilter) bool {
					return f.Limit == 10 && f.Offset == 20 && assert.ObjectsAreEqual([]string{"t1", "t2"}, f.IDs)
				})).Return([]*repository.Team{}, nil)
			},
			expected: []*model.TeamView{},
		},
		{
			name:         "user asks for private teams",
			caller:       model.Caller{UserID: "u3"},
			filter:       &model.TeamFilter{Visibility: model.VisibilityPrivate},
			setupMocks:   func(m *mocks) {},
			expectedCode: ErrorCodeForbidden,
		},
		{
			name:   "admin sees every visibility",
			caller: model.Caller{UserID: "admin", IsAdmin: true},
			filter: &model.TeamFilter{},
			setupMocks: func(m *mocks) {
				m.teams.On("List", mock.Anything, mock.MatchedBy(func(f *repository.TeamFilter) bool {
					return f.Visibilities == nil
				})).Return([]*repository.Team{}, nil)
			},
			expected: []*model.TeamView{},
		},
		{
			name:         "page size too large",
			caller:       model.Caller{UserID: "u3"},
			filter:       &model.TeamFilter{PageSize: 500},
			setupMocks:   func(m *mocks) {},
			expectedCode: ErrorCodeInvalidArgument,
		},
		{
			name:   "storage failure",
			caller: model.Caller{UserID: "u3"},
			filter: &model.TeamFilter{},
			setupMocks: func(m *mocks) {
				m.teams.On("List", mock.Anything, mock.Anything).Return(nil, errors.New("db error"))
			},
			expectedCode: ErrorCodeSystem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMocks(nil)
			tt.setupMocks(m)

			got, err := m.service().ListTeams(context.Background(), tt.caller, tt.filter)

			assertCode(t, tt.expectedCode, err)
			assert.Equal(t, tt.expected, got)
			m.assertExpectations(t)
		})
	}
}

func TestTeamService_GetTeam(t *testing.T) {
	past := fixedNow.Add(-time.Second)

	tests := []struct {
		name         string
		caller       model.Caller
		team         *repository.Team
		getErr       error
		expectedCode ErrorCode
	}{
		{name: "public", caller: model.Caller{UserID: "u2"}, team: &repository.Team{ID: "t1", OwnerID: "u1", Visibility: model.VisibilityPublic}},
		{name: "private for owner", caller: model.Caller{UserID: "u1"}, team: &repository.Team{ID: "t1", OwnerID: "u1", Visibility: model.VisibilityPrivate}},
		{name: "private for admin", caller: model.Caller{UserID: "a", IsAdmin: true}, team: &repository.Team{ID: "t1", OwnerID: "u1", Visibility: model.VisibilityPrivate}},
		{
			name:         "private for stranger looks absent",
			caller:       model.Caller{UserID: "u2"},
			team:         &repository.Team{ID: "t1", OwnerID: "u1", Visibility: model.VisibilityPrivate},
			expectedCode: ErrorCodeNotFound,
		},
		{
			name:         "expired",
			caller:       model.Caller{UserID: "u1"},
			team:         &repository.Team{ID: "t1", OwnerID: "u1", Visibility: model.VisibilityPublic, ExpiresAt: &past},
			expectedCode: ErrorCodeExpired,
		},
		{name: "missing", caller: model.Caller{UserID: "u1"}, getErr: repository.ErrNotFound, expectedCode: ErrorCodeNotFound},
		{name: "storage failure", caller: model.Caller{UserID: "u1"}, getErr: errors.New("db error"), expectedCode: ErrorCodeSystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMocks(nil)
			if tt.team != nil {
				m.teams.On("Get", mock.Anything, "t1").Return(tt.team, nil)
			} else {
				m.teams.On("Get", mock.Anything, "t1").Return(nil, tt.getErr)
			}
			if tt.expectedCode == "" {
				m.users.On("GetMany", mock.Anything, []string{"u1"}).Return(map[string]*repository.User{}, nil)
				m.memberships.On("CountByTeams", mock.Anything, []string{"t1"}).Return(map[string]int{"t1": 1}, nil)
				m.memberships.On("ListTeamIDsByUser", mock.Anything, tt.caller.UserID).Return([]string{}, nil)
			}

			got, err := m.service().GetTeam(context.Background(), tt.caller, "t1")

			assertCode(t, tt.expectedCode, err)
			if tt.expectedCode == "" {
				require.NotNil(t, got)
				assert.Equal(t, "t1", got.ID)
				assert.Equal(t, 1, got.MemberCount)
				assert.Nil(t, got.Owner)
			} else {
				assert.Nil(t, got)
			}
			m.assertExpectations(t)
		})
	}
}

func TestTeamService_ListMyTeams(t *testing.T) {
	m := newMocks(nil)

	owned := []*repository.Team{{ID: "t1", OwnerID: "u1", Visibility: model.VisibilityPrivate}}
	joined := []*repository.Team{{ID: "t1", OwnerID: "u1", Visibility: model.VisibilityPrivate}, {ID: "t2", OwnerID: "u2"}}

	m.teams.On("List", mock.Anything, &repository.TeamFilter{OwnerID: "u1", ActiveAt: fixedNow}).Return(owned, nil)
	m.teams.On("List", mock.Anything, &repository.TeamFilter{IDs: []string{"t2", "t1"}, ActiveAt: fixedNow}).Return(joined, nil)
	m.memberships.On("ListTeamIDsByUser", mock.Anything, "u1").Return([]string{"t2", "t1"}, nil)
	m.users.On("GetMany", mock.Anything, mock.Anything).Return(map[string]*repository.User{}, nil)
	m.memberships.On("CountByTeams", mock.Anything, mock.Anything).Return(map[string]int{"t1": 2, "t2": 1}, nil)

	s := m.service()

	got, err := s.ListOwnedTeams(context.Background(), "u1")
	require.Nil(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Joined)

	got, err = s.ListJoinedTeams(context.Background(), "u1")
	require.Nil(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[1].Joined)

	_, err = s.ListOwnedTeams(context.Background(), "")
	assertCode(t, ErrorCodeUnauthenticated, err)

	m.assertExpectations(t)
}
