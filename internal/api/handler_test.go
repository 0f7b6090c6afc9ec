package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yakoovad/teamhub/internal/auth"
	"github.com/yakoovad/teamhub/internal/lock"
	"github.com/yakoovad/teamhub/internal/model"
	"github.com/yakoovad/teamhub/internal/repository/memstore"
	"github.com/yakoovad/teamhub/internal/service"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	auth.TokenSecretKey = "handler-test-secret"

	store, err := memstore.New()
	require.NoError(t, err)

	team := service.NewTeamService(store.Transactor(), lock.NewKeyed(time.Second), auth.NewBcryptHasher(bcrypt.MinCost)).
		WithTeamRepo(store.Teams()).
		WithMembershipRepo(store.Memberships()).
		WithUserRepo(store.Users())

	e := echo.New()
	NewHandler(zap.NewNop()).
		WithTeamService(team).
		WithIdentity(auth.NewIdentity(store.Users())).
		RegisterRoutes(e)

	return e
}

func token(t *testing.T, userID string) string {
	t.Helper()

	tok, err := auth.GenerateToken(userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func do(e *echo.Echo, method, target, tok, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) service.ErrorCode {
	t.Helper()

	var resp struct {
		Error service.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestHandler_TeamLifecycle(t *testing.T) {
	e := newTestServer(t)
	owner, member := token(t, "u1"), token(t, "u2")

	rec := do(e, http.MethodPost, "/team/add", owner, `{"name":"hikers","capacity":2,"description":"weekend trips"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created teamIDResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.TeamID)

	rec = do(e, http.MethodGet, "/team/get?team_id="+created.TeamID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view model.TeamView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "hikers", view.Name)
	assert.Equal(t, 1, view.MemberCount)
	assert.False(t, view.Joined)

	joinBody := `{"team_id":"` + created.TeamID + `"}`

	rec = do(e, http.MethodPost, "/team/join", member, joinBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(e, http.MethodPost, "/team/join", member, joinBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, service.ErrorCodeAlreadyMember, errorCode(t, rec))

	rec = do(e, http.MethodPost, "/team/join", token(t, "u3"), joinBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, service.ErrorCodeTeamFull, errorCode(t, rec))

	rec = do(e, http.MethodGet, "/team/list/my/join", member, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var joined []model.TeamView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &joined))
	require.Len(t, joined, 1)
	assert.True(t, joined[0].Joined)

	rec = do(e, http.MethodPost, "/team/delete", member, joinBody)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(e, http.MethodPost, "/team/quit", member, joinBody)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodPost, "/team/delete", owner, joinBody)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodGet, "/team/get?team_id="+created.TeamID, owner, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_Errors(t *testing.T) {
	e := newTestServer(t)

	tests := []struct {
		name           string
		method         string
		target         string
		token          string
		body           string
		expectedStatus int
		expectedCode   service.ErrorCode
	}{
		{
			name:           "missing token",
			method:         http.MethodPost,
			target:         "/team/add",
			body:           `{"name":"x","capacity":2}`,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   service.ErrorCodeUnauthenticated,
		},
		{
			name:           "garbage token on an open route",
			method:         http.MethodGet,
			target:         "/team/list",
			token:          "garbage",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   service.ErrorCodeUnauthenticated,
		},
		{
			name:           "invalid capacity",
			method:         http.MethodPost,
			target:         "/team/add",
			token:          token(t, "u1"),
			body:           `{"name":"x","capacity":0}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   service.ErrorCodeInvalidArgument,
		},
		{
			name:           "malformed json",
			method:         http.MethodPost,
			target:         "/team/join",
			token:          token(t, "u1"),
			body:           `{"team_id":`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   service.ErrorCodeInvalidArgument,
		},
		{
			name:           "private listing for a regular user",
			method:         http.MethodGet,
			target:         "/team/list?visibility=private",
			token:          token(t, "u1"),
			expectedStatus: http.StatusForbidden,
			expectedCode:   service.ErrorCodeForbidden,
		},
		{
			name:           "quit unknown team",
			method:         http.MethodPost,
			target:         "/team/quit",
			token:          token(t, "u1"),
			body:           `{"team_id":"nope"}`,
			expectedStatus: http.StatusNotFound,
			expectedCode:   service.ErrorCodeNotFound,
		},
		{
			name:           "get without id",
			method:         http.MethodGet,
			target:         "/team/get",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   service.ErrorCodeInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, tt.method, tt.target, tt.token, tt.body)

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.expectedCode, errorCode(t, rec))
		})
	}
}

func TestHandler_ListTeamsAnonymously(t *testing.T) {
	e := newTestServer(t)
	owner := token(t, "u1")

	for _, body := range []string{
		`{"name":"open","capacity":3}`,
		`{"name":"hidden","capacity":3,"visibility":"private"}`,
		`{"name":"locked","capacity":3,"visibility":"secret","password":"pw"}`,
	} {
		rec := do(e, http.MethodPost, "/team/add", owner, body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := do(e, http.MethodGet, "/team/list?page_size=10", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var teams []model.TeamView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &teams))

	names := make([]string, 0, len(teams))
	for _, team := range teams {
		names = append(names, team.Name)
	}
	assert.ElementsMatch(t, []string{"open", "locked"}, names)
	assert.NotContains(t, rec.Body.String(), "password")
}
