package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/yakoovad/teamhub/internal/auth"
	"github.com/yakoovad/teamhub/internal/model"
	"github.com/yakoovad/teamhub/internal/service"
	"github.com/yakoovad/teamhub/pkg/logger"
	"go.uber.org/zap"
)

type Handler struct {
	team     *service.TeamService
	identity *auth.Identity

	healthChecker HealthChecker
	metrics       http.Handler

	logger *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

func (h *Handler) WithHealthChecker(c HealthChecker) *Handler {
	h.healthChecker = c
	return h
}

func (h *Handler) WithMetricsHandler(m http.Handler) *Handler {
	h.metrics = m
	return h
}

func (h *Handler) WithTeamService(team *service.TeamService) *Handler {
	h.team = team
	return h
}

func (h *Handler) WithIdentity(identity *auth.Identity) *Handler {
	h.identity = identity
	return h
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.Validator = NewValidator()
	e.Use(middleware.RequestID())
	e.Use(ZapLoggerMiddleware(h.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	if h.healthChecker != nil {
		e.GET("/health", h.healthChecker.HealthCheck())
	}
	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics))
	}

	public := e.Group("", AuthMiddleware(h.identity, false))

	public.GET("/team/get", h.GetTeam)
	public.GET("/team/list", h.ListTeams)

	userSecurity := e.Group("", AuthMiddleware(h.identity, true))

	userSecurity.POST("/team/add", h.AddTeam)
	userSecurity.POST("/team/update", h.UpdateTeam)
	userSecurity.POST("/team/delete", h.DeleteTeam)
	userSecurity.POST("/team/join", h.JoinTeam)
	userSecurity.POST("/team/quit", h.QuitTeam)
	userSecurity.GET("/team/list/my/create", h.ListOwnedTeams)
	userSecurity.GET("/team/list/my/join", h.ListJoinedTeams)
}

type teamIDRequest struct {
	TeamID string `json:"team_id" validate:"required"`
}

type teamIDResponse struct {
	TeamID string `json:"team_id"`
}

func (h *Handler) AddTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := callerFrom(e)

	spec := &model.TeamSpec{}

	if err := h.decodeRequest(e, spec); err != nil {
		l.Warn("invalid request", zap.Any("error", err))
		return transportError(e, err)
	}

	id, err := h.team.CreateTeam(e.Request().Context(), caller.UserID, spec)
	if err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusCreated, teamIDResponse{TeamID: id})
}

func (h *Handler) UpdateTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	patch := &model.TeamPatch{}

	if err := h.decodeRequest(e, patch); err != nil {
		l.Warn("invalid request", zap.Any("error", err))
		return transportError(e, err)
	}

	view, err := h.team.UpdateTeam(e.Request().Context(), callerFrom(e), patch)
	if err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, view)
}

func (h *Handler) DeleteTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req teamIDRequest

	if err := h.decodeRequest(e, &req); err != nil {
		l.Warn("invalid request", zap.Any("error", err))
		return transportError(e, err)
	}

	if err := h.team.DeleteTeam(e.Request().Context(), callerFrom(e).UserID, req.TeamID); err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, teamIDResponse{TeamID: req.TeamID})
}

func (h *Handler) JoinTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		TeamID   string `json:"team_id" validate:"required"`
		Password string `json:"password" validate:"max=32"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Warn("invalid request", zap.Any("error", err))
		return transportError(e, err)
	}

	if err := h.team.JoinTeam(e.Request().Context(), callerFrom(e), req.TeamID, req.Password); err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, teamIDResponse{TeamID: req.TeamID})
}

func (h *Handler) QuitTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req teamIDRequest

	if err := h.decodeRequest(e, &req); err != nil {
		l.Warn("invalid request", zap.Any("error", err))
		return transportError(e, err)
	}

	if err := h.team.QuitTeam(e.Request().Context(), callerFrom(e).UserID, req.TeamID); err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, teamIDResponse{TeamID: req.TeamID})
}

func (h *Handler) GetTeam(e echo.Context) error {
	teamID := e.QueryParam("team_id")
	if teamID == "" {
		return transportError(e, service.NewError(service.ErrorCodeInvalidArgument, "team_id is required"))
	}

	team, err := h.team.GetTeam(e.Request().Context(), callerFrom(e), teamID)
	if err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, team)
}

func (h *Handler) ListTeams(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	filter := &model.TeamFilter{}

	if err := h.decodeRequest(e, filter); err != nil {
		l.Warn("invalid request", zap.Any("error", err))
		return transportError(e, err)
	}

	teams, err := h.team.ListTeams(e.Request().Context(), callerFrom(e), filter)
	if err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, teams)
}

func (h *Handler) ListOwnedTeams(e echo.Context) error {
	teams, err := h.team.ListOwnedTeams(e.Request().Context(), callerFrom(e).UserID)
	if err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, teams)
}

func (h *Handler) ListJoinedTeams(e echo.Context) error {
	teams, err := h.team.ListJoinedTeams(e.Request().Context(), callerFrom(e).UserID)
	if err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, teams)
}

func (h *Handler) decodeRequest(e echo.Context, req any) *service.Error {
	if err := e.Bind(req); err != nil {
		return service.NewError(service.ErrorCodeInvalidArgument, "invalid request body")
	}

	if err := e.Validate(req); err != nil {
		return service.NewError(service.ErrorCodeInvalidArgument, errors.Wrap(err, "request validation failed").Error())
	}
	return nil
}

func transportError(e echo.Context, err *service.Error) error {
	response := struct {
		Error *service.Error `json:"error"`
	}{Error: err}

	switch err.Code {
	case service.ErrorCodeInvalidArgument:
		return e.JSON(http.StatusBadRequest, response)
	case service.ErrorCodeNotFound:
		return e.JSON(http.StatusNotFound, response)
	case service.ErrorCodeForbidden:
		return e.JSON(http.StatusForbidden, response)
	case service.ErrorCodeUnauthorized, service.ErrorCodeUnauthenticated:
		return e.JSON(http.StatusUnauthorized, response)
	case service.ErrorCodeQuotaExceeded, service.ErrorCodeTeamFull, service.ErrorCodeAlreadyMember,
		service.ErrorCodeNotMember, service.ErrorCodeConflict:
		return e.JSON(http.StatusConflict, response)
	case service.ErrorCodeExpired:
		return e.JSON(http.StatusGone, response)
	default:
		return e.JSON(http.StatusInternalServerError, response)
	}
}
