package auth

import (
	"context"

	"github.com/pkg/errors"
	"github.com/yakoovad/teamhub/internal/model"
	"github.com/yakoovad/teamhub/internal/repository"
)

// Identity turns bearer tokens into callers and answers role questions from the user directory.
type Identity struct {
	users repository.UserRepository
}

func NewIdentity(users repository.UserRepository) *Identity {
	return &Identity{users: users}
}

// ResolveCaller returns the user id carried by token or ErrUnauthenticated.
func (i *Identity) ResolveCaller(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}

	claims, err := VerifyToken(token)
	if err != nil {
		return "", errors.Wrap(ErrUnauthenticated, err.Error())
	}
	return claims.Subject, nil
}

// IsAdmin reports whether the user holds the administrator role. Unknown users are not admins.
func (i *Identity) IsAdmin(ctx context.Context, userID string) (bool, error) {
	user, err := i.users.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to get user")
	}
	return user.Role == repository.RoleAdmin, nil
}

func (i *Identity) Caller(ctx context.Context, token string) (model.Caller, error) {
	userID, err := i.ResolveCaller(ctx, token)
	if err != nil {
		return model.Caller{}, err
	}

	isAdmin, err := i.IsAdmin(ctx, userID)
	if err != nil {
		return model.Caller{}, err
	}
	return model.Caller{UserID: userID, IsAdmin: isAdmin}, nil
}
