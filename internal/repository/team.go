package repository

import (
	"context"
	"time"

	"github.com/yakoovad/teamhub/internal/model"
)

type Team struct {
	ID           string           `db:"id"`
	OwnerID      string           `db:"owner_id"`
	Name         string           `db:"name"`
	Description  string           `db:"description"`
	Capacity     int              `db:"capacity"`
	Visibility   model.Visibility `db:"visibility"`
	PasswordHash string           `db:"password_hash"`
	ExpiresAt    *time.Time       `db:"expires_at"`
	Version      int64            `db:"version"`
	CreatedAt    time.Time        `db:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at"`
}

// TeamPatch updates the non-nil fields of the team with ID, provided the stored
// version still equals Version. A successful patch increments the version.
type TeamPatch struct {
	ID           string            `db:"id"`
	Version      int64             `db:"version"`
	OwnerID      *string           `db:"owner_id"`
	Name         *string           `db:"name"`
	Description  *string           `db:"description"`
	Visibility   *model.Visibility `db:"visibility"`
	PasswordHash *string           `db:"password_hash"`
	ExpiresAt    *time.Time        `db:"expires_at"`
	UpdatedAt    time.Time         `db:"updated_at"`
}

type TeamFilter struct {
	IDs          []string
	SearchText   string
	Name         string
	Description  string
	Capacity     int
	OwnerID      string
	Visibilities []model.Visibility
	// ActiveAt excludes teams whose expiry is not after it.
	ActiveAt time.Time
	Limit    int
	Offset   int
}

type TeamRepository interface {
	Create(ctx context.Context, team *Team) error
	Get(ctx context.Context, id string) (*Team, error)
	// GetForUpdate reads the team and locks its row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*Team, error)
	CountByOwner(ctx context.Context, ownerID string) (int, error)
	Patch(ctx context.Context, patch *TeamPatch) (*Team, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter *TeamFilter) ([]*Team, error)
}

type Membership struct {
	UserID   string    `db:"user_id"`
	TeamID   string    `db:"team_id"`
	JoinedAt time.Time `db:"joined_at"`
}

type MembershipRepository interface {
	Create(ctx context.Context, m *Membership) error
	Exists(ctx context.Context, userID, teamID string) (bool, error)
	Delete(ctx context.Context, userID, teamID string) error
	DeleteByTeam(ctx context.Context, teamID string) (int64, error)
	CountByTeam(ctx context.Context, teamID string) (int, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	// ListByTeam returns memberships ordered by joined_at, then user_id.
	ListByTeam(ctx context.Context, teamID string) ([]*Membership, error)
	ListTeamIDsByUser(ctx context.Context, userID string) ([]string, error)
	CountByTeams(ctx context.Context, teamIDs []string) (map[string]int, error)
}

const (
	RoleUser  = 0
	RoleAdmin = 1
)

type User struct {
	ID        string       `db:"id"`
	Username  string       `db:"username"`
	AvatarURL string       `db:"avatar_url"`
	Gender    model.Gender `db:"gender"`
	Phone     string       `db:"phone"`
	Email     string       `db:"email"`
	Role      int          `db:"user_role"`
}

type UserRepository interface {
	Get(ctx context.Context, id string) (*User, error)
	GetMany(ctx context.Context, ids []string) (map[string]*User, error)
	Upsert(ctx context.Context, user *User) error
}
