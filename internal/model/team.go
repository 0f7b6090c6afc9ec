package model

import "time"

const (
	MaxTeamsOwned  = 5
	MaxTeamsJoined = 5
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilitySecret  Visibility = "secret"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilitySecret:
		return true
	}
	return false
}

// Caller is an already resolved identity on whose behalf an operation runs.
// An empty UserID is an anonymous caller.
type Caller struct {
	UserID  string
	IsAdmin bool
}

// TeamSpec describes a team to be created.
type TeamSpec struct {
	Name        string     `json:"name" validate:"notblank,max=20"`
	Description string     `json:"description" validate:"max=512"`
	Capacity    int        `json:"capacity" validate:"min=1,max=20"`
	Visibility  Visibility `json:"visibility" validate:"omitempty,oneof=public private secret"`
	Password    string     `json:"password" validate:"max=32"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// TeamPatch is a field-level update. Nil fields are left untouched.
// Version, when set, must match the stored version.
type TeamPatch struct {
	ID          string      `json:"id" validate:"required"`
	Version     *int64      `json:"version"`
	Name        *string     `json:"name" validate:"omitnil,notblank,max=20"`
	Description *string     `json:"description" validate:"omitnil,max=512"`
	Visibility  *Visibility `json:"visibility" validate:"omitnil,oneof=public private secret"`
	Password    *string     `json:"password" validate:"omitnil,max=32"`
	ExpiresAt   *time.Time  `json:"expires_at"`
}

// TeamFilter narrows ListTeams. Zero values are ignored.
type TeamFilter struct {
	ID          string     `json:"id" query:"id"`
	IDs         []string   `json:"ids" query:"ids"`
	SearchText  string     `json:"search_text" query:"search_text"`
	Name        string     `json:"name" query:"name"`
	Description string     `json:"description" query:"description"`
	Capacity    int        `json:"capacity" query:"capacity" validate:"min=0,max=20"`
	OwnerID     string     `json:"owner_id" query:"owner_id"`
	Visibility  Visibility `json:"visibility" query:"visibility" validate:"omitempty,oneof=public private secret"`
	PageNum     int        `json:"page_num" query:"page_num" validate:"min=0"`
	PageSize    int        `json:"page_size" query:"page_size" validate:"min=0,max=100"`
}

type TeamView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Capacity    int        `json:"capacity"`
	Visibility  Visibility `json:"visibility"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Version     int64      `json:"version"`
	OwnerID     string     `json:"owner_id"`
	Owner       *UserView  `json:"owner,omitempty"`
	MemberCount int        `json:"member_count"`
	Joined      bool       `json:"joined"`
	CreatedAt   time.Time  `json:"created_at"`
}
