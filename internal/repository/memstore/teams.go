package memstore

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/hashicorp/go-memdb"
	"github.com/yakoovad/teamhub/internal/repository"
)

type teamRepository struct {
	store *Store
}

func (r *teamRepository) Create(ctx context.Context, team *repository.Team) error {
	return r.store.write(ctx, func(txn *memdb.Txn) error {
		existing, err := txn.First(tableTeam, "id", team.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return repository.ErrAlreadyExists
		}

		cp := *team
		return txn.Insert(tableTeam, &cp)
	})
}

func (r *teamRepository) Get(ctx context.Context, id string) (*repository.Team, error) {
	return getTeam(r.store.read(ctx), id)
}

// GetForUpdate is Get: an open write transaction already excludes every other writer.
func (r *teamRepository) GetForUpdate(ctx context.Context, id string) (*repository.Team, error) {
	return getTeam(r.store.read(ctx), id)
}

func getTeam(txn *memdb.Txn, id string) (*repository.Team, error) {
	raw, err := txn.First(tableTeam, "id", id)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, repository.ErrNotFound
	}

	cp := *raw.(*repository.Team)
	return &cp, nil
}

func (r *teamRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	it, err := r.store.read(ctx).Get(tableTeam, "owner", ownerID)
	if err != nil {
		return 0, err
	}

	n := 0
	for obj := it.Next(); obj != nil; obj = it.Next() {
		n++
	}
	return n, nil
}

func (r *teamRepository) Patch(ctx context.Context, patch *repository.TeamPatch) (*repository.Team, error) {
	var res *repository.Team

	err := r.store.write(ctx, func(txn *memdb.Txn) error {
		team, err := getTeam(txn, patch.ID)
		if err != nil {
			return err
		}
		if team.Version != patch.Version {
			return repository.ErrVersionConflict
		}

		if patch.OwnerID != nil {
			team.OwnerID = *patch.OwnerID
		}
		if patch.Name != nil {
			team.Name = *patch.Name
		}
		if patch.Description != nil {
			team.Description = *patch.Description
		}
		if patch.Visibility != nil {
			team.Visibility = *patch.Visibility
		}
		if patch.PasswordHash != nil {
			team.PasswordHash = *patch.PasswordHash
		}
		if patch.ExpiresAt != nil {
			expiresAt := *patch.ExpiresAt
			team.ExpiresAt = &expiresAt
		}
		team.Version++
		team.UpdatedAt = patch.UpdatedAt

		if err = txn.Insert(tableTeam, team); err != nil {
			return err
		}

		cp := *team
		res = &cp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *teamRepository) Delete(ctx context.Context, id string) error {
	return r.store.write(ctx, func(txn *memdb.Txn) error {
		raw, err := txn.First(tableTeam, "id", id)
		if err != nil {
			return err
		}
		if raw == nil {
			return repository.ErrNotFound
		}

		// Mirrors the ON DELETE RESTRICT foreign key of the SQL schema.
		member, err := txn.First(tableMembership, "team", id)
		if err != nil {
			return err
		}
		if member != nil {
			return errTeamReferenced
		}

		return txn.Delete(tableTeam, raw)
	})
}

func (r *teamRepository) List(ctx context.Context, filter *repository.TeamFilter) ([]*repository.Team, error) {
	it, err := r.store.read(ctx).Get(tableTeam, "id_prefix", "")
	if err != nil {
		return nil, err
	}

	res := make([]*repository.Team, 0)
	for obj := it.Next(); obj != nil; obj = it.Next() {
		team := obj.(*repository.Team)
		if !matches(team, filter) {
			continue
		}
		cp := *team
		res = append(res, &cp)
	}

	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(res) {
			return []*repository.Team{}, nil
		}
		res = res[filter.Offset:]
	}
	if filter.Limit > 0 && len(res) > filter.Limit {
		res = res[:filter.Limit]
	}

	return res, nil
}

func matches(team *repository.Team, f *repository.TeamFilter) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, team.ID) {
		return false
	}
	if f.SearchText != "" && !containsFold(team.Name, f.SearchText) && !containsFold(team.Description, f.SearchText) {
		return false
	}
	if f.Name != "" && !containsFold(team.Name, f.Name) {
		return false
	}
	if f.Description != "" && !containsFold(team.Description, f.Description) {
		return false
	}
	if f.Capacity > 0 && team.Capacity != f.Capacity {
		return false
	}
	if f.OwnerID != "" && team.OwnerID != f.OwnerID {
		return false
	}
	if len(f.Visibilities) > 0 && !slices.Contains(f.Visibilities, team.Visibility) {
		return false
	}
	if !f.ActiveAt.IsZero() && team.ExpiresAt != nil && !team.ExpiresAt.After(f.ActiveAt) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
