package memstore

import (
	"context"
	"sort"

	"github.com/hashicorp/go-memdb"
	"github.com/yakoovad/teamhub/internal/repository"
)

type membershipRepository struct {
	store *Store
}

func (r *membershipRepository) Create(ctx context.Context, m *repository.Membership) error {
	return r.store.write(ctx, func(txn *memdb.Txn) error {
		team, err := txn.First(tableTeam, "id", m.TeamID)
		if err != nil {
			return err
		}
		if team == nil {
			return repository.ErrNotFound
		}

		existing, err := txn.First(tableMembership, "id", m.UserID, m.TeamID)
		if err != nil {
			return err
		}
		if existing != nil {
			return repository.ErrAlreadyExists
		}

		cp := *m
		return txn.Insert(tableMembership, &cp)
	})
}

func (r *membershipRepository) Exists(ctx context.Context, userID, teamID string) (bool, error) {
	raw, err := r.store.read(ctx).First(tableMembership, "id", userID, teamID)
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

func (r *membershipRepository) Delete(ctx context.Context, userID, teamID string) error {
	return r.store.write(ctx, func(txn *memdb.Txn) error {
		raw, err := txn.First(tableMembership, "id", userID, teamID)
		if err != nil {
			return err
		}
		if raw == nil {
			return repository.ErrNotFound
		}
		return txn.Delete(tableMembership, raw)
	})
}

func (r *membershipRepository) DeleteByTeam(ctx context.Context, teamID string) (int64, error) {
	var n int

	err := r.store.write(ctx, func(txn *memdb.Txn) error {
		var err error
		n, err = txn.DeleteAll(tableMembership, "team", teamID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

func (r *membershipRepository) CountByTeam(ctx context.Context, teamID string) (int, error) {
	return r.count(ctx, "team", teamID)
}

func (r *membershipRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	return r.count(ctx, "user", userID)
}

func (r *membershipRepository) count(ctx context.Context, index, value string) (int, error) {
	it, err := r.store.read(ctx).Get(tableMembership, index, value)
	if err != nil {
		return 0, err
	}

	n := 0
	for obj := it.Next(); obj != nil; obj = it.Next() {
		n++
	}
	return n, nil
}

func (r *membershipRepository) ListByTeam(ctx context.Context, teamID string) ([]*repository.Membership, error) {
	res, err := r.list(ctx, "team", teamID)
	if err != nil {
		return nil, err
	}

	sort.Slice(res, func(i, j int) bool {
		if !res[i].JoinedAt.Equal(res[j].JoinedAt) {
			return res[i].JoinedAt.Before(res[j].JoinedAt)
		}
		return res[i].UserID < res[j].UserID
	})
	return res, nil
}

func (r *membershipRepository) ListTeamIDsByUser(ctx context.Context, userID string) ([]string, error) {
	memberships, err := r.list(ctx, "user", userID)
	if err != nil {
		return nil, err
	}

	sort.Slice(memberships, func(i, j int) bool {
		return memberships[i].JoinedAt.Before(memberships[j].JoinedAt)
	})

	ids := make([]string, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.TeamID)
	}
	return ids, nil
}

func (r *membershipRepository) CountByTeams(ctx context.Context, teamIDs []string) (map[string]int, error) {
	res := make(map[string]int, len(teamIDs))
	for _, id := range teamIDs {
		n, err := r.CountByTeam(ctx, id)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			res[id] = n
		}
	}
	return res, nil
}

func (r *membershipRepository) list(ctx context.Context, index, value string) ([]*repository.Membership, error) {
	it, err := r.store.read(ctx).Get(tableMembership, index, value)
	if err != nil {
		return nil, err
	}

	res := make([]*repository.Membership, 0)
	for obj := it.Next(); obj != nil; obj = it.Next() {
		cp := *obj.(*repository.Membership)
		res = append(res, &cp)
	}
	return res, nil
}
