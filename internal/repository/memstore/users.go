package memstore

import (
	"context"

	"github.com/hashicorp/go-memdb"
	"github.com/yakoovad/teamhub/internal/repository"
)

type userRepository struct {
	store *Store
}

func (r *userRepository) Get(ctx context.Context, id string) (*repository.User, error) {
	raw, err := r.store.read(ctx).First(tableUsers, "id", id)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, repository.ErrNotFound
	}

	cp := *raw.(*repository.User)
	return &cp, nil
}

func (r *userRepository) GetMany(ctx context.Context, ids []string) (map[string]*repository.User, error) {
	txn := r.store.read(ctx)

	res := make(map[string]*repository.User, len(ids))
	for _, id := range ids {
		raw, err := txn.First(tableUsers, "id", id)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			continue
		}
		cp := *raw.(*repository.User)
		res[id] = &cp
	}
	return res, nil
}

func (r *userRepository) Upsert(ctx context.Context, user *repository.User) error {
	return r.store.write(ctx, func(txn *memdb.Txn) error {
		cp := *user
		return txn.Insert(tableUsers, &cp)
	})
}
