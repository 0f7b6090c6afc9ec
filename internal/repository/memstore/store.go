// Package memstore keeps teams, memberships and users in a hashicorp/go-memdb
// database. It backs STORAGE_DRIVER=memory and the behavioral tests.
//
// Write transactions in go-memdb are exclusive: callers must not wait on
// anything (locks, channels) while a transaction is open.
package memstore

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"
	"github.com/yakoovad/teamhub/internal/db"
	"github.com/yakoovad/teamhub/internal/repository"
)

const (
	tableTeam       = "team"
	tableMembership = "membership"
	tableUsers      = "users"
)

var errTeamReferenced = errors.New("team still has memberships")

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableTeam: {
				Name: tableTeam,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"owner": {
						Name:    "owner",
						Indexer: &memdb.StringFieldIndex{Field: "OwnerID"},
					},
				},
			},
			tableMembership: {
				Name: tableMembership,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:   "id",
						Unique: true,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "UserID"},
								&memdb.StringFieldIndex{Field: "TeamID"},
							},
						},
					},
					"team": {
						Name:    "team",
						Indexer: &memdb.StringFieldIndex{Field: "TeamID"},
					},
					"user": {
						Name:    "user",
						Indexer: &memdb.StringFieldIndex{Field: "UserID"},
					},
				},
			},
			tableUsers: {
				Name: tableUsers,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
				},
			},
		},
	}
}

type txKey struct{}

type Store struct {
	db *memdb.MemDB
}

func New() (*Store, error) {
	mdb, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("failed to create memdb: %w", err)
	}
	return &Store{db: mdb}, nil
}

func (s *Store) Transactor() db.Transactor {
	return &transactor{db: s.db}
}

func (s *Store) Teams() repository.TeamRepository {
	return &teamRepository{store: s}
}

func (s *Store) Memberships() repository.MembershipRepository {
	return &membershipRepository{store: s}
}

func (s *Store) Users() repository.UserRepository {
	return &userRepository{store: s}
}

type transactor struct {
	db *memdb.MemDB
}

func (t *transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*memdb.Txn); ok {
		return fn(ctx)
	}

	txn := t.db.Txn(true)
	// Abort after Commit is a no-op.
	defer txn.Abort()

	if err := fn(context.WithValue(ctx, txKey{}, txn)); err != nil {
		return fmt.Errorf("transaction function failed: %w", err)
	}

	txn.Commit()
	return nil
}

// read returns the transaction carried by ctx or a fresh read-only snapshot.
func (s *Store) read(ctx context.Context) *memdb.Txn {
	if txn, ok := ctx.Value(txKey{}).(*memdb.Txn); ok {
		return txn
	}
	return s.db.Txn(false)
}

// write runs fn in the transaction carried by ctx, or in its own
// single-statement transaction when there is none.
func (s *Store) write(ctx context.Context, fn func(txn *memdb.Txn) error) error {
	if txn, ok := ctx.Value(txKey{}).(*memdb.Txn); ok {
		return fn(txn)
	}

	txn := s.db.Txn(true)
	defer txn.Abort()

	if err := fn(txn); err != nil {
		return err
	}
	txn.Commit()
	return nil
}
