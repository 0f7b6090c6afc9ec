package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/yakoovad/teamhub/internal/db"
)

var userColumns = []any{"id", "username", "avatar_url", "gender", "phone", "email", "user_role"}

type pgxUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgxUserRepository(pool *pgxpool.Pool) UserRepository {
	return &pgxUserRepository{pool: pool}
}

func (p *pgxUserRepository) Get(ctx context.Context, id string) (*User, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(userColumns...),
		sm.From("users"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)
	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	u, err := scanUser(e.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (p *pgxUserRepository) GetMany(ctx context.Context, ids []string) (map[string]*User, error) {
	res := make(map[string]*User, len(ids))
	if len(ids) == 0 {
		return res, nil
	}

	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(userColumns...),
		sm.From("users"),
		sm.Where(psql.Quote("id").In(args(ids)...)),
	)
	sql, qargs, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, qargs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		res[u.ID] = u
	}
	return res, nil
}

func (p *pgxUserRepository) Upsert(ctx context.Context, user *User) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("users", "id", "username", "avatar_url", "gender", "phone", "email", "user_role"),
		im.Values(
			psql.Arg(user.ID),
			psql.Arg(user.Username),
			psql.Arg(user.AvatarURL),
			psql.Arg(user.Gender),
			psql.Arg(user.Phone),
			psql.Arg(user.Email),
			psql.Arg(user.Role),
		),
		im.OnConflict(psql.Quote("id")).DoUpdate(
			im.SetCol("username").ToArg(user.Username),
			im.SetCol("avatar_url").ToArg(user.AvatarURL),
			im.SetCol("gender").ToArg(user.Gender),
			im.SetCol("phone").ToArg(user.Phone),
			im.SetCol("email").ToArg(user.Email),
			im.SetCol("user_role").ToArg(user.Role),
		),
	)
	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	if _, err = e.Exec(ctx, sql, args...); err != nil {
		return err
	}

	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.AvatarURL,
		&u.Gender,
		&u.Phone,
		&u.Email,
		&u.Role,
	); err != nil {
		return nil, err
	}
	return u, nil
}
