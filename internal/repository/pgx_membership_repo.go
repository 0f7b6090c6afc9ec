package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/yakoovad/teamhub/internal/db"
)

type pgxMembershipRepository struct {
	pool *pgxpool.Pool
}

func NewPgxMembershipRepository(pool *pgxpool.Pool) MembershipRepository {
	return &pgxMembershipRepository{pool: pool}
}

func (p *pgxMembershipRepository) Create(ctx context.Context, m *Membership) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("membership", "user_id", "team_id", "joined_at"),
		im.Values(psql.Arg(m.UserID), psql.Arg(m.TeamID), psql.Arg(m.JoinedAt)),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrAlreadyExists
		case "23503": // team_id does not reference an existing team
			return ErrNotFound
		}
	}

	return err
}

func (p *pgxMembershipRepository) Exists(ctx context.Context, userID, teamID string) (bool, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("count(*)"),
		sm.From("membership"),
		sm.Where(psql.Quote("user_id").EQ(psql.Arg(userID))),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return false, err
	}

	var n int
	if err = e.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *pgxMembershipRepository) Delete(ctx context.Context, userID, teamID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("membership"),
		dm.Where(psql.Quote("user_id").EQ(psql.Arg(userID))),
		dm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	tag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *pgxMembershipRepository) DeleteByTeam(ctx context.Context, teamID string) (int64, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("membership"),
		dm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *pgxMembershipRepository) CountByTeam(ctx context.Context, teamID string) (int, error) {
	return p.count(ctx, "team_id", teamID)
}

func (p *pgxMembershipRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	return p.count(ctx, "user_id", userID)
}

func (p *pgxMembershipRepository) count(ctx context.Context, column, value string) (int, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("count(*)"),
		sm.From("membership"),
		sm.Where(psql.Quote(column).EQ(psql.Arg(value))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	if err = e.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *pgxMembershipRepository) ListByTeam(ctx context.Context, teamID string) ([]*Membership, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("user_id", "team_id", "joined_at"),
		sm.From("membership"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
		sm.OrderBy("joined_at").Asc(),
		sm.OrderBy("user_id").Asc(),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Membership, error) {
		m := &Membership{}
		if err := row.Scan(&m.UserID, &m.TeamID, &m.JoinedAt); err != nil {
			return nil, err
		}
		return m, nil
	})
}

func (p *pgxMembershipRepository) ListTeamIDsByUser(ctx context.Context, userID string) ([]string, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("team_id"),
		sm.From("membership"),
		sm.Where(psql.Quote("user_id").EQ(psql.Arg(userID))),
		sm.OrderBy("joined_at").Asc(),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (p *pgxMembershipRepository) CountByTeams(ctx context.Context, teamIDs []string) (map[string]int, error) {
	res := make(map[string]int, len(teamIDs))
	if len(teamIDs) == 0 {
		return res, nil
	}

	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("team_id", "count(*)"),
		sm.From("membership"),
		sm.Where(psql.Quote("team_id").In(args(teamIDs)...)),
		sm.GroupBy("team_id"),
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

	for rows.Next() {
		var (
			id string
			n  int
		)
		if err = rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		res[id] = n
	}

	return res, rows.Err()
}
