package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/yakoovad/teamhub/internal/db"
)

var teamColumns = []any{
	"id", "owner_id", "name", "description", "capacity", "visibility",
	"password_hash", "expires_at", "version", "created_at", "updated_at",
}

type pgxTeamRepository struct {
	pool *pgxpool.Pool
}

func NewPgxTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &pgxTeamRepository{pool: pool}
}

func (p *pgxTeamRepository) Create(ctx context.Context, team *Team) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("team", "id", "owner_id", "name", "description", "capacity", "visibility",
			"password_hash", "expires_at", "version", "created_at", "updated_at"),
		im.Values(
			psql.Arg(team.ID),
			psql.Arg(team.OwnerID),
			psql.Arg(team.Name),
			psql.Arg(team.Description),
			psql.Arg(team.Capacity),
			psql.Arg(team.Visibility),
			psql.Arg(team.PasswordHash),
			psql.Arg(team.ExpiresAt),
			psql.Arg(team.Version),
			psql.Arg(team.CreatedAt),
			psql.Arg(team.UpdatedAt),
		),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}

	return err
}

func (p *pgxTeamRepository) Get(ctx context.Context, id string) (*Team, error) {
	return p.get(ctx, id, false)
}

func (p *pgxTeamRepository) GetForUpdate(ctx context.Context, id string) (*Team, error) {
	return p.get(ctx, id, true)
}

func (p *pgxTeamRepository) get(ctx context.Context, id string, forUpdate bool) (*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	mods := []bob.Mod[*dialect.SelectQuery]{
		sm.Columns(teamColumns...),
		sm.From("team"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	}
	if forUpdate {
		mods = append(mods, sm.ForUpdate("team"))
	}

	sql, args, err := psql.Select(mods...).Build(ctx)
	if err != nil {
		return nil, err
	}

	team, err := scanTeam(e.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return team, nil
}

func (p *pgxTeamRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("count(*)"),
		sm.From("team"),
		sm.Where(psql.Quote("owner_id").EQ(psql.Arg(ownerID))),
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

func (p *pgxTeamRepository) Patch(ctx context.Context, patch *TeamPatch) (*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sets := make([]bob.Mod[*dialect.UpdateQuery], 0, 8)

	if patch.OwnerID != nil {
		sets = append(sets, um.SetCol("owner_id").ToArg(*patch.OwnerID))
	}
	if patch.Name != nil {
		sets = append(sets, um.SetCol("name").ToArg(*patch.Name))
	}
	if patch.Description != nil {
		sets = append(sets, um.SetCol("description").ToArg(*patch.Description))
	}
	if patch.Visibility != nil {
		sets = append(sets, um.SetCol("visibility").ToArg(*patch.Visibility))
	}
	if patch.PasswordHash != nil {
		sets = append(sets, um.SetCol("password_hash").ToArg(*patch.PasswordHash))
	}
	if patch.ExpiresAt != nil {
		sets = append(sets, um.SetCol("expires_at").ToArg(*patch.ExpiresAt))
	}
	sets = append(sets,
		um.SetCol("version").To(psql.Raw("version + 1")),
		um.SetCol("updated_at").ToArg(patch.UpdatedAt),
	)

	q := psql.Update(
		um.Table("team"),
		um.Where(psql.Quote("id").EQ(psql.Arg(patch.ID))),
		um.Where(psql.Quote("version").EQ(psql.Arg(patch.Version))),
		um.Returning(teamColumns...),
	)

	q.Apply(sets...)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	team, err := scanTeam(e.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the row is gone or somebody bumped the version first.
		if _, getErr := p.Get(ctx, patch.ID); errors.Is(getErr, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrVersionConflict
	}
	if err != nil {
		return nil, err
	}
	return team, nil
}

func (p *pgxTeamRepository) Delete(ctx context.Context, id string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("team"),
		dm.Where(psql.Quote("id").EQ(psql.Arg(id))),
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

func (p *pgxTeamRepository) List(ctx context.Context, filter *TeamFilter) ([]*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	mods := []bob.Mod[*dialect.SelectQuery]{
		sm.Columns(teamColumns...),
		sm.From("team"),
	}

	if len(filter.IDs) > 0 {
		mods = append(mods, sm.Where(psql.Quote("id").In(args(filter.IDs)...)))
	}
	if filter.SearchText != "" {
		pattern := likePattern(filter.SearchText)
		mods = append(mods, sm.Where(psql.Raw("(name ILIKE ? OR description ILIKE ?)", pattern, pattern)))
	}
	if filter.Name != "" {
		mods = append(mods, sm.Where(psql.Raw("name ILIKE ?", likePattern(filter.Name))))
	}
	if filter.Description != "" {
		mods = append(mods, sm.Where(psql.Raw("description ILIKE ?", likePattern(filter.Description))))
	}
	if filter.Capacity > 0 {
		mods = append(mods, sm.Where(psql.Quote("capacity").EQ(psql.Arg(filter.Capacity))))
	}
	if filter.OwnerID != "" {
		mods = append(mods, sm.Where(psql.Quote("owner_id").EQ(psql.Arg(filter.OwnerID))))
	}
	if len(filter.Visibilities) > 0 {
		vals := make([]string, 0, len(filter.Visibilities))
		for _, v := range filter.Visibilities {
			vals = append(vals, string(v))
		}
		mods = append(mods, sm.Where(psql.Quote("visibility").In(args(vals)...)))
	}
	if !filter.ActiveAt.IsZero() {
		mods = append(mods, sm.Where(psql.Raw("(expires_at IS NULL OR expires_at > ?)", filter.ActiveAt)))
	}

	mods = append(mods, sm.OrderBy("created_at").Desc(), sm.OrderBy("id").Asc())

	if filter.Limit > 0 {
		mods = append(mods, sm.Limit(psql.Arg(filter.Limit)))
	}
	if filter.Offset > 0 {
		mods = append(mods, sm.Offset(psql.Arg(filter.Offset)))
	}

	sql, qargs, err := psql.Select(mods...).Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, qargs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Team, error) {
		return scanTeam(row)
	})
}

func scanTeam(row pgx.Row) (*Team, error) {
	team := &Team{}
	if err := row.Scan(
		&team.ID,
		&team.OwnerID,
		&team.Name,
		&team.Description,
		&team.Capacity,
		&team.Visibility,
		&team.PasswordHash,
		&team.ExpiresAt,
		&team.Version,
		&team.CreatedAt,
		&team.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return team, nil
}

func args(vals []string) []bob.Expression {
	res := make([]bob.Expression, 0, len(vals))
	for _, v := range vals {
		res = append(res, psql.Arg(v))
	}
	return res
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
