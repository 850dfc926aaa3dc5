package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core/batch"
	"github.com/jayalms/lms/core/enrollment"
	"github.com/jayalms/lms/core/profile"
)

var batchColumns = []string{"id", "name", "description", "start_date", "created_at"}

type batchRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	StartDate   time.Time `db:"start_date"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r batchRow) batch() batch.Batch {
	sd := r.StartDate
	return batch.Batch{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		StartDate:   time.Date(sd.Year(), sd.Month(), sd.Day(), 0, 0, 0, 0, time.UTC),
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type batchRepository struct {
	db *sqlx.DB
}

var _ batch.Repository = (*batchRepository)(nil)

func NewBatchRepository(db *sqlx.DB) *batchRepository {
	return &batchRepository{db: db}
}

func (repo *batchRepository) CreateBatch(ctx context.Context, b batch.Batch) (batch.Batch, error) {
	query, args, err := psql.Insert("batches").
		Columns(batchColumns...).
		Values(b.ID, b.Name, b.Description, b.StartDate.Format(batch.DateLayout), b.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return batch.Batch{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return batch.Batch{}, errors.Wrap(err, "inserting batch")
	}
	return b, nil
}

func (repo *batchRepository) GetBatch(ctx context.Context, id string) (batch.Batch, error) {
	query, args, err := psql.Select(batchColumns...).From("batches").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return batch.Batch{}, errors.Wrap(err, "building query")
	}
	var row batchRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return batch.Batch{}, trapNoRowsErr(err, batch.ErrNotFound, "getting batch")
	}
	return row.batch(), nil
}

func (repo *batchRepository) QueryBatches(ctx context.Context) ([]batch.Batch, error) {
	query, args, err := psql.Select(batchColumns...).From("batches").OrderBy("start_date ASC", "created_at ASC").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []batchRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying batches")
	}
	batches := make([]batch.Batch, 0, len(rows))
	for _, r := range rows {
		batches = append(batches, r.batch())
	}
	return batches, nil
}

func (repo *batchRepository) UpdateBatch(ctx context.Context, b batch.Batch) (batch.Batch, error) {
	query, args, err := psql.Update("batches").
		Set("name", b.Name).
		Set("description", b.Description).
		Set("start_date", b.StartDate.Format(batch.DateLayout)).
		Where(sq.Eq{"id": b.ID}).
		ToSql()
	if err != nil {
		return batch.Batch{}, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return batch.Batch{}, errors.Wrap(err, "updating batch")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return batch.Batch{}, batch.ErrNotFound
	}
	return b, nil
}

// DeleteBatch relies on the ON DELETE CASCADE foreign keys.
func (repo *batchRepository) DeleteBatch(ctx context.Context, id string) error {
	query, args, err := psql.Delete("batches").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "deleting batch")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return batch.ErrNotFound
	}
	return nil
}

func (repo *batchRepository) QueryBatchStudents(ctx context.Context, id string) ([]profile.Profile, error) {
	cols := make([]string, 0, len(profileColumns))
	for _, c := range profileColumns {
		cols = append(cols, "u."+c)
	}
	query, args, err := psql.Select(cols...).
		From("enrollments e").
		Join("users u ON u.id = e.student_id").
		Where(sq.Eq{"e.batch_id": id, "e.status": string(enrollment.StatusApproved)}).
		OrderBy("lower(u.name) ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []profileRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying batch students")
	}
	return profilesOf(rows), nil
}
