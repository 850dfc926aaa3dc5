package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/jayalms/lms/core/batch"
	"github.com/jayalms/lms/core/enrollment"
	"github.com/jayalms/lms/core/notice"
)

var noticeColumns = []string{"id", "title", "content", "batch_id", "created_at"}

type noticeRow struct {
	ID        string      `db:"id"`
	Title     string      `db:"title"`
	Content   string      `db:"content"`
	BatchID   null.String `db:"batch_id"`
	CreatedAt time.Time   `db:"created_at"`
}

func (r noticeRow) notice() notice.Notice {
	return notice.Notice{
		ID:        r.ID,
		Title:     r.Title,
		Content:   r.Content,
		BatchID:   r.BatchID.Ptr(),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

// nullBatchRow is a LEFT JOINed batch.
type nullBatchRow struct {
	ID          null.String `db:"id"`
	Name        null.String `db:"name"`
	Description null.String `db:"description"`
	StartDate   null.Time   `db:"start_date"`
	CreatedAt   null.Time   `db:"created_at"`
}

func (r nullBatchRow) batch() *batch.Batch {
	if !r.ID.Valid {
		return nil
	}
	b := batchRow{
		ID:          r.ID.String,
		Name:        r.Name.String,
		Description: r.Description.String,
		StartDate:   r.StartDate.Time,
		CreatedAt:   r.CreatedAt.Time,
	}.batch()
	return &b
}

type noticeJoinRow struct {
	noticeRow
	Batch nullBatchRow `db:"b"`
}

type noticeRepository struct {
	db *sqlx.DB
}

var _ notice.Repository = (*noticeRepository)(nil)

func NewNoticeRepository(db *sqlx.DB) *noticeRepository {
	return &noticeRepository{db: db}
}

func (repo *noticeRepository) CreateNotice(ctx context.Context, n notice.Notice) (notice.Notice, error) {
	query, args, err := psql.Insert("notices").
		Columns(noticeColumns...).
		Values(n.ID, n.Title, n.Content, null.StringFromPtr(n.BatchID), n.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return notice.Notice{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return notice.Notice{}, errors.Wrap(err, "inserting notice")
	}
	return n, nil
}

func (repo *noticeRepository) GetNotice(ctx context.Context, id string) (notice.Notice, error) {
	query, args, err := psql.Select(noticeColumns...).From("notices").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return notice.Notice{}, errors.Wrap(err, "building query")
	}
	var row noticeRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return notice.Notice{}, trapNoRowsErr(err, notice.ErrNotFound, "getting notice")
	}
	return row.notice(), nil
}

func (repo *noticeRepository) UpdateNotice(ctx context.Context, n notice.Notice) (notice.Notice, error) {
	query, args, err := psql.Update("notices").
		Set("title", n.Title).
		Set("content", n.Content).
		Set("batch_id", null.StringFromPtr(n.BatchID)).
		Where(sq.Eq{"id": n.ID}).
		ToSql()
	if err != nil {
		return notice.Notice{}, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return notice.Notice{}, errors.Wrap(err, "updating notice")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return notice.Notice{}, notice.ErrNotFound
	}
	return n, nil
}

func (repo *noticeRepository) DeleteNotice(ctx context.Context, id string) error {
	query, args, err := psql.Delete("notices").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "deleting notice")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notice.ErrNotFound
	}
	return nil
}

func (repo *noticeRepository) QueryNotices(ctx context.Context, filter notice.Filter) ([]notice.Notice, error) {
	cols := make([]string, 0, len(noticeColumns))
	for _, c := range noticeColumns {
		cols = append(cols, "n."+c)
	}
	cols = append(cols, prefixed("b", batchColumns)...)

	qs := psql.Select(cols...).
		From("notices n").
		LeftJoin("batches b ON b.id = n.batch_id").
		OrderBy("n.created_at DESC")
	if filter.StudentID != "" {
		// plain placeholders, the outer builder numbers them
		approved := sq.Select("batch_id").
			From("enrollments").
			Where(sq.Eq{"student_id": filter.StudentID, "status": string(enrollment.StatusApproved)})
		sub, subArgs, err := approved.ToSql()
		if err != nil {
			return nil, errors.Wrap(err, "building query")
		}
		qs = qs.Where(sq.Or{sq.Eq{"n.batch_id": nil}, sq.Expr("n.batch_id IN ("+sub+")", subArgs...)})
	}

	query, args, err := qs.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []noticeJoinRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying notices")
	}

	res := make([]notice.Notice, 0, len(rows))
	for _, r := range rows {
		n := r.notice()
		n.Batch = r.Batch.batch()
		res = append(res, n)
	}
	return res, nil
}
