package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core/submission"
)

var submissionColumns = []string{"id", "student_id", "batch_id", "pdf_url", "submitted_at"}

type submissionRow struct {
	ID          string    `db:"id"`
	StudentID   string    `db:"student_id"`
	BatchID     string    `db:"batch_id"`
	PDFURL      string    `db:"pdf_url"`
	SubmittedAt time.Time `db:"submitted_at"`
}

func (r submissionRow) submission() submission.Submission {
	return submission.Submission{
		ID:          r.ID,
		StudentID:   r.StudentID,
		BatchID:     r.BatchID,
		PDFURL:      r.PDFURL,
		SubmittedAt: r.SubmittedAt.UTC(),
	}
}

type submissionJoinRow struct {
	submissionRow
	Batch   batchRow   `db:"b"`
	Student profileRow `db:"u"`
}

type submissionRepository struct {
	db *sqlx.DB
}

var _ submission.Repository = (*submissionRepository)(nil)

func NewSubmissionRepository(db *sqlx.DB) *submissionRepository {
	return &submissionRepository{db: db}
}

func (repo *submissionRepository) CreateSubmission(ctx context.Context, s submission.Submission) (submission.Submission, error) {
	query, args, err := psql.Insert("submissions").
		Columns(submissionColumns...).
		Values(s.ID, s.StudentID, s.BatchID, s.PDFURL, s.SubmittedAt.UTC()).
		ToSql()
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return submission.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return s, nil
}

func (repo *submissionRepository) GetSubmission(ctx context.Context, id string) (submission.Submission, error) {
	query, args, err := psql.Select(submissionColumns...).From("submissions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "building query")
	}
	var row submissionRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return submission.Submission{}, trapNoRowsErr(err, submission.ErrNotFound, "getting submission")
	}
	return row.submission(), nil
}

func (repo *submissionRepository) QuerySubmissions(ctx context.Context, filter submission.Filter) ([]submission.Submission, error) {
	cols := make([]string, 0, len(submissionColumns))
	for _, c := range submissionColumns {
		cols = append(cols, "s."+c)
	}
	cols = append(cols, prefixed("b", batchColumns)...)
	cols = append(cols, prefixed("u", profileColumns)...)

	where := sq.Eq{}
	if filter.StudentID != "" {
		where["s.student_id"] = filter.StudentID
	}
	if filter.BatchID != "" {
		where["s.batch_id"] = filter.BatchID
	}

	query, args, err := psql.Select(cols...).
		From("submissions s").
		Join("batches b ON b.id = s.batch_id").
		Join("users u ON u.id = s.student_id").
		Where(where).
		OrderBy("s.submitted_at DESC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []submissionJoinRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}

	res := make([]submission.Submission, 0, len(rows))
	for _, r := range rows {
		s := r.submission()
		b, p := r.Batch.batch(), r.Student.profile()
		s.Batch, s.Student = &b, &p
		res = append(res, s)
	}
	return res, nil
}
