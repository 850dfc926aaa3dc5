package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core/enrollment"
)

var enrollmentColumns = []string{"id", "student_id", "batch_id", "status", "enrolled_at"}

type enrollmentRow struct {
	ID         string    `db:"id"`
	StudentID  string    `db:"student_id"`
	BatchID    string    `db:"batch_id"`
	Status     string    `db:"status"`
	EnrolledAt time.Time `db:"enrolled_at"`
}

func (r enrollmentRow) enrollment() enrollment.Enrollment {
	return enrollment.Enrollment{
		ID:         r.ID,
		StudentID:  r.StudentID,
		BatchID:    r.BatchID,
		Status:     enrollment.Status(r.Status),
		EnrolledAt: r.EnrolledAt.UTC(),
	}
}

type enrollmentJoinRow struct {
	enrollmentRow
	Batch   batchRow   `db:"b"`
	Student profileRow `db:"u"`
}

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *sqlx.DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	query, args, err := psql.Insert("enrollments").
		Columns(enrollmentColumns...).
		Values(e.ID, e.StudentID, e.BatchID, string(e.Status), e.EnrolledAt.UTC()).
		ToSql()
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return enrollment.Enrollment{}, enrollment.ErrAlreadyRequested
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return e, nil
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, id string) (enrollment.Enrollment, error) {
	query, args, err := psql.Select(enrollmentColumns...).From("enrollments").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "building query")
	}
	var row enrollmentRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return enrollment.Enrollment{}, trapNoRowsErr(err, enrollment.ErrNotFound, "getting enrollment")
	}
	return row.enrollment(), nil
}

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, filter enrollment.Filter) ([]enrollment.Enrollment, error) {
	cols := make([]string, 0, len(enrollmentColumns))
	for _, c := range enrollmentColumns {
		cols = append(cols, "e."+c)
	}
	cols = append(cols, prefixed("b", batchColumns)...)
	cols = append(cols, prefixed("u", profileColumns)...)

	where := sq.Eq{}
	if filter.StudentID != "" {
		where["e.student_id"] = filter.StudentID
	}
	if filter.BatchID != "" {
		where["e.batch_id"] = filter.BatchID
	}
	if filter.Status != "" {
		where["e.status"] = string(filter.Status)
	}

	query, args, err := psql.Select(cols...).
		From("enrollments e").
		Join("batches b ON b.id = e.batch_id").
		Join("users u ON u.id = e.student_id").
		Where(where).
		OrderBy("e.enrolled_at DESC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []enrollmentJoinRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}

	res := make([]enrollment.Enrollment, 0, len(rows))
	for _, r := range rows {
		e := r.enrollment()
		b, p := r.Batch.batch(), r.Student.profile()
		e.Batch, e.Student = &b, &p
		res = append(res, e)
	}
	return res, nil
}

func (repo *enrollmentRepository) UpdateEnrollmentStatus(ctx context.Context, id string, status enrollment.Status) (enrollment.Enrollment, error) {
	query, args, err := psql.Update("enrollments").
		Set("status", string(status)).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + joinColumns(enrollmentColumns)).
		ToSql()
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "building query")
	}
	var row enrollmentRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return enrollment.Enrollment{}, trapNoRowsErr(err, enrollment.ErrNotFound, "updating enrollment")
	}
	return row.enrollment(), nil
}

func (repo *enrollmentRepository) DeleteEnrollment(ctx context.Context, id string) error {
	query, args, err := psql.Delete("enrollments").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return enrollment.ErrNotFound
	}
	return nil
}
