package inmemdb

import (
	"context"
	"sort"

	"github.com/jayalms/lms/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) CreateEnrollment(_ context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.enrollments {
		if other.StudentID == e.StudentID && other.BatchID == e.BatchID {
			return enrollment.Enrollment{}, enrollment.ErrAlreadyRequested
		}
	}
	e.Batch, e.Student = nil, nil
	repo.db.enrollments[e.ID] = &e
	return e, nil
}

func (repo *enrollmentRepository) GetEnrollment(_ context.Context, id string) (enrollment.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if e, ok := repo.db.enrollments[id]; ok {
		return *e, nil
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) QueryEnrollments(_ context.Context, filter enrollment.Filter) ([]enrollment.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]enrollment.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if (filter.StudentID != "" && e.StudentID != filter.StudentID) ||
			(filter.BatchID != "" && e.BatchID != filter.BatchID) ||
			(filter.Status != "" && e.Status != filter.Status) {
			continue
		}
		cp := *e
		cp.Batch = repo.db.batchRef(e.BatchID)
		cp.Student = repo.db.profileRef(e.StudentID)
		res = append(res, cp)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].EnrolledAt.After(res[j].EnrolledAt) })
	return res, nil
}

func (repo *enrollmentRepository) UpdateEnrollmentStatus(_ context.Context, id string, status enrollment.Status) (enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	e, ok := repo.db.enrollments[id]
	if !ok {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	e.Status = status
	return *e, nil
}

func (repo *enrollmentRepository) DeleteEnrollment(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.enrollments[id]; !ok {
		return enrollment.ErrNotFound
	}
	delete(repo.db.enrollments, id)
	return nil
}
