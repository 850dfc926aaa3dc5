package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/jayalms/lms/core/batch"
	"github.com/jayalms/lms/core/enrollment"
	"github.com/jayalms/lms/core/profile"
)

type batchRepository struct {
	db *DB
}

var _ batch.Repository = (*batchRepository)(nil)

func NewBatchRepository(db *DB) *batchRepository {
	return &batchRepository{db: db}
}

func (repo *batchRepository) CreateBatch(_ context.Context, b batch.Batch) (batch.Batch, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.batches[b.ID] = &b
	return b, nil
}

func (repo *batchRepository) GetBatch(_ context.Context, id string) (batch.Batch, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if b := repo.db.batchRef(id); b != nil {
		return *b, nil
	}
	return batch.Batch{}, batch.ErrNotFound
}

func (repo *batchRepository) QueryBatches(_ context.Context) ([]batch.Batch, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	batches := make([]batch.Batch, 0, len(repo.db.batches))
	for _, b := range repo.db.batches {
		batches = append(batches, *b)
	}
	sort.Slice(batches, func(i, j int) bool {
		if batches[i].StartDate.Equal(batches[j].StartDate) {
			return batches[i].CreatedAt.Before(batches[j].CreatedAt)
		}
		return batches[i].StartDate.Before(batches[j].StartDate)
	})
	return batches, nil
}

func (repo *batchRepository) UpdateBatch(_ context.Context, b batch.Batch) (batch.Batch, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.batches[b.ID]; !ok {
		return batch.Batch{}, batch.ErrNotFound
	}
	repo.db.batches[b.ID] = &b
	return b, nil
}

func (repo *batchRepository) DeleteBatch(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.batches[id]; !ok {
		return batch.ErrNotFound
	}
	delete(repo.db.batches, id)
	for eid, e := range repo.db.enrollments {
		if e.BatchID == id {
			delete(repo.db.enrollments, eid)
		}
	}
	for nid, n := range repo.db.notices {
		if n.BatchID != nil && *n.BatchID == id {
			delete(repo.db.notices, nid)
		}
	}
	for sid, s := range repo.db.submissions {
		if s.BatchID == id {
			delete(repo.db.submissions, sid)
		}
	}
	return nil
}

func (repo *batchRepository) QueryBatchStudents(_ context.Context, id string) ([]profile.Profile, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]profile.Profile, 0)
	for _, e := range repo.db.enrollments {
		if e.BatchID != id || e.Status != enrollment.StatusApproved {
			continue
		}
		if p := repo.db.profileRef(e.StudentID); p != nil {
			students = append(students, *p)
		}
	}
	sort.Slice(students, func(i, j int) bool {
		return strings.ToLower(students[i].DisplayName()) < strings.ToLower(students[j].DisplayName())
	})
	return students, nil
}
