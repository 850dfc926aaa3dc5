package inmemdb

import (
	"context"
	"sort"

	"github.com/jayalms/lms/core/submission"
)

type submissionRepository struct {
	db *DB
}

var _ submission.Repository = (*submissionRepository)(nil)

func NewSubmissionRepository(db *DB) *submissionRepository {
	return &submissionRepository{db: db}
}

func (repo *submissionRepository) CreateSubmission(_ context.Context, s submission.Submission) (submission.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s.Batch, s.Student = nil, nil
	repo.db.submissions[s.ID] = &s
	return s, nil
}

func (repo *submissionRepository) GetSubmission(_ context.Context, id string) (submission.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.submissions[id]; ok {
		return *s, nil
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) QuerySubmissions(_ context.Context, filter submission.Filter) ([]submission.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]submission.Submission, 0)
	for _, s := range repo.db.submissions {
		if (filter.StudentID != "" && s.StudentID != filter.StudentID) ||
			(filter.BatchID != "" && s.BatchID != filter.BatchID) {
			continue
		}
		cp := *s
		cp.Batch = repo.db.batchRef(s.BatchID)
		cp.Student = repo.db.profileRef(s.StudentID)
		res = append(res, cp)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].SubmittedAt.After(res[j].SubmittedAt) })
	return res, nil
}
