package inmemdb

import (
	"context"
	"sort"

	"github.com/jayalms/lms/core/enrollment"
	"github.com/jayalms/lms/core/notice"
)

type noticeRepository struct {
	db *DB
}

var _ notice.Repository = (*noticeRepository)(nil)

func NewNoticeRepository(db *DB) *noticeRepository {
	return &noticeRepository{db: db}
}

func (repo *noticeRepository) CreateNotice(_ context.Context, n notice.Notice) (notice.Notice, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	n.BatchID, n.Batch = copyString(n.BatchID), nil
	repo.db.notices[n.ID] = &n
	return n, nil
}

func (repo *noticeRepository) GetNotice(_ context.Context, id string) (notice.Notice, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if n, ok := repo.db.notices[id]; ok {
		cp := *n
		cp.BatchID = copyString(n.BatchID)
		return cp, nil
	}
	return notice.Notice{}, notice.ErrNotFound
}

func (repo *noticeRepository) UpdateNotice(_ context.Context, n notice.Notice) (notice.Notice, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.notices[n.ID]; !ok {
		return notice.Notice{}, notice.ErrNotFound
	}
	n.BatchID, n.Batch = copyString(n.BatchID), nil
	repo.db.notices[n.ID] = &n
	return n, nil
}

func (repo *noticeRepository) DeleteNotice(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.notices[id]; !ok {
		return notice.ErrNotFound
	}
	delete(repo.db.notices, id)
	return nil
}

func (repo *noticeRepository) QueryNotices(_ context.Context, filter notice.Filter) ([]notice.Notice, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var approved map[string]bool
	if filter.StudentID != "" {
		approved = make(map[string]bool)
		for _, e := range repo.db.enrollments {
			if e.StudentID == filter.StudentID && e.Status == enrollment.StatusApproved {
				approved[e.BatchID] = true
			}
		}
	}

	res := make([]notice.Notice, 0)
	for _, n := range repo.db.notices {
		if approved != nil && n.BatchID != nil && !approved[*n.BatchID] {
			continue
		}
		cp := *n
		cp.BatchID = copyString(n.BatchID)
		if n.BatchID != nil {
			cp.Batch = repo.db.batchRef(*n.BatchID)
		}
		res = append(res, cp)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}
