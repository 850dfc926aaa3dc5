// Package inmemdb is a map backed implementation of the repositories, used by tests and the "inmem" database engine.
package inmemdb

import (
	"sync"

	"github.com/jayalms/lms/core/batch"
	"github.com/jayalms/lms/core/enrollment"
	"github.com/jayalms/lms/core/identity"
	"github.com/jayalms/lms/core/notice"
	"github.com/jayalms/lms/core/profile"
	"github.com/jayalms/lms/core/submission"
)

// DB holds every table behind one lock so that cascades and joins see a consistent state.
type DB struct {
	mutex sync.RWMutex

	accounts    map[string]*identity.Account
	profiles    map[string]*profile.Profile
	batches     map[string]*batch.Batch
	enrollments map[string]*enrollment.Enrollment
	notices     map[string]*notice.Notice
	submissions map[string]*submission.Submission
}

func Open() *DB {
	return &DB{
		accounts:    make(map[string]*identity.Account),
		profiles:    make(map[string]*profile.Profile),
		batches:     make(map[string]*batch.Batch),
		enrollments: make(map[string]*enrollment.Enrollment),
		notices:     make(map[string]*notice.Notice),
		submissions: make(map[string]*submission.Submission),
	}
}

// joins, callers hold the lock

func (db *DB) batchRef(id string) *batch.Batch {
	if b, ok := db.batches[id]; ok {
		cp := *b
		return &cp
	}
	return nil
}

func (db *DB) profileRef(id string) *profile.Profile {
	if p, ok := db.profiles[id]; ok {
		cp := copyProfile(*p)
		return &cp
	}
	return nil
}

func copyProfile(p profile.Profile) profile.Profile {
	if p.Name != nil {
		p.Name = profile.StringPtr(*p.Name)
	}
	if p.PhoneNumber != nil {
		p.PhoneNumber = profile.StringPtr(*p.PhoneNumber)
	}
	return p
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
