package enrollment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/batch"
	"github.com/jayalms/lms/core/profile"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) IsValid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Enrollment links a student to a batch. Batch & Student are set by list queries.
type Enrollment struct {
	ID         string           `json:"id"`
	StudentID  string           `json:"student_id"`
	BatchID    string           `json:"batch_id"`
	Status     Status           `json:"status"`
	EnrolledAt time.Time        `json:"enrolled_at"` // UTC
	Batch      *batch.Batch     `json:"batch,omitempty"`
	Student    *profile.Profile `json:"student,omitempty"`
}

type Filter struct {
	StudentID string
	BatchID   string
	Status    Status
}

// RequestForm is a student's enrollment request.
type RequestForm struct {
	BatchID string `json:"batch_id" validate:"required,uuid"`
}

func (f *RequestForm) Validate(validate *validator.Validate) error {
	f.BatchID = core.CleanString(f.BatchID, true /* lower */)
	return validate.Struct(f)
}

// StatusForm is a teacher's decision on a request.
type StatusForm struct {
	Status Status `json:"status" validate:"required,oneof=approved rejected"`
}

func (f *StatusForm) Validate(validate *validator.Validate) error {
	f.Status = Status(core.CleanString(string(f.Status), true /* lower */))
	return validate.Struct(f)
}

// Group is the enrollments of one batch.
type Group struct {
	Batch       batch.Batch  `json:"batch"`
	Enrollments []Enrollment `json:"enrollments"`
}

// GroupByBatch groups enrollments by batch, in order of first appearance. Enrollments without a loaded batch are skipped.
func GroupByBatch(enrollments []Enrollment) []Group {
	groups := make([]Group, 0)
	index := make(map[string]int)
	for _, e := range enrollments {
		if e.Batch == nil {
			continue
		}
		i, ok := index[e.Batch.ID]
		if !ok {
			i = len(groups)
			index[e.Batch.ID] = i
			groups = append(groups, Group{Batch: *e.Batch})
		}
		groups[i].Enrollments = append(groups[i].Enrollments, e)
	}
	return groups
}

// Students returns the loaded student profiles of enrollments.
func Students(enrollments []Enrollment) []profile.Profile {
	students := make([]profile.Profile, 0, len(enrollments))
	for _, e := range enrollments {
		if e.Student != nil {
			students = append(students, *e.Student)
		}
	}
	return students
}
