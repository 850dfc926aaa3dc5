package notice

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/batch"
)

// Notice is an announcement for the students of a batch, or for all students when BatchID is nil.
type Notice struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Content   string       `json:"content"`
	BatchID   *string      `json:"batch_id"`
	CreatedAt time.Time    `json:"created_at"` // UTC
	Batch     *batch.Batch `json:"batch,omitempty"`
}

func (n *Notice) IsGlobal() bool { return n.BatchID == nil }

type Filter struct {
	// StudentID restricts to global notices & notices of the batches the student is approved in.
	StudentID string
}

type Form struct {
	Title   string  `json:"title" validate:"required,max=200"`
	Content string  `json:"content" validate:"required,max=10000"`
	BatchID *string `json:"batch_id" validate:"omitempty,uuid"`
}

func (f *Form) Validate(validate *validator.Validate) error {
	f.Title = core.CleanString(f.Title)
	f.Content = core.CleanString(f.Content)
	if f.BatchID != nil {
		id := core.CleanString(*f.BatchID, true /* lower */)
		if id == "" {
			f.BatchID = nil
		} else {
			f.BatchID = &id
		}
	}
	return validate.Struct(f)
}
