package batch

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jayalms/lms/core"
)

// DateLayout is the wire format of batch start dates.
const DateLayout = "2006-01-02"

// Batch is a course cohort.
type Batch struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"` // UTC midnight
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// Form creates or replaces a batch.
type Form struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	StartDate   string `json:"start_date" validate:"required,datetime=2006-01-02"`
}

func (f *Form) Validate(validate *validator.Validate) error {
	f.Name = core.CleanString(f.Name)
	f.Description = core.CleanString(f.Description)
	f.StartDate = core.CleanString(f.StartDate)
	return validate.Struct(f)
}

func (f Form) startDate() time.Time {
	d, _ := time.Parse(DateLayout, f.StartDate) // validated
	return d.UTC()
}
