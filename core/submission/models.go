package submission

import (
	"strings"
	"time"

	"github.com/jayalms/lms/core/batch"
	"github.com/jayalms/lms/core/profile"
)

// legacyKeyPrefix is the bucket name some stored paths were saved with.
const legacyKeyPrefix = "submissions/"

// Submission is a homework PDF uploaded by a student for a batch. PDFURL is the storage object key.
type Submission struct {
	ID          string           `json:"id"`
	StudentID   string           `json:"student_id"`
	BatchID     string           `json:"batch_id"`
	PDFURL      string           `json:"pdf_url"`
	SubmittedAt time.Time        `json:"submitted_at"` // UTC
	Batch       *batch.Batch     `json:"batch,omitempty"`
	Student     *profile.Profile `json:"student,omitempty"`
}

// ObjectKey returns the storage key of the submission file.
func (s *Submission) ObjectKey() string {
	return strings.TrimPrefix(s.PDFURL, legacyKeyPrefix)
}

type Filter struct {
	StudentID string
	BatchID   string
}
