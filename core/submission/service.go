package submission

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/batch"
	"github.com/jayalms/lms/core/profile"
)

const (
	pdfMIME   = "application/pdf"
	sniffSize = 3072
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound  = errors.New("submission not found")
	ErrNotPDF    = errors.New("only PDF files are accepted")
	ErrForbidden = errors.New("not allowed to access this submission")
)

type (
	Repository interface {
		CreateSubmission(ctx context.Context, s Submission) (Submission, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		// QuerySubmissions applies AND on set Filter fields, newest first, with Batch & Student loaded.
		QuerySubmissions(ctx context.Context, filter Filter) ([]Submission, error)
	}

	Service struct {
		repo    Repository
		batches batch.Reader
		storage core.FileStorage
		urlTTL  time.Duration
		broker  core.ChangeBroker
		logger  core.Logger
	}
)

func NewService(
	repo Repository,
	batches batch.Reader,
	storage core.FileStorage,
	conf *core.Config,
	broker core.ChangeBroker,
	logger core.Logger,
) *Service {
	ttl := conf.Storage.SignedURLTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{repo: repo, batches: batches, storage: storage, urlTTL: ttl, broker: broker, logger: logger}
}

// ObjectKey is <student>/<batch>/<unix millis>.pdf
func ObjectKey(studentID, batchID string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%d.pdf", studentID, batchID, at.UnixNano()/int64(time.Millisecond))
}

// Upload stores the homework file of student for batchID. The content must be a PDF.
func (svc *Service) Upload(ctx context.Context, studentID, batchID string, file io.Reader) (Submission, error) {
	batchID = core.CleanString(batchID, true /* lower */)
	if batchID == "" {
		return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "batch_id", Error: "this field is required"})
	}
	if _, err := svc.batches.GetBatch(ctx, batchID); err != nil {
		return Submission{}, err
	}

	head := make([]byte, sniffSize)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Submission{}, errors.Wrap(err, "reading file")
	}
	head = head[:n]
	if !mimetype.Detect(head).Is(pdfMIME) {
		return Submission{}, core.NewValidationError(ErrNotPDF, core.FieldError{Field: "file", Error: ErrNotPDF.Error()})
	}

	now := NowFunc().UTC()
	key := ObjectKey(studentID, batchID, now)
	if err = svc.storage.Upload(ctx, key, io.MultiReader(bytes.NewReader(head), file), pdfMIME); err != nil {
		return Submission{}, errors.Wrap(err, "uploading file")
	}

	s, err := svc.repo.CreateSubmission(ctx, Submission{
		ID:          uuid.New().String(),
		StudentID:   studentID,
		BatchID:     batchID,
		PDFURL:      key,
		SubmittedAt: now,
	})
	if err != nil {
		if derr := svc.storage.Delete(ctx, key); derr != nil {
			svc.logger.Warn("deleting orphan upload", derr, map[string]interface{}{"key": key})
		}
		return Submission{}, errors.Wrap(err, "creating submission")
	}
	core.PublishChange(ctx, svc.broker, svc.logger, core.TableSubmissions, core.OpInsert, s.ID)
	return s, nil
}

func (svc *Service) ListForStudent(ctx context.Context, studentID string) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, Filter{StudentID: studentID})
}

func (svc *Service) ListAll(ctx context.Context) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, Filter{})
}

// DownloadURL returns a short-lived URL to the file of submission id. Only its owner and teachers may download it.
func (svc *Service) DownloadURL(ctx context.Context, id string, requester profile.Profile) (string, error) {
	s, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return "", err
	}
	if requester.Role != profile.RoleTeacher && requester.ID != s.StudentID {
		return "", ErrForbidden
	}
	url, err := svc.storage.SignedURL(ctx, s.ObjectKey(), svc.urlTTL)
	if err != nil {
		return "", errors.Wrap(err, "signing download url")
	}
	return url, nil
}
