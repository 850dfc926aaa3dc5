package enrollment

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/batch"
	"github.com/jayalms/lms/core/identity"
	"github.com/jayalms/lms/core/profile"
)

var (
	// errors
	ErrNotFound          = errors.New("enrollment not found")
	ErrAlreadyRequested  = errors.New("enrollment already requested for this batch")
	ErrProfileIncomplete = errors.New("profile incomplete")
	ErrNotStudent        = errors.New("only students can request enrollment")
)

type (
	Repository interface {
		// CreateEnrollment fails with ErrAlreadyRequested when the student already has an enrollment in the batch.
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, id string) (Enrollment, error)
		// QueryEnrollments applies AND on set Filter fields, newest first, with Batch & Student loaded.
		QueryEnrollments(ctx context.Context, filter Filter) ([]Enrollment, error)
		UpdateEnrollmentStatus(ctx context.Context, id string, status Status) (Enrollment, error)
		DeleteEnrollment(ctx context.Context, id string) error
	}

	// AccountReader finds the account of a student, for notifications.
	AccountReader interface {
		GetAccountByID(ctx context.Context, id string) (identity.Account, error)
	}

	Service struct {
		repo     Repository
		profiles profile.Reader
		batches  batch.Reader
		accounts AccountReader
		mailSvc  core.EmailService
		validate *validator.Validate
		broker   core.ChangeBroker
		logger   core.Logger
	}
)

func NewService(
	repo Repository,
	profiles profile.Reader,
	batches batch.Reader,
	accounts AccountReader,
	mailSvc core.EmailService,
	validate *validator.Validate,
	broker core.ChangeBroker,
	logger core.Logger,
) *Service {
	return &Service{
		repo:     repo,
		profiles: profiles,
		batches:  batches,
		accounts: accounts,
		mailSvc:  mailSvc,
		validate: validate,
		broker:   broker,
		logger:   logger,
	}
}

// Request creates a pending enrollment of student in a batch. The student profile must be complete.
func (svc *Service) Request(ctx context.Context, studentID string, form RequestForm) (Enrollment, error) {
	if err := form.Validate(svc.validate); err != nil {
		return Enrollment{}, err
	}

	prof, err := svc.profiles.GetProfile(ctx, studentID)
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "finding student profile")
	}
	if prof.Role != profile.RoleStudent {
		return Enrollment{}, ErrNotStudent
	}
	if !prof.IsComplete() {
		return Enrollment{}, ErrProfileIncomplete
	}
	if _, err = svc.batches.GetBatch(ctx, form.BatchID); err != nil {
		return Enrollment{}, err
	}

	e, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		ID:         uuid.New().String(),
		StudentID:  studentID,
		BatchID:    form.BatchID,
		Status:     StatusPending,
		EnrolledAt: time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyRequested) {
			return Enrollment{}, err
		}
		return Enrollment{}, errors.Wrap(err, "creating enrollment")
	}
	core.PublishChange(ctx, svc.broker, svc.logger, core.TableEnrollments, core.OpInsert, e.ID)
	return e, nil
}

func (svc *Service) ListForStudent(ctx context.Context, studentID string) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, Filter{StudentID: studentID})
}

func (svc *Service) ListAll(ctx context.Context) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, Filter{})
}

func (svc *Service) Filter(ctx context.Context, filter Filter) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, filter)
}

// SetStatus approves or rejects enrollment id and emails the student about it.
func (svc *Service) SetStatus(ctx context.Context, id string, form StatusForm) (Enrollment, error) {
	if err := form.Validate(svc.validate); err != nil {
		return Enrollment{}, err
	}
	e, err := svc.repo.UpdateEnrollmentStatus(ctx, id, form.Status)
	if err != nil {
		return Enrollment{}, err
	}
	core.PublishChange(ctx, svc.broker, svc.logger, core.TableEnrollments, core.OpUpdate, e.ID)
	svc.sendStatusMail(ctx, e)
	return e, nil
}

func (svc *Service) sendStatusMail(ctx context.Context, e Enrollment) {
	if svc.mailSvc == nil || svc.accounts == nil {
		return
	}
	acct, err := svc.accounts.GetAccountByID(ctx, e.StudentID)
	if err != nil {
		svc.logger.Warn("finding student account", err, map[string]interface{}{"enrollment": e.ID})
		return
	}

	var name, batchName string
	if prof, err := svc.profiles.GetProfile(ctx, e.StudentID); err == nil {
		name = prof.DisplayName()
	}
	if b, err := svc.batches.GetBatch(ctx, e.BatchID); err == nil {
		batchName = b.Name
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: name, Address: acct.Email}},
		Subject:      "Your enrollment request was " + string(e.Status),
		TemplateName: "enrollment_status",
		TemplateData: map[string]interface{}{
			"Name":   name,
			"Batch":  batchName,
			"Status": string(e.Status),
		},
	})
}

func (svc *Service) Remove(ctx context.Context, id string) error {
	if err := svc.repo.DeleteEnrollment(ctx, id); err != nil {
		return err
	}
	core.PublishChange(ctx, svc.broker, svc.logger, core.TableEnrollments, core.OpDelete, id)
	return nil
}
