package notice

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/batch"
)

var (
	// errors
	ErrNotFound = errors.New("notice not found")
)

type (
	Repository interface {
		CreateNotice(ctx context.Context, n Notice) (Notice, error)
		GetNotice(ctx context.Context, id string) (Notice, error)
		UpdateNotice(ctx context.Context, n Notice) (Notice, error)
		DeleteNotice(ctx context.Context, id string) error
		// QueryNotices returns notices newest first, with Batch loaded.
		QueryNotices(ctx context.Context, filter Filter) ([]Notice, error)
	}

	Service struct {
		repo     Repository
		batches  batch.Reader
		validate *validator.Validate
		broker   core.ChangeBroker
		logger   core.Logger
	}
)

func NewService(repo Repository, batches batch.Reader, validate *validator.Validate, broker core.ChangeBroker, logger core.Logger) *Service {
	return &Service{repo: repo, batches: batches, validate: validate, broker: broker, logger: logger}
}

func (svc *Service) checkForm(ctx context.Context, form *Form) error {
	if err := form.Validate(svc.validate); err != nil {
		return err
	}
	if form.BatchID != nil {
		if _, err := svc.batches.GetBatch(ctx, *form.BatchID); err != nil {
			if errors.Is(err, batch.ErrNotFound) {
				return core.NewValidationError(err, core.FieldError{Field: "batch_id", Error: err.Error()})
			}
			return err
		}
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, form Form) (Notice, error) {
	if err := svc.checkForm(ctx, &form); err != nil {
		return Notice{}, err
	}
	n, err := svc.repo.CreateNotice(ctx, Notice{
		ID:        uuid.New().String(),
		Title:     form.Title,
		Content:   form.Content,
		BatchID:   form.BatchID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Notice{}, errors.Wrap(err, "creating notice")
	}
	core.PublishChange(ctx, svc.broker, svc.logger, core.TableNotices, core.OpInsert, n.ID)
	return n, nil
}

func (svc *Service) Update(ctx context.Context, id string, form Form) (Notice, error) {
	if err := svc.checkForm(ctx, &form); err != nil {
		return Notice{}, err
	}
	orig, err := svc.repo.GetNotice(ctx, id)
	if err != nil {
		return Notice{}, err
	}
	orig.Title = form.Title
	orig.Content = form.Content
	orig.BatchID = form.BatchID

	n, err := svc.repo.UpdateNotice(ctx, orig)
	if err != nil {
		return Notice{}, errors.Wrap(err, "updating notice")
	}
	core.PublishChange(ctx, svc.broker, svc.logger, core.TableNotices, core.OpUpdate, n.ID)
	return n, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.repo.DeleteNotice(ctx, id); err != nil {
		return err
	}
	core.PublishChange(ctx, svc.broker, svc.logger, core.TableNotices, core.OpDelete, id)
	return nil
}

func (svc *Service) ListAll(ctx context.Context) ([]Notice, error) {
	return svc.repo.QueryNotices(ctx, Filter{})
}

// ListForStudent returns global notices & notices of the batches the student is approved in.
func (svc *Service) ListForStudent(ctx context.Context, studentID string) ([]Notice, error) {
	return svc.repo.QueryNotices(ctx, Filter{StudentID: studentID})
}
