package batch

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/profile"
)

var (
	// errors
	ErrNotFound = errors.New("batch not found")
)

type (
	Repository interface {
		CreateBatch(ctx context.Context, b Batch) (Batch, error)
		GetBatch(ctx context.Context, id string) (Batch, error)
		// QueryBatches returns all batches by start date, earliest first.
		QueryBatches(ctx context.Context) ([]Batch, error)
		UpdateBatch(ctx context.Context, b Batch) (Batch, error)
		// DeleteBatch also deletes the batch enrollments, notices & submissions.
		DeleteBatch(ctx context.Context, id string) error
		// QueryBatchStudents returns the profiles of the students approved in batch id, by name.
		QueryBatchStudents(ctx context.Context, id string) ([]profile.Profile, error)
	}

	Reader interface {
		GetBatch(ctx context.Context, id string) (Batch, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
		broker   core.ChangeBroker
		logger   core.Logger
	}
)

var _ Reader = (*Service)(nil)

func NewService(repo Repository, validate *validator.Validate, broker core.ChangeBroker, logger core.Logger) *Service {
	return &Service{repo: repo, validate: validate, broker: broker, logger: logger}
}

func (svc *Service) Create(ctx context.Context, form Form) (Batch, error) {
	if err := form.Validate(svc.validate); err != nil {
		return Batch{}, err
	}
	b, err := svc.repo.CreateBatch(ctx, Batch{
		ID:          uuid.New().String(),
		Name:        form.Name,
		Description: form.Description,
		StartDate:   form.startDate(),
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Batch{}, errors.Wrap(err, "creating batch")
	}
	core.PublishChange(ctx, svc.broker, svc.logger, core.TableBatches, core.OpInsert, b.ID)
	return b, nil
}

func (svc *Service) Update(ctx context.Context, id string, form Form) (Batch, error) {
	if err := form.Validate(svc.validate); err != nil {
		return Batch{}, err
	}
	orig, err := svc.repo.GetBatch(ctx, id)
	if err != nil {
		return Batch{}, err
	}
	orig.Name = form.Name
	orig.Description = form.Description
	orig.StartDate = form.startDate()

	b, err := svc.repo.UpdateBatch(ctx, orig)
	if err != nil {
		return Batch{}, errors.Wrap(err, "updating batch")
	}
	core.PublishChange(ctx, svc.broker, svc.logger, core.TableBatches, core.OpUpdate, b.ID)
	return b, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.repo.DeleteBatch(ctx, id); err != nil {
		return err
	}
	core.PublishChange(ctx, svc.broker, svc.logger, core.TableBatches, core.OpDelete, id)
	return nil
}

func (svc *Service) List(ctx context.Context) ([]Batch, error) {
	return svc.repo.QueryBatches(ctx)
}

func (svc *Service) GetBatch(ctx context.Context, id string) (Batch, error) {
	return svc.repo.GetBatch(ctx, id)
}

// Students returns the approved students of batch id.
func (svc *Service) Students(ctx context.Context, id string) ([]profile.Profile, error) {
	if _, err := svc.repo.GetBatch(ctx, id); err != nil {
		return nil, err
	}
	return svc.repo.QueryBatchStudents(ctx, id)
}
