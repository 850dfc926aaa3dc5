// Package testutil wires the services on the in-memory database for tests.
package testutil

import (
	"context"
	"sync"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/batch"
	"github.com/jayalms/lms/core/enrollment"
	"github.com/jayalms/lms/core/identity"
	"github.com/jayalms/lms/core/notice"
	"github.com/jayalms/lms/core/profile"
	"github.com/jayalms/lms/core/submission"
	appfs "github.com/jayalms/lms/fs"
	emailsvc "github.com/jayalms/lms/services/email"
	"github.com/jayalms/lms/services/realtime"
	inmemdb "github.com/jayalms/lms/storage/database/inmem"
)

const Password = "correct-horse-battery"

var parseTemplates sync.Once

type Env struct {
	Conf       *core.Config
	DB         *inmemdb.DB
	Validate   *validator.Validate
	Translator ut.Translator
	Mail       *emailsvc.ConsoleService
	Broker     *realtime.Hub

	Identity    *identity.Service
	Profiles    *profile.Service
	Batches     *batch.Service
	Enrollments *enrollment.Service
	Notices     *notice.Service
	Submissions *submission.Service
}

// NewEnv returns services on a fresh in-memory database. storage may be nil when submissions are not exercised.
func NewEnv(t *testing.T, storage core.FileStorage) *Env {
	t.Helper()
	parseTemplates.Do(func() { core.ParseEmailTemplates(appfs.FS, core.NopLogger) })

	conf := core.NewTestConfig()
	db := inmemdb.Open()
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	identity.InitValidators(validate, translator)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	broker := realtime.NewHub(core.NopLogger)

	accounts := inmemdb.NewAccountRepository(db)
	profiles := profile.NewService(inmemdb.NewProfileRepository(db), validate, broker, core.NopLogger)
	batches := batch.NewService(inmemdb.NewBatchRepository(db), validate, broker, core.NopLogger)

	return &Env{
		Conf:        conf,
		DB:          db,
		Validate:    validate,
		Translator:  translator,
		Mail:        mailSvc,
		Broker:      broker,
		Identity:    identity.NewService(accounts, validate, mailSvc, broker, conf, core.NopLogger),
		Profiles:    profiles,
		Batches:     batches,
		Enrollments: enrollment.NewService(inmemdb.NewEnrollmentRepository(db), profiles, batches, accounts, mailSvc, validate, broker, core.NopLogger),
		Notices:     notice.NewService(inmemdb.NewNoticeRepository(db), batches, validate, broker, core.NopLogger),
		Submissions: submission.NewService(inmemdb.NewSubmissionRepository(db), batches, storage, conf, broker, core.NopLogger),
	}
}

// CreateUser registers an account with Password. An empty phone leaves the profile incomplete.
func (env *Env) CreateUser(t *testing.T, email, name, phone string, role profile.Role) (identity.Session, profile.Profile) {
	t.Helper()
	ctx := context.Background()
	sess, err := env.Identity.Register(ctx, identity.NewAccount{
		Email:           email,
		Password:        Password,
		PasswordConfirm: Password,
		Name:            name,
		Role:            role,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	if phone != "" {
		if _, err = env.Profiles.Complete(ctx, sess.UserID, profile.CompleteProfile{Name: name, PhoneNumber: phone}); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	prof, err := env.Profiles.GetProfile(ctx, sess.UserID)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return sess, prof
}

func (env *Env) CreateBatch(t *testing.T, name, startDate string) batch.Batch {
	t.Helper()
	b, err := env.Batches.Create(context.Background(), batch.Form{Name: name, StartDate: startDate})
	if err != nil {
		t.Fatalf("CreateBatch() failed: %v", err)
	}
	return b
}

// Enroll creates an enrollment of student in b with status.
func (env *Env) Enroll(t *testing.T, studentID string, b batch.Batch, status enrollment.Status) enrollment.Enrollment {
	t.Helper()
	ctx := context.Background()
	e, err := env.Enrollments.Request(ctx, studentID, enrollment.RequestForm{BatchID: b.ID})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	if status != enrollment.StatusPending {
		if e, err = env.Enrollments.SetStatus(ctx, e.ID, enrollment.StatusForm{Status: status}); err != nil {
			t.Fatalf("Enroll() failed: %v", err)
		}
	}
	return e
}
