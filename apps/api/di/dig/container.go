package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/jayalms/lms/apps/api/echo"
	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/batch"
	"github.com/jayalms/lms/core/enrollment"
	"github.com/jayalms/lms/core/identity"
	"github.com/jayalms/lms/core/notice"
	"github.com/jayalms/lms/core/profile"
	"github.com/jayalms/lms/core/submission"
	emailsvc "github.com/jayalms/lms/services/email"
	"github.com/jayalms/lms/services/filestore"
	logsvc "github.com/jayalms/lms/services/logger"
	"github.com/jayalms/lms/services/realtime"
	"github.com/jayalms/lms/storage/database"
	inmemdb "github.com/jayalms/lms/storage/database/inmem"
	sqlxrepos "github.com/jayalms/lms/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Database is the PostgreSQL connection; SQL is nil with the inmem engine.
	Database struct {
		SQL *sqlx.DB
	}

	Repositories struct {
		dig.Out
		Accounts    identity.AccountRepository
		Profiles    profile.Repository
		Batches     batch.Repository
		Enrollments enrollment.Repository
		Notices     notice.Repository
		Submissions submission.Repository
	}

	// Storage is the submission file store. Local is only set with the local driver: the API serves its files.
	Storage struct {
		dig.Out
		Files core.FileStorage
		Local *filestore.LocalStorage
	}

	// Broker is the change feed. Close releases the Redis connection when there is one.
	Broker struct {
		core.ChangeBroker
		close func() error
	}
)

func (db *Database) Close() error {
	if db.SQL == nil {
		return nil
	}
	return db.SQL.Close()
}

func (b *Broker) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *Database {
	if conf.Database.Engine == "inmem" {
		return &Database{}
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB, "up"); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return &Database{SQL: db}
}

func newRepositories(db *Database) Repositories {
	if db.SQL == nil {
		mem := inmemdb.Open()
		return Repositories{
			Accounts:    inmemdb.NewAccountRepository(mem),
			Profiles:    inmemdb.NewProfileRepository(mem),
			Batches:     inmemdb.NewBatchRepository(mem),
			Enrollments: inmemdb.NewEnrollmentRepository(mem),
			Notices:     inmemdb.NewNoticeRepository(mem),
			Submissions: inmemdb.NewSubmissionRepository(mem),
		}
	}
	return Repositories{
		Accounts:    sqlxrepos.NewAccountRepository(db.SQL),
		Profiles:    sqlxrepos.NewProfileRepository(db.SQL),
		Batches:     sqlxrepos.NewBatchRepository(db.SQL),
		Enrollments: sqlxrepos.NewEnrollmentRepository(db.SQL),
		Notices:     sqlxrepos.NewNoticeRepository(db.SQL),
		Submissions: sqlxrepos.NewSubmissionRepository(db.SQL),
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridAPIKey == "" {
		return emailsvc.NewConsoleService(conf, log.New(os.Stdout, "", 0), logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newStorage(conf *core.Config) (Storage, error) {
	switch conf.Storage.Driver {
	case "oss":
		files, err := filestore.NewOSSStorage(conf)
		if err != nil {
			return Storage{}, err
		}
		return Storage{Files: files}, nil
	case "local", "":
		files, err := filestore.NewLocalStorage(conf)
		if err != nil {
			return Storage{}, err
		}
		return Storage{Files: files, Local: files}, nil
	}
	return Storage{}, errors.Errorf("unknown storage driver %q", conf.Storage.Driver)
}

func newBroker(conf *core.Config, logger core.Logger) (*Broker, error) {
	switch conf.Realtime.Driver {
	case "redis":
		broker, err := realtime.NewRedisBroker(context.Background(), realtime.NewRedisClient(conf), conf, logger)
		if err != nil {
			return nil, errors.Wrap(err, "connecting to redis")
		}
		return &Broker{ChangeBroker: broker, close: broker.Close}, nil
	case "memory", "":
		return &Broker{ChangeBroker: realtime.NewHub(logger)}, nil
	}
	return nil, errors.Errorf("unknown realtime driver %q", conf.Realtime.Driver)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := core.NewValidator(translator)
	identity.InitValidators(validate, translator)
	return validate
}

func newIdentityService(
	repo identity.AccountRepository,
	validate *validator.Validate,
	mailSvc core.EmailService,
	broker *Broker,
	conf *core.Config,
	logger core.Logger,
) *identity.Service {
	return identity.NewService(repo, validate, mailSvc, broker, conf, logger)
}

func newProfileService(repo profile.Repository, validate *validator.Validate, broker *Broker, logger core.Logger) *profile.Service {
	return profile.NewService(repo, validate, broker, logger)
}

func newBatchService(repo batch.Repository, validate *validator.Validate, broker *Broker, logger core.Logger) *batch.Service {
	return batch.NewService(repo, validate, broker, logger)
}

func newEnrollmentService(
	repo enrollment.Repository,
	profiles *profile.Service,
	batches *batch.Service,
	accounts identity.AccountRepository,
	mailSvc core.EmailService,
	validate *validator.Validate,
	broker *Broker,
	logger core.Logger,
) *enrollment.Service {
	return enrollment.NewService(repo, profiles, batches, accounts, mailSvc, validate, broker, logger)
}

func newNoticeService(repo notice.Repository, batches *batch.Service, validate *validator.Validate, broker *Broker, logger core.Logger) *notice.Service {
	return notice.NewService(repo, batches, validate, broker, logger)
}

func newSubmissionService(
	repo submission.Repository,
	batches *batch.Service,
	storage core.FileStorage,
	conf *core.Config,
	broker *Broker,
	logger core.Logger,
) *submission.Service {
	return submission.NewService(repo, batches, storage, conf, broker, logger)
}

type serverParams struct {
	dig.In
	Conf        *core.Config
	Logger      core.Logger
	Validate    *validator.Validate
	Translator  ut.Translator
	Identity    *identity.Service
	Profiles    *profile.Service
	Batches     *batch.Service
	Enrollments *enrollment.Service
	Notices     *notice.Service
	Submissions *submission.Service
	Broker      *Broker
	Files       *filestore.LocalStorage
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:        p.Conf,
		Logger:      p.Logger,
		Validate:    p.Validate,
		Translator:  p.Translator,
		Identity:    p.Identity,
		Profiles:    p.Profiles,
		Batches:     p.Batches,
		Enrollments: p.Enrollments,
		Notices:     p.Notices,
		Submissions: p.Submissions,
		Broker:      p.Broker,
		Files:       p.Files,
	})
}

// New returns a new dependency injection dig.Container
func New(visualize bool) *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(newStorage))
	must(c.Provide(newBroker))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newIdentityService))
	must(c.Provide(newProfileService))
	must(c.Provide(newBatchService))
	must(c.Provide(newEnrollmentService))
	must(c.Provide(newNoticeService))
	must(c.Provide(newSubmissionService))
	must(c.Provide(newServer))

	if visualize {
		_ = dig.Visualize(c, os.Stdout)
	}
	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
