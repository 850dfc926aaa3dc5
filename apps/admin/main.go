package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/identity"
	appfs "github.com/jayalms/lms/fs"
	emailsvc "github.com/jayalms/lms/services/email"
	"github.com/jayalms/lms/services/realtime"
	"github.com/jayalms/lms/storage/database"
	sqlxrepos "github.com/jayalms/lms/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)

	appLogger := core.StdLogger{Std: logger}
	core.ParseEmailTemplates(appfs.FS, appLogger)
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	identity.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:       db.DB,
		identity: newIdentityService(conf, validate, db, appLogger),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func newIdentityService(conf *core.Config, validate *validator.Validate, db *sqlx.DB, logger core.Logger) *identity.Service {
	mailSvc := emailsvc.NewConsoleService(conf, log.New(os.Stdout, "", 0), logger)
	return identity.NewService(sqlxrepos.NewAccountRepository(db), validate, mailSvc, realtime.NewHub(logger), conf, logger)
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
