package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/account"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/fees"
	"github.com/trezcool/admissions/core/receipt"
	appfs "github.com/trezcool/admissions/fs"
	emailsvc "github.com/trezcool/admissions/services/email"
	logsvc "github.com/trezcool/admissions/services/logger"
	draftcache "github.com/trezcool/admissions/storage/cache"
	"github.com/trezcool/admissions/storage/database"
	pgdb "github.com/trezcool/admissions/storage/database/postgres"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(logger, err)
	defer db.Close()
	errAndDie(logger, database.Ping(db.DB))

	// set up services
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	fees.InitValidators(validate, translator)
	receipt.InitValidators(validate, translator)
	account.InitValidators(validate, translator)

	core.ParseEmailTemplates(appfs.FS, "templates/email", conf, logger)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	svc := admission.NewService(admission.Options{
		Store:      pgdb.New(db),
		Calculator: fees.NewCalculator(conf),
		Issuer:     account.NewIssuer(validate),
		Drafts:     draftcache.NewMemoryStore(conf.Drafts.TTL),
		MailSvc:    mailSvc,
		Logger:     logger,
		Validate:   validate,
		Conf:       conf,
	})

	// start CLI
	cli := commandLine{
		db:  db.DB,
		svc: svc,
		out: os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Printf("\nerror: %s\n", err)
		}
		db.Close()
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
