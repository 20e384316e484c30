package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/admissions/apps/api/echo"
	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/account"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/fees"
	"github.com/trezcool/admissions/core/receipt"
	"github.com/trezcool/admissions/core/report"
	"github.com/trezcool/admissions/core/store"
	emailsvc "github.com/trezcool/admissions/services/email"
	logsvc "github.com/trezcool/admissions/services/logger"
	draftcache "github.com/trezcool/admissions/storage/cache"
	"github.com/trezcool/admissions/storage/database"
	pgdb "github.com/trezcool/admissions/storage/database/postgres"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type admissionParams struct {
	dig.In
	Conf     *core.Config
	Logger   core.Logger
	Store    store.Store
	Drafts   admission.DraftStore
	MailSvc  core.EmailService
	Validate *validator.Validate
}

type serverParams struct {
	dig.In
	Conf         *core.Config
	Logger       core.Logger
	Translator   ut.Translator
	AdmissionSvc *admission.Service
	ReportSvc    *report.Service
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

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newStore(db *sqlx.DB) store.Store {
	return pgdb.New(db)
}

func newDraftStore(conf *core.Config, logger core.Logger) admission.DraftStore {
	drafts, err := draftcache.New(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up draft store: %v", err), err)
	}
	return drafts
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newValidator registers every custom tag against the translator used by the API.
func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	fees.InitValidators(validate, translator)
	receipt.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	return validate
}

func newAdmissionService(p admissionParams) *admission.Service {
	return admission.NewService(admission.Options{
		Store:      p.Store,
		Calculator: fees.NewCalculator(p.Conf),
		Issuer:     account.NewIssuer(p.Validate),
		Drafts:     p.Drafts,
		MailSvc:    p.MailSvc,
		Logger:     p.Logger,
		Validate:   p.Validate,
		Conf:       p.Conf,
	})
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:         p.Conf,
		Logger:       p.Logger,
		Translator:   p.Translator,
		AdmissionSvc: p.AdmissionSvc,
		ReportSvc:    p.ReportSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newStore))
	must(c.Provide(newDraftStore))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newAdmissionService))
	must(c.Provide(report.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
