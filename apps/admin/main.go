package main

import (
	"log"
	"os"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	notifysvc "github.com/trezcool/darasa/services/notify"
	"github.com/trezcool/darasa/storage/database"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(false) // console only

	repo := database.NewAccountRepository(db)
	notifier := notifysvc.NewNotifier(
		emailsvc.NewConsoleService(conf),
		notifysvc.NewProducer(conf.Kafka.Broker, conf.Kafka.Topic),
		appLogger,
	)

	// start CLI
	cli := commandLine{
		db:       db,
		acctRepo: repo,
		acctSvc:  account.NewService(repo, notifier, conf),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
