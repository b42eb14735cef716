package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	echoapi "github.com/trezcool/picha/apps/api/echo"
	"github.com/trezcool/picha/core"
	"github.com/trezcool/picha/core/album"
	"github.com/trezcool/picha/core/user"
	emailsvc "github.com/trezcool/picha/services/email"
	logsvc "github.com/trezcool/picha/services/logger"
	"github.com/trezcool/picha/storage/database"
	sqlxrepos "github.com/trezcool/picha/storage/database/sqlx"
	objstore "github.com/trezcool/picha/storage/object"
)

func main() {
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std, core.Conf)
	logger.Enable(!core.Conf.Debug)

	if err := run(logger); err != nil {
		logger.Fatal(err.Error(), err)
	}
}

func run(logger core.Logger) error {
	ctx := context.Background()

	// set up DB
	if err := database.CreateIfNotExist(core.Conf); err != nil {
		return err
	}
	db, err := database.Open(core.Conf)
	if err != nil {
		return err
	}
	defer db.Close()
	if err = database.Migrate(db); err != nil {
		return err
	}

	// set up object storage
	store, err := objstore.NewS3Store(ctx, core.Conf.Storage)
	if err != nil {
		return err
	}

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc)
	albSvc := album.NewService(sqlxrepos.NewAlbumRepository(db), store, logger)

	// start API server
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	app := echoapi.NewServer(&echoapi.Options{
		Address:        core.Conf.Addr(),
		Logger:         logger,
		UserSvc:        usrSvc,
		AlbumSvc:       albSvc,
		SignalShutdown: func() { shutdown <- syscall.SIGTERM },
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening on " + core.Conf.Addr())
		serverErrors <- app.Start()
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-shutdown:
		logger.Info("shutdown started: " + sig.String())
		defer logger.Info("shutdown complete")

		ctx, cancel := context.WithTimeout(ctx, core.Conf.Server.ShutdownTimeout)
		defer cancel()

		if err := app.Stop(ctx); err != nil {
			return err
		}
	}
	return nil
}
