package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // Register the pprof handlers
	"os"

	"golang.org/x/sync/errgroup"

	dig_container "github.com/trezcool/masomo-lms/apps/api/di/dig"
	echoapi "github.com/trezcool/masomo-lms/apps/api/echo"
	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/quiz"
	"github.com/trezcool/masomo-lms/core/user"
	appfs "github.com/trezcool/masomo-lms/fs"
)

func main() {
	c := dig_container.New("API", core.NewConfig)

	var runErr error
	err := c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		resources dig_container.Resources,
		server echoapi.Server,
		sweeper *quiz.Sweeper,
	) {
		defer func() {
			if err := resources.Close(); err != nil {
				logger.Error(fmt.Sprintf("closing resources: %v", err), err)
			}
		}()

		core.ParseEmailTemplates(appfs.FS, "assets/templates/email", conf, logger)
		user.LoadCommonPasswords(appfs.FS, "assets/common-passwords.txt", logger)

		startDebugServer(conf, logger)

		if runErr = run(conf, logger, server, sweeper); runErr != nil {
			logger.Error(fmt.Sprintf("server error: %v", runErr), runErr)
		}
	})
	if err != nil {
		log.Fatalf("starting API: %v", err)
	}
	if runErr != nil {
		os.Exit(1)
	}
}

// =========================================================================
// Start Debug Service
//
// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
// /debug/vars - Added to the default mux by importing the expvar package.
func startDebugServer(conf *core.Config, logger core.Logger) {
	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	if conf.Server.DebugHost == "" {
		return
	}
	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()
}

// run serves the API and sweeps expired quiz attempts until a shutdown signal or a server error.
func run(conf *core.Config, logger core.Logger, server echoapi.Server, sweeper *quiz.Sweeper) error {
	g, ctx := errgroup.WithContext(context.Background())
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()

	g.Go(server.Start)
	g.Go(func() error { return sweeper.Run(sweepCtx) })

	// =========================================================================
	// Shutdown

	g.Go(func() error {
		defer stopSweeper()

		select {
		case <-ctx.Done(): // the server failed
			return nil
		case sig := <-server.ShutdownSignal():
			logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
		}

		// give outstanding requests a deadline for completion
		shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				return fmt.Errorf("could not force stop server: %w", err)
			}
		}
		return nil
	})

	return g.Wait()
}
