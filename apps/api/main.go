package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	dig_container "github.com/trezcool/academia/apps/api/di/dig"
	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/assets"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/services/bus"
	"github.com/trezcool/academia/services/metrics"
	"github.com/trezcool/academia/services/ratelimit"
)

// TODO:
// - Profiling (Benchmarking) !! https://blog.golang.org/pprof
// - APM/Tracing
// - CSRF (auth cookie)
func main() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		dbLoggerParam dig_container.DBLoggerParam,
		closeDB dig_container.DBCloser,
		eventBus bus.Bus,
		rateStore ratelimit.Store,
		opts *echoapi.Options,
	) {
		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		user.InitValidators(opts.Validate, opts.Translator)
		user.LoadCommonPasswords(assets.FS, assets.CommonPasswords, apiLogger)
		core.ParseEmailTemplates(assets.FS, assets.EmailTemplatesDir, conf, apiLogger)

		// flush pending rollbar items last
		if l, ok := apiLogger.(interface{ Close() }); ok {
			defer l.Close()
		}

		dbLogger := dbLoggerParam.Logger
		defer func() {
			if err := closeDB(); err != nil {
				dbLogger.Error("Failed to close", err)
			}
		}()
		defer func() {
			if err := eventBus.Close(); err != nil {
				apiLogger.Error(fmt.Sprintf("closing the event bus: %v", err), err)
			}
		}()
		defer apiLogger.Info("Application stopped")

		// =========================================================================
		// Start Debug Service
		//
		// /debug/vars - Added to the default mux by importing the expvar package.
		// /metrics - Prometheus collectors.

		// Expose important info under /debug/vars.
		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)
		http.Handle("/metrics", metrics.Handler())

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start Jobs

		jobs := cron.New()
		if mem, ok := rateStore.(*ratelimit.MemoryStore); ok {
			_, err := jobs.AddFunc(conf.Server.RateLimitSweepSpec, func() {
				if n := mem.Sweep(time.Now()); n > 0 {
					apiLogger.Debug(fmt.Sprintf("rate limiter: swept %d expired windows", n))
				}
			})
			if err != nil {
				apiLogger.Fatal(fmt.Sprintf("scheduling rate limiter sweep: %v", err), err)
			}
		}
		jobs.Start()
		defer jobs.Stop()

		// =========================================================================
		// Start API Service

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		server := echoapi.NewServer(opts, func() { shutdown <- syscall.SIGTERM })
		serverErrors := make(chan error, 1)

		go func() {
			apiLogger.Info(fmt.Sprintf("API listening on %s", conf.Server.Host))
			serverErrors <- server.Start()
		}()

		// =========================================================================
		// Shutdown

		select {
		case err := <-serverErrors:
			apiLogger.Error(fmt.Sprintf("server error: %v", err), err)

		case sig := <-shutdown:
			apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			// asking listener to shut down and shed load
			if err := server.Stop(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
			}
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
