package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/campus-reservation/internal/config"
	"github.com/iliyamo/campus-reservation/internal/directory"
	"github.com/iliyamo/campus-reservation/internal/handler"
	"github.com/iliyamo/campus-reservation/internal/jobs"
	"github.com/iliyamo/campus-reservation/internal/metrics"
	"github.com/iliyamo/campus-reservation/internal/queue"
	"github.com/iliyamo/campus-reservation/internal/router"
	"github.com/iliyamo/campus-reservation/internal/service"
	"github.com/iliyamo/campus-reservation/internal/validation"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the hold sweeper and the booking event consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	bcfg, err := config.LoadBookingConfig()
	if err != nil {
		return err
	}
	qcfg := config.LoadQueueConfig()

	ledger, closer, err := openLedger(cfg)
	if err != nil {
		return err
	}
	rdb := config.NewRedisClient()
	defer func() {
		var result *multierror.Error
		result = multierror.Append(result, closer.Close())
		if rdb != nil {
			result = multierror.Append(result, rdb.Close())
		}
		if cerr := result.ErrorOrNil(); cerr != nil {
			log.WithError(cerr).Warn("shutdown: closing resources")
			if err == nil {
				err = cerr
			}
		}
	}()

	var notifier service.Notifier = service.NopNotifier{}
	if qcfg.Enabled {
		notifier = queue.NewPublisher(qcfg, nil)
	}
	coord := service.NewCoordinator(ledger, service.Options{
		HoldTTL:   bcfg.HoldTTL,
		Notifier:  notifier,
		Validator: validation.New(bcfg.Rules()),
	})
	dir, err := directory.New(ledger, bcfg.DirectorySize, nil, bcfg.Location)
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	router.Register(e, router.Deps{
		JWTSecret: cfg.JWTSecret,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		Redis:     rdb,
		Metrics:   metrics.Handler(),
		Bookings:  handler.NewBookingHandler(coord),
		Units:     handler.NewUnitHandler(coord, dir),
		Resources: handler.NewResourceHandler(dir),
	})

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := ":" + cfg.Port
		log.WithFields(log.Fields{"addr": addr, "env": cfg.Env, "driver": cfg.DBDriver}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		serr := e.Shutdown(sctx)
		coord.Wait()
		return serr
	})
	g.Go(func() error {
		return jobs.NewSweeper(coord, bcfg.SweepInterval).Run(ctx)
	})
	if qcfg.Enabled {
		g.Go(func() error {
			out, err := queue.OpenLog(qcfg.LogPath)
			if err != nil {
				return err
			}
			defer out.Close()
			var mailer queue.Mailer
			if m := queue.NewSendGridMailer(config.LoadMailConfig()); m != nil {
				mailer = m
			}
			return queue.NewConsumer(qcfg, out, mailer).Run(ctx)
		})
	}
	return g.Wait()
}
