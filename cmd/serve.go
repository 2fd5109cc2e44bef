package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quicklearn/quicklearn/internal/api"
	"github.com/quicklearn/quicklearn/internal/worker"
)

var (
	servePort       int
	serveWithWorker bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the explanation API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		env.Router.Quarantine().StartSweeper(ctx, cfg.Router.QuarantineClearInterval())

		var usage api.UsageReader
		var limiter api.RateLimiter
		if env.Cache != nil {
			usage = env.Cache
			limiter = env.Cache
		}

		server := api.NewServer(env.Service, env.Router, usage, limiter, env.Store, api.Config{
			RateLimitPerMin: cfg.Server.RateLimitPerMin,
			RequestTimeout:  time.Duration(cfg.Server.RequestTimeoutSec) * time.Second,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: server.Routes(),
		}

		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		// The in-process queue has no external consumer, so the verifier
		// must run inside the server when requested or when NATS is absent.
		if serveWithWorker {
			var hc worker.HotCache
			if env.Cache != nil {
				hc = env.Cache
			}
			g.Go(func() error {
				v := worker.New(env.Store, env.Router, hc, cfg.Worker)
				zap.L().Info("starting embedded verification worker")
				return v.Run(ctx, env.Queue)
			})
		}

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveWithWorker, "with-worker", false, "run the verification worker in-process")
	rootCmd.AddCommand(serveCmd)
}
