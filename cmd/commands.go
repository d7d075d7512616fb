package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"pockettrade.com/internal/api"
	"pockettrade.com/internal/auth"
	"pockettrade.com/internal/engine"
	"pockettrade.com/internal/infra"
	"pockettrade.com/internal/operator"
)

func serveCmd() *cobra.Command {
	var withOperator bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and WebSocket push",
		Long: `Run the HTTP API and WebSocket push.

In paper venue mode balances live in process memory, so the operator
loop must run in the same process: pass --with-operator.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApplication(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.close()

			if err := infra.Migrate(app.db); err != nil {
				return err
			}

			// WebSocket 与事件推送
			hub := infra.NewWsManager(logger)
			eng := engine.NewEngine(app.rdb, app.bus, hub, logger)
			if err := eng.Start(); err != nil {
				return err
			}
			defer eng.Stop()

			if withOperator {
				sched, err := startScheduler(ctx, app, logger)
				if err != nil {
					return err
				}
				defer sched.Stop()
			}

			server, err := api.NewServer(cfg.Server.AppName, api.Deps{
				Config:    cfg.Server,
				DB:        app.db,
				Pockets:   app.pockets,
				Registry:  app.registry,
				Custody:   app.custody,
				Funder:    app.funder,
				WsManager: eng.GetWebSocketHub(),
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			go func() {
				<-ctx.Done()
				logger.Info("Server shutting down...")
				_ = server.Shutdown()
			}()

			logger.Info("Server starting", zap.String("port", cfg.Server.Port))
			return server.Listen(":" + cfg.Server.Port)
		},
	}
	cmd.Flags().BoolVar(&withOperator, "with-operator", false, "run the operator cron loop in this process")
	return cmd
}

func operateCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "operate",
		Short: "Execute due pockets on the configured schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApplication(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.close()

			if once {
				op, err := newOperator(app, logger)
				if err != nil {
					return err
				}
				stats, err := op.RunOnce(ctx)
				if err != nil {
					return err
				}
				logger.Info("Operator: run finished",
					zap.Int("due", stats.Due),
					zap.Int("executed", stats.Executed),
					zap.Int("skipped", stats.Skipped),
					zap.Int("failed", stats.Failed),
					zap.Int("deferred", stats.Deferred))
				return nil
			}

			sched, err := startScheduler(ctx, app, logger)
			if err != nil {
				return err
			}
			<-ctx.Done()
			sched.Stop()
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single pass and exit")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables and default RBAC policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			pg, err := infra.NewPostgresClient(cfg.Database, logger)
			if err != nil {
				return err
			}
			if err := infra.Migrate(pg.DB); err != nil {
				return err
			}
			if _, err := auth.InitCasbin(pg.DB, logger); err != nil {
				return err
			}
			logger.Info("Migration finished")
			return nil
		},
	}
}

func newOperator(app *application, logger *zap.Logger) (*operator.Operator, error) {
	identity := app.cfg.Operator.Identity
	if identity == "" {
		return nil, errors.New("operator.identity is required")
	}
	return operator.New(app.pockets, identity, app.cfg.Operator.BatchSize, logger), nil
}

func startScheduler(ctx context.Context, app *application, logger *zap.Logger) (*operator.Scheduler, error) {
	op, err := newOperator(app, logger)
	if err != nil {
		return nil, err
	}
	sched := operator.NewScheduler(ctx, op, logger)
	if _, err := sched.Schedule(app.cfg.Operator.Schedule); err != nil {
		return nil, err
	}
	sched.Start()
	logger.Info("Operator scheduled",
		zap.String("identity", app.cfg.Operator.Identity), zap.String("schedule", app.cfg.Operator.Schedule))
	return sched, nil
}
