package main

import (
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/stitchapp/stitch/internal/auth"
	"github.com/stitchapp/stitch/internal/chat"
	"github.com/stitchapp/stitch/internal/config"
	"github.com/stitchapp/stitch/internal/convlog"
	"github.com/stitchapp/stitch/internal/db"
	"github.com/stitchapp/stitch/internal/fanout"
	"github.com/stitchapp/stitch/internal/finalize"
	"github.com/stitchapp/stitch/internal/llm"
	"github.com/stitchapp/stitch/internal/poller"
	"github.com/stitchapp/stitch/internal/push"
	"github.com/stitchapp/stitch/internal/server"
	"github.com/stitchapp/stitch/internal/sessions"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runServe(cmd, cfg)
		},
	}
}

func runServe(cmd *cobra.Command, cfg *config.Config) error {
	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	store := sessions.New(sessions.Opts{
		SessionTTL: cfg.SessionTTL(),
		MarkerTTL:  cfg.MarkerTTL(),
	})
	convLog := convlog.New(gormDB)

	var client llm.Client
	if cfg.Model.APIKey != "" {
		client, err = llm.NewOpenAI(llm.OpenAIOpts{
			APIKey:    cfg.Model.APIKey,
			BaseURL:   cfg.Model.BaseURL,
			Model:     cfg.Model.Model,
			MaxTokens: cfg.Model.MaxTokens,
		})
		if err != nil {
			return err
		}
	} else {
		return fmt.Errorf("serve: model api key is required (set model.api_key or STITCH_MODEL_API_KEY)")
	}
	driver := chat.NewDriver(convLog, client)

	sender, err := push.New(cfg.Push.Provider)
	if err != nil {
		return err
	}
	fan := fanout.New(gormDB, sender)

	var issuer *auth.Issuer
	if cfg.Auth.JWTSecret != "" {
		issuer, err = auth.NewIssuer(auth.IssuerOpts{
			Secret:     cfg.Auth.JWTSecret,
			AccessTTL:  cfg.AccessTTL(),
			RefreshTTL: cfg.RefreshTTL(),
		})
		if err != nil {
			return err
		}
	} else {
		log.Printf("serve: no jwt secret configured, signup results will carry no tokens")
	}

	worker, err := finalize.New(finalize.Opts{
		DB:        gormDB,
		Store:     store,
		Log:       convLog,
		Fanout:    fan,
		Issuer:    issuer,
		Workers:   cfg.Finalize.Workers,
		QueueSize: cfg.Finalize.QueueSize,
	})
	if err != nil {
		return err
	}
	worker.Start()
	defer worker.Stop()

	await, err := poller.New(poller.Opts{
		Store:    store,
		Watch:    worker.Watch,
		Interval: cfg.PollInterval(),
		Budget:   cfg.PollBudget(),
	})
	if err != nil {
		return err
	}

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.Session.SweepSchedule, func() {
		if n := store.Sweep(); n > 0 {
			log.Printf("serve: swept %d expired session entries", n)
		}
	}); err != nil {
		return fmt.Errorf("serve: sweep schedule %q: %w", cfg.Session.SweepSchedule, err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Start(ctx, server.StartOpts{
		Deps: server.Deps{
			Store:  store,
			Driver: driver,
			Worker: worker,
			Poller: await,
		},
		Port: cfg.Server.Port,
		Out:  cmd.OutOrStdout(),
	})
}
