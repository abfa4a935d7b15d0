// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/mtb-analyzer/internal/api"
	"github.com/pdiddy/mtb-analyzer/internal/pipeline"
	"github.com/pdiddy/mtb-analyzer/internal/schedule"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the control API and run scheduled syncs",
	Long: `Serve exposes the task, edition, item and settings endpoints over
HTTP. Only one operation runs at a time; a start request while another runs
is refused. When schedule.cron is set, sync also runs on that schedule.

The server stops on SIGINT, SIGTERM or POST /api/settings/shutdown.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (default 5000)")
	serveCmd.Flags().String("cron", "", "sync schedule as a five-field cron expression, e.g. \"0 7 * * *\"")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("schedule.cron", serveCmd.Flags().Lookup("cron"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, os.Stdout)
	if err != nil {
		return err
	}
	defer a.close()

	if !viper.GetBool("log.development") {
		gin.SetMode(gin.ReleaseMode)
	}

	if spec := a.cfg.Sync.Cron; spec != "" {
		name, fn, err := a.pipeline.Job(pipeline.Request{Kind: pipeline.KindSync})
		if err != nil {
			return err
		}
		sched, err := schedule.New(spec, a.engine, name, fn, a.log)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop(context.WithoutCancel(ctx))
	}

	handler := api.NewHandler(a.engine, a.pipeline, a.store, a.cfg.Analysis.APIKey, cancel, a.log)
	srv := api.NewServer(a.cfg.Server, api.NewRouter(handler, a.log), a.log)
	a.log.Info("starting mtb-analyzer", zap.String("version", version), zap.String("addr", srv.Addr()))
	return srv.Run(ctx)
}
