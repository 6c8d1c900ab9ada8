package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ginjaninja78/transmittal-log/internal/httpapi"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the transmittal form API:

  GET  /api/v1/sources
  GET  /api/v1/search?ref=&source=
  POST /api/v1/transmittals/allocate
  POST /api/v1/transmittals
  POST /api/v1/transmittals/preview
  GET  /api/v1/transmittals/pending
  POST /api/v1/transmittals/:no/render`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := buildApp(ctx, cfg, zlog)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.registry.Exists() {
		zlog.Warn("registry workbook not found; run 'transmittal init'", zap.String("path", cfg.Registry.Path))
	}

	router := httpapi.NewRouter(a.service, cfg.Server, zlog.Named("http"))
	return httpapi.NewServer(router, cfg.Server, zlog.Named("http")).Run(ctx)
}
