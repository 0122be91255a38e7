package command

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shrimp/internal/clock"
	"shrimp/internal/database"
	httpHandler "shrimp/internal/handler/http"
	"shrimp/internal/service"
)

const tideChartsDBPath = "tide-charts.db"

// NewTideChartsCmd builds the tide-charts command tree.
func NewTideChartsCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tide-charts",
		Short:         "tide-charts - activity stats dashboard backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.Version = version
	addStorageFlags(cmd)

	cmd.AddCommand(
		newTideChartsServeCmd(),
		migrateCmd(tideChartsDBPath, database.StatsModels),
	)
	return cmd
}

func newTideChartsServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tide-charts HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, tideChartsDBPath)
			if err != nil {
				return err
			}
			defer a.close()

			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				a.cfg.HTTPServer.Address = addr
			}

			a.log.Info("starting tide-charts", zap.String("env", a.cfg.Env), zap.String("driver", a.cfg.Database.Driver))

			store, err := a.openStore(a.cfg.Database.AutoMigrate, database.StatsModels()...)
			if err != nil {
				return err
			}

			server := httpHandler.NewStatsServer(
				service.NewStatsService(store, clock.System, a.log),
				service.NewAggregator(store, clock.System, a.log),
				store,
				a.log,
				a.cfg.HTTPServer.CORSOrigin,
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runHTTP(ctx, &a.cfg.HTTPServer, server.SetupRoutes(), a.log)
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides HTTP_ADDRESS and PORT)")
	return cmd
}
