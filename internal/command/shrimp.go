package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shrimp/internal/auth"
	"shrimp/internal/blocklist"
	"shrimp/internal/clock"
	"shrimp/internal/database"
	httpHandler "shrimp/internal/handler/http"
	"shrimp/internal/maintenance"
	"shrimp/internal/ratelimit"
	"shrimp/internal/service"
	"shrimp/pkg/useragent"
)

const shrimpDBPath = "shrimp.db"

// NewShrimpCmd builds the shrimp command tree.
func NewShrimpCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "shrimp",
		Short:         "shrimp - URL shortener with click analytics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.Version = version
	addStorageFlags(cmd)

	cmd.AddCommand(
		newShrimpServeCmd(),
		migrateCmd(shrimpDBPath, database.LinkModels),
		newShrimpPurgeCmd(),
	)
	return cmd
}

func newLinkService(a *app, store Store) (*service.LinkService, error) {
	bl, err := blocklist.Default(a.cfg.Shortener.Blocklist...)
	if err != nil {
		return nil, err
	}

	var ua service.UserAgentParser
	if parser, err := useragent.NewParser(a.cfg.UserAgent.RegexesPath, a.log); err != nil {
		a.log.Warn("failed to initialize User-Agent parser, devices and browsers will be reported as unknown", zap.Error(err))
	} else {
		ua = parser
	}

	slugs := service.NewSlugAllocator(store, &a.cfg.Shortener, a.log)
	return service.NewLinkService(store, slugs, bl, ua, clock.System, a.log), nil
}

func newShrimpServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the shrimp HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, shrimpDBPath)
			if err != nil {
				return err
			}
			defer a.close()

			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				a.cfg.HTTPServer.Address = addr
			}

			a.log.Info("starting shrimp", zap.String("env", a.cfg.Env), zap.String("driver", a.cfg.Database.Driver))

			store, err := a.openStore(a.cfg.Database.AutoMigrate, database.LinkModels()...)
			if err != nil {
				return err
			}

			links, err := newLinkService(a, store)
			if err != nil {
				return err
			}

			passwordService := auth.NewPasswordService()
			jwtService, err := auth.NewJWTServiceFromConfig(&a.cfg.Admin, a.log)
			if err != nil {
				return err
			}
			authHandlers, err := auth.NewAuthHandlers(&a.cfg.Admin, jwtService, passwordService, a.log)
			if err != nil {
				return err
			}

			rl := a.cfg.RateLimit
			shortenLimiter := ratelimit.New("shorten", rl.ShortenWindow, rl.ShortenMax, clock.System)
			reportLimiter := ratelimit.New("report", rl.ReportWindow, rl.ReportMax, clock.System)

			jobs := []maintenance.Job{
				maintenance.SweepJob(shortenLimiter, clock.System, a.log),
				maintenance.SweepJob(reportLimiter, clock.System, a.log),
			}
			if a.cfg.Maintenance.PurgeEnabled {
				jobs = append(jobs, maintenance.PurgeJob(links, a.cfg.Maintenance.PurgeInterval, a.cfg.Maintenance.PurgeRetention, a.log))
			}
			runner := maintenance.NewRunner(a.log, maintenance.Config{
				RetryAttempts:   a.cfg.Maintenance.RetryAttempts,
				RetryDelay:      a.cfg.Maintenance.RetryDelay,
				ShutdownTimeout: a.cfg.HTTPServer.ShutdownTimeout,
			}, jobs...)
			if err := runner.Start(); err != nil {
				return err
			}
			defer func() {
				if err := runner.Stop(); err != nil {
					a.log.Error("failed to stop maintenance runner", zap.Error(err))
				}
			}()

			server := httpHandler.NewServer(
				links,
				store,
				authHandlers,
				auth.NewMiddleware(jwtService, a.log),
				shortenLimiter,
				reportLimiter,
				runner,
				a.log,
				a.cfg.Shortener.BaseURL,
				a.cfg.HTTPServer.CORSOrigin,
				a.cfg.HTTPServer.TrustProxy,
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runHTTP(ctx, &a.cfg.HTTPServer, server.SetupRoutes(), a.log)
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides HTTP_ADDRESS and PORT)")
	return cmd
}

// purgeCounter tallies what the purge job removed for the command output.
type purgeCounter struct {
	maintenance.Purger
	removed int64
}

func (p *purgeCounter) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := p.Purger.PurgeExpired(ctx, retention)
	p.removed += n
	return n, err
}

func newShrimpPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete links that expired longer ago than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, shrimpDBPath)
			if err != nil {
				return err
			}
			defer a.close()

			retention := a.cfg.Maintenance.PurgeRetention
			if v, _ := cmd.Flags().GetDuration("retention"); v > 0 {
				retention = v
			}

			store, err := a.openStore(a.cfg.Database.AutoMigrate, database.LinkModels()...)
			if err != nil {
				return err
			}
			links, err := newLinkService(a, store)
			if err != nil {
				return err
			}

			counter := &purgeCounter{Purger: links}
			runner := maintenance.NewRunner(a.log, maintenance.Config{
				RetryAttempts: a.cfg.Maintenance.RetryAttempts,
				RetryDelay:    a.cfg.Maintenance.RetryDelay,
				RunTimeout:    5 * time.Minute,
			}, maintenance.PurgeJob(counter, time.Hour, retention, a.log))

			if err := runner.RunNow(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired links\n", counter.removed)
			return nil
		},
	}
	cmd.Flags().Duration("retention", 0, "how long after expiry a link is kept (default from config)")
	return cmd
}
