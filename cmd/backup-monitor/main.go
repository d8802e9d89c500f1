// Command backup-monitor ingests backup-status notification emails,
// persists the extracted reports to SQLite and serves the read-side
// queries consumed by the chat bot.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sukhanovai/monitoring-sub002/handlers/cobian"
	"github.com/sukhanovai/monitoring-sub002/handlers/dumps"
	"github.com/sukhanovai/monitoring-sub002/handlers/inventory"
	"github.com/sukhanovai/monitoring-sub002/handlers/proxmox"
	"github.com/sukhanovai/monitoring-sub002/handlers/zfs"
	"github.com/sukhanovai/monitoring-sub002/internal/api"
	"github.com/sukhanovai/monitoring-sub002/internal/config"
	"github.com/sukhanovai/monitoring-sub002/internal/imapsource"
	"github.com/sukhanovai/monitoring-sub002/internal/maildir"
	"github.com/sukhanovai/monitoring-sub002/internal/report"
	"github.com/sukhanovai/monitoring-sub002/internal/router"
	"github.com/sukhanovai/monitoring-sub002/internal/storage"
	"github.com/sukhanovai/monitoring-sub002/pkg/patterns"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "backup-monitor",
		Short: "Backup report email ingestion and status queries",
		Long: `backup-monitor extracts structured backup reports from
notification emails (virtualization hosts, database dumps, storage
pools, inventory attachments), stores them idempotently in SQLite and
answers the status queries used by the chat bot.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.backup-monitor/config.yaml)")

	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(initDBCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(purgeCmd())
	rootCmd.AddCommand(reportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.OutputPaths = []string{"stderr"}
	if cfg.LogFile != "" {
		zapCfg.OutputPaths = append(zapCfg.OutputPaths, cfg.LogFile)
	}
	return zapCfg.Build()
}

// buildLibrary layers the pattern sources: built-in defaults, then the
// rows seeded into the store, then config overrides on top.
func buildLibrary(cfg *config.Config, store *storage.Store, log *zap.Logger) *patterns.Library {
	lib := patterns.NewLibrary()

	stored, err := store.LoadPatterns()
	if err != nil {
		log.Warn("falling back to built-in patterns", zap.Error(err))
		stored = nil
	}
	for category, exprs := range stored {
		if err := lib.Override(category, exprs); err != nil {
			log.Warn("ignoring stored patterns", zap.String("category", category), zap.Error(err))
		}
	}

	for category, exprs := range cfg.Patterns {
		if err := lib.Override(category, exprs); err != nil {
			log.Warn("ignoring configured patterns", zap.String("category", category), zap.Error(err))
		}
	}

	return lib
}

func buildRouter(cfg *config.Config, store *storage.Store, log *zap.Logger) *router.Router {
	lib := buildLibrary(cfg, store, log)

	r := router.New(log)
	r.Register(proxmox.New(store, lib, log))
	r.Register(cobian.New(store, lib, cfg.Displays("barnaul"), log))
	r.Register(dumps.NewCompany(store, lib, cfg.Displays("company"), log))
	r.Register(dumps.NewClient(store, lib, cfg.Displays("client"), log))
	r.Register(dumps.NewYandex(store, lib, cfg.Displays("yandex"), log))
	r.Register(zfs.New(store, log))
	r.Register(inventory.New(store, cfg.AttachmentsDir, log))
	return r
}

type runtimeDeps struct {
	cfg    *config.Config
	log    *zap.Logger
	store  *storage.Store
	router *router.Router
}

func setup() (*runtimeDeps, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return &runtimeDeps{
		cfg:    cfg,
		log:    log,
		store:  store,
		router: buildRouter(cfg, store, log),
	}, nil
}

func (d *runtimeDeps) close() {
	d.store.Close()
	d.log.Sync()
}

// processCmd reads one raw email from stdin, MTA-hook style. Exit 0
// means handled or graceful no-op; exit 1 means the message could not
// be parsed or the pipeline could not start.
func processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Process one raw email from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			if len(raw) == 0 {
				return nil
			}

			deps, err := setup()
			if err != nil {
				return err
			}
			defer deps.close()

			handled, err := deps.router.Route(raw, time.Now())
			if err != nil {
				return err
			}
			if !handled {
				deps.log.Info("no handler accepted the email")
			}
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll the maildir for new report emails",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := setup()
			if err != nil {
				return err
			}
			defer deps.close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			poller := maildir.New(deps.cfg.MaildirPath, deps.cfg.PollInterval(), deps.router, deps.log)
			deps.log.Info("watching maildir",
				zap.String("path", deps.cfg.MaildirPath),
				zap.Duration("interval", deps.cfg.PollInterval()))

			if err := poller.Run(ctx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}
}

func fetchCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and process recent emails from the IMAP mailbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := setup()
			if err != nil {
				return err
			}
			defer deps.close()

			if deps.cfg.IMAP.Server == "" {
				return fmt.Errorf("imap is not configured")
			}
			if days <= 0 {
				days = deps.cfg.IMAP.Days
			}

			fetcher := imapsource.New(deps.cfg.IMAP, deps.router, deps.log)
			if err := fetcher.Connect(); err != nil {
				return err
			}
			defer fetcher.Disconnect()

			processed, err := fetcher.FetchAndRoute(days)
			if err != nil {
				return err
			}
			fmt.Printf("Processed %d report emails\n", processed)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "fetch messages from the last N days")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only query API",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := setup()
			if err != nil {
				return err
			}
			defer deps.close()

			loc, err := deps.cfg.Location()
			if err != nil {
				return err
			}

			server := api.New(deps.store, loc, deps.log)
			return server.ListenAndServe(deps.cfg.HTTPAddr)
		},
	}
}

func initDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "initdb",
		Short: "Create the database schema and seed defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := storage.Open(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.SeedDefaults(patterns.Defaults()); err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.AttachmentsDir, 0o755); err != nil {
				return err
			}

			fmt.Printf("Database ready at %s\n", cfg.DatabasePath)
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Upgrade a legacy database to the deduplicating schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := storage.Open(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.MigrateLegacySchema(); err != nil {
				return err
			}
			fmt.Println("Schema migration complete")
			return nil
		},
	}
}

func purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete reports older than the retention horizon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := storage.Open(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			retention := cfg.Retention()
			// The settings table wins over the config default so
			// operators can tune retention without redeploying.
			if value, ok, err := store.GetSetting("max_backup_age_days"); err == nil && ok {
				var days int
				if _, err := fmt.Sscanf(value, "%d", &days); err == nil && days > 0 {
					retention = time.Duration(days) * 24 * time.Hour
				}
			}

			removed, err := store.PurgeOlderThan(retention)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d expired rows\n", removed)
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the backup status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := storage.Open(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			summary, err := report.Summary(store, loc)
			if err != nil {
				return err
			}
			fmt.Print(summary)
			return nil
		},
	}
}
