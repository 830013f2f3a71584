package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource/mssql"    // SQL Server dialect
	_ "github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource/mysql"    // MySQL dialect
	_ "github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource/postgres" // PostgreSQL dialect
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/config"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/database"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

// errIncomplete marks an extraction that finished with category or object failures.
var errIncomplete = errors.New("extraction completed with failures")

// app carries what every command needs once flags are parsed.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "schemadoc",
		Short:         "Reflect database catalogs into a documented, audited schema store",
		Long:          `schemadoc reads the catalogs of SQL Server, MySQL and PostgreSQL databases, normalizes tables, views, functions, procedures and triggers into one model, and keeps user documentation alongside them with a full audit trail.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath, "Config file (optional; environment variables override it)")

	root.AddCommand(
		newMigrateCmd(a),
		newExtractCmd(a),
		newObjectsCmd(a),
		newShowCmd(a),
		newAnnotateCmd(a),
		newAuditCmd(a),
		newDialectsCmd(a),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath, Version)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger.With(zap.String("version", Version))
	return nil
}

// openStore connects to the SchemaStore and returns a context pinned to one
// store session. cleanup releases the session and closes the pool.
func (a *app) openStore(ctx context.Context) (context.Context, func(), error) {
	db, err := database.NewConnection(ctx, &database.Config{
		URL:             a.cfg.Database.ConnectionString(),
		MaxConnections:  a.cfg.Database.MaxConnections,
		MaxConnLifetime: a.cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: a.cfg.Database.MaxConnIdleTime,
	}, a.logger)
	if err != nil {
		return nil, nil, err
	}

	scoped, release, err := db.WithScope(ctx)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return scoped, func() {
		release()
		db.Close()
	}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errIncomplete) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
