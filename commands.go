package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/database"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/logging"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/metrics"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/repositories"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/services"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SchemaStore migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Connect through the retrying pool first so a store that is still
			// starting up does not fail the migration outright.
			_, cleanup, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			version, err := database.MigrateURL(a.cfg.Database.ConnectionString(), a.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema store at version %d\n", version)
			return nil
		},
	}
}

type extractOptions struct {
	dialect         string
	dsn             string
	sourceConfig    string
	databaseID      string
	databaseName    string
	lock            bool
	metricsTextfile string
}

func newExtractCmd(a *app) *cobra.Command {
	var opts extractOptions

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Reflect a source database catalog into the SchemaStore",
		Long: `Reads tables, views, functions, procedures and triggers from the source and
upserts them for the target database. Failures in one category or object do not
stop the others; the YAML summary lists them and the exit code is 2.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("lock") {
				opts.lock = a.cfg.Extraction.Lock
			}
			if opts.metricsTextfile == "" {
				opts.metricsTextfile = a.cfg.Extraction.MetricsTextfile
			}
			return a.runExtract(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.dialect, "dialect", "", "Source dialect: sqlserver, mysql or postgres")
	cmd.Flags().StringVar(&opts.dsn, "dsn", "", "Source connection string (or SCHEMADOC_SOURCE_DSN)")
	cmd.Flags().StringVar(&opts.sourceConfig, "source-config", "", "YAML file with source connection keys (host, port, user, database, ...)")
	cmd.Flags().StringVar(&opts.databaseID, "database-id", "", "Registered database id to extract into")
	cmd.Flags().StringVar(&opts.databaseName, "database-name", "", "Database name; registered on first use")
	cmd.Flags().BoolVar(&opts.lock, "lock", true, "Hold an advisory lock so concurrent runs for the same database fail fast")
	cmd.Flags().StringVar(&opts.metricsTextfile, "metrics-textfile", "", "Write run metrics in Prometheus text format to this path")
	cmd.MarkFlagsMutuallyExclusive("database-id", "database-name")
	return cmd
}

func (a *app) runExtract(ctx context.Context, out io.Writer, opts extractOptions) error {
	dialect, err := models.ParseDialect(firstNonEmpty(opts.dialect, a.cfg.Source.Dialect))
	if err != nil {
		return err
	}
	if !datasource.IsRegistered(dialect) {
		return fmt.Errorf("%w: %q is not compiled into this binary", apperrors.ErrUnsupportedDialect, dialect)
	}
	srcConfig, err := sourceConfig(opts.sourceConfig, firstNonEmpty(opts.dsn, a.cfg.Source.DSN))
	if err != nil {
		return err
	}

	ctx, cleanup, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	databaseRepo := repositories.NewDatabaseRepository()
	db, err := resolveDatabase(ctx, services.NewDatabaseService(databaseRepo, a.logger), opts, dialect)
	if err != nil {
		return err
	}

	if opts.lock {
		unlock, err := database.TryExtractionLock(ctx, db.ID.String())
		if err != nil {
			return err
		}
		defer unlock()
	}

	source, err := datasource.Open(ctx, dialect, srcConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to source: %s", logging.SanitizeError(err))
	}
	defer func() {
		if err := source.Close(); err != nil {
			a.logger.Warn("Failed to close source connection", zap.String("error", logging.SanitizeError(err)))
		}
	}()

	recorder := metrics.NewRecorder(prometheus.NewRegistry())
	extraction := services.NewExtractionService(
		databaseRepo,
		repositories.NewSchemaRepository(),
		datasource.NewReaderFactory(a.logger),
		recorder,
		a.logger,
	)

	result, err := extraction.ReflectAndPersist(ctx, datasource.Connection{Dialect: dialect, Querier: source}, db.ID)
	if err != nil {
		return err
	}

	if err := writeYAML(out, result); err != nil {
		return err
	}
	if opts.metricsTextfile != "" {
		if err := recorder.WriteTextfile(opts.metricsTextfile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	if !result.OK() {
		return errIncomplete
	}
	return nil
}

func resolveDatabase(ctx context.Context, svc services.DatabaseService, opts extractOptions, dialect models.Dialect) (*models.Database, error) {
	switch {
	case opts.databaseID != "":
		id, err := uuid.Parse(opts.databaseID)
		if err != nil {
			return nil, fmt.Errorf("invalid --database-id: %w", err)
		}
		return svc.Get(ctx, id)
	case opts.databaseName != "":
		return svc.EnsureDatabase(ctx, opts.databaseName, dialect)
	}
	return nil, fmt.Errorf("one of --database-id or --database-name is required")
}

// sourceConfig builds the connector config map from an optional YAML file and
// an optional DSN. The DSN wins over discrete keys from the file.
func sourceConfig(path, dsn string) (map[string]any, error) {
	cfg := make(map[string]any)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read source config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse source config: %w", err)
		}
		if cfg == nil {
			cfg = make(map[string]any)
		}
	}
	if dsn != "" {
		cfg[datasource.DSNKey] = dsn
	}
	if len(cfg) == 0 {
		return nil, fmt.Errorf("one of --dsn or --source-config is required")
	}
	return cfg, nil
}

func newObjectsCmd(a *app) *cobra.Command {
	var (
		databaseName string
		objectType   string
	)

	cmd := &cobra.Command{
		Use:   "objects",
		Short: "List the objects stored for a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := models.ObjectType(strings.ToLower(objectType))
			if t != "" && !models.IsValidObjectType(t) {
				return fmt.Errorf("unknown object type %q", objectType)
			}

			ctx, cleanup, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			db, err := repositories.NewDatabaseRepository().GetByName(ctx, databaseName)
			if err != nil {
				return fmt.Errorf("database %q: %w", databaseName, err)
			}
			objects, err := repositories.NewSchemaRepository().ListObjects(ctx, db.ID, t)
			if err != nil {
				return err
			}

			listing := make([]objectListing, 0, len(objects))
			for _, obj := range objects {
				listing = append(listing, objectListing{ID: obj.ID, Type: obj.ObjectType, Name: obj.Name, Description: obj.Description})
			}
			return writeYAML(cmd.OutOrStdout(), listing)
		},
	}
	cmd.Flags().StringVar(&databaseName, "database-name", "", "Registered database name")
	cmd.Flags().StringVar(&objectType, "type", "", "Only list one type: table, view, function, procedure or trigger")
	_ = cmd.MarkFlagRequired("database-name")
	return cmd
}

type objectListing struct {
	ID          uuid.UUID         `yaml:"id"`
	Type        models.ObjectType `yaml:"type"`
	Name        string            `yaml:"name"`
	Description *string           `yaml:"description,omitempty"`
}

func newShowCmd(a *app) *cobra.Command {
	var objectID string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print one object with its columns, indexes, relations and parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(objectID)
			if err != nil {
				return fmt.Errorf("invalid --object: %w", err)
			}

			ctx, cleanup, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			obj, err := repositories.NewSchemaRepository().GetObject(ctx, id)
			if err != nil {
				return fmt.Errorf("object %s: %w", id, err)
			}
			return writeYAML(cmd.OutOrStdout(), obj)
		},
	}
	cmd.Flags().StringVar(&objectID, "object", "", "Object id")
	_ = cmd.MarkFlagRequired("object")
	return cmd
}

func newAnnotateCmd(a *app) *cobra.Command {
	var (
		objectID string
		actorID  string
		sets     []string
		clears   []string
	)

	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Edit overlay fields of an object; every change is audited",
		Example: `  schemadoc annotate --object <id> --set description="Customer orders"
  schemadoc annotate --object <id> --set status_permitted_values="O,C" --clear total_release_tag`,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(objectID)
			if err != nil {
				return fmt.Errorf("invalid --object: %w", err)
			}
			actor, err := parseActor(actorID)
			if err != nil {
				return err
			}
			edit, err := buildEdit(sets, clears)
			if err != nil {
				return err
			}

			ctx, cleanup, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			schemaRepo := repositories.NewSchemaRepository()
			obj, err := schemaRepo.GetObject(ctx, id)
			if err != nil {
				return fmt.Errorf("object %s: %w", id, err)
			}

			mutations := services.NewMutationService(
				schemaRepo,
				repositories.NewOverlayRepository(),
				repositories.NewAuditRepository(),
				nil,
				a.logger,
			)
			changed, err := mutations.EditObject(ctx, actor, obj.DatabaseID, id, edit)
			fmt.Fprintf(cmd.OutOrStdout(), "%d field(s) changed\n", changed)
			return err
		},
	}
	cmd.Flags().StringVar(&objectID, "object", "", "Object id")
	cmd.Flags().StringVar(&actorID, "actor", "", "User id recorded in the audit log (optional)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field_id=value to set (repeatable)")
	cmd.Flags().StringArrayVar(&clears, "clear", nil, "field_id to clear (repeatable)")
	_ = cmd.MarkFlagRequired("object")
	return cmd
}

func parseActor(actorID string) (*uuid.UUID, error) {
	if actorID == "" {
		return nil, nil
	}
	id, err := uuid.Parse(actorID)
	if err != nil {
		return nil, fmt.Errorf("invalid --actor: %w", err)
	}
	return &id, nil
}

// buildEdit turns --set field=value and --clear field flags into an ObjectEdit.
func buildEdit(sets, clears []string) (services.ObjectEdit, error) {
	edit := services.ObjectEdit{Fields: make(map[string]*string, len(sets)+len(clears))}
	for _, s := range sets {
		field, value, ok := strings.Cut(s, "=")
		if !ok || field == "" {
			return edit, fmt.Errorf("invalid --set %q: expected field_id=value", s)
		}
		edit.Fields[field] = &value
	}
	for _, field := range clears {
		if _, dup := edit.Fields[field]; dup {
			return edit, fmt.Errorf("field %q is both set and cleared", field)
		}
		edit.Fields[field] = nil
	}
	if len(edit.Fields) == 0 {
		return edit, fmt.Errorf("nothing to change: pass --set or --clear")
	}
	return edit, nil
}

func newAuditCmd(a *app) *cobra.Command {
	var (
		objectID string
		prefix   string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the change history of an object, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(objectID)
			if err != nil {
				return fmt.Errorf("invalid --object: %w", err)
			}

			ctx, cleanup, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			mutations := services.NewMutationService(
				repositories.NewSchemaRepository(),
				repositories.NewOverlayRepository(),
				repositories.NewAuditRepository(),
				nil,
				a.logger,
			)
			entries, err := mutations.ListAuditLog(ctx, id, prefix, limit)
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().StringVar(&objectID, "object", "", "Object id")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only fields whose id starts with this (e.g. a column name)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries; 0 for all")
	_ = cmd.MarkFlagRequired("object")
	return cmd
}

func newDialectsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dialects",
		Short: "List supported source dialects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeYAML(cmd.OutOrStdout(), datasource.RegisteredDialects())
		},
	}
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return enc.Close()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
