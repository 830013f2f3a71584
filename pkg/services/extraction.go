package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/logging"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/metrics"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/repositories"
)

// ExtractionService reflects a source catalog into the SchemaStore.
type ExtractionService interface {
	// ReflectAndPersist reads every object category in the fixed order
	// tables, views, functions, procedures, triggers and upserts the results
	// for databaseID. Category and object failures are isolated and reported
	// in the result; the error is non-nil only when the run cannot start.
	ReflectAndPersist(ctx context.Context, conn datasource.Connection, databaseID uuid.UUID) (*models.ExtractionResult, error)
}

type extractionService struct {
	databaseRepo repositories.DatabaseRepository
	schemaRepo   repositories.SchemaRepository
	readers      datasource.ReaderFactory
	metrics      *metrics.Recorder
	logger       *zap.Logger
}

// NewExtractionService creates a new extraction service with dependencies.
// recorder may be nil.
func NewExtractionService(
	databaseRepo repositories.DatabaseRepository,
	schemaRepo repositories.SchemaRepository,
	readers datasource.ReaderFactory,
	recorder *metrics.Recorder,
	logger *zap.Logger,
) ExtractionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &extractionService{
		databaseRepo: databaseRepo,
		schemaRepo:   schemaRepo,
		readers:      readers,
		metrics:      recorder,
		logger:       logger.Named("extraction"),
	}
}

var _ ExtractionService = (*extractionService)(nil)

// run carries the state of one ReflectAndPersist call.
type run struct {
	dialect    models.Dialect
	databaseID uuid.UUID
	reader     datasource.CatalogReader
	logger     *zap.Logger
}

func (s *extractionService) ReflectAndPersist(ctx context.Context, conn datasource.Connection, databaseID uuid.UUID) (*models.ExtractionResult, error) {
	db, err := s.databaseRepo.GetByID(ctx, databaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load database: %w", err)
	}
	if db.Dialect != conn.Dialect {
		return nil, fmt.Errorf("database %s is registered as %s, connection is %s", db.Name, db.Dialect, conn.Dialect)
	}

	reader, err := s.readers.NewCatalogReader(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog reader: %w", err)
	}

	r := &run{
		dialect:    conn.Dialect,
		databaseID: databaseID,
		reader:     reader,
		logger: s.logger.With(
			zap.String("database_id", databaseID.String()),
			zap.String("dialect", conn.Dialect.String())),
	}

	result := &models.ExtractionResult{
		DatabaseID: databaseID.String(),
		Dialect:    conn.Dialect,
		StartedAt:  time.Now(),
	}

	r.logger.Info("Starting extraction", zap.String("database", db.Name))

	for _, category := range models.ExtractionOrder {
		result.Categories = append(result.Categories, s.extractCategory(ctx, r, category))
	}

	result.FinishedAt = time.Now()
	succeeded, failed := result.Totals()

	status := metrics.StatusSuccess
	if !result.OK() {
		status = metrics.StatusPartial
		if succeeded == 0 {
			status = metrics.StatusFailed
		}
	}
	s.metrics.ObserveRun(conn.Dialect.String(), status, result.FinishedAt.Sub(result.StartedAt))

	r.logger.Info("Extraction completed",
		zap.String("status", status),
		zap.Int("objects_succeeded", succeeded),
		zap.Int("objects_failed", failed),
		zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)))

	return result, nil
}

// extractCategory lists one category and persists each object. A listing
// failure (or panic) marks the category and returns; an object failure is
// recorded and the next object runs.
func (s *extractionService) extractCategory(ctx context.Context, r *run, category models.ObjectType) (cr models.CategoryResult) {
	cr.Category = category
	logger := r.logger.With(zap.String("category", cr.Label()))

	defer func() {
		if p := recover(); p != nil {
			cr.Error = fmt.Sprintf("panic: %v", p)
			s.metrics.CategoryFailed(r.dialect.String(), cr.Label())
			logger.Error("Category extraction panicked", zap.Any("panic", p), zap.Stack("stack"))
		}
	}()

	units, err := s.listCategory(ctx, r, category)
	if err != nil {
		cr.Error = logging.SanitizeError(err)
		s.metrics.CategoryFailed(r.dialect.String(), cr.Label())
		logger.Error("Failed to list category", zap.String("error", cr.Error))
		return cr
	}
	cr.Listed = len(units)

	for _, u := range units {
		if err := s.persistUnit(ctx, r, u); err != nil {
			cr.Failed++
			reason := logging.SanitizeError(err)
			cr.Failures = append(cr.Failures, models.ObjectFailure{Object: u.object.Name, Reason: reason})
			s.metrics.ObjectPersisted(r.dialect.String(), cr.Label(), false)
			logger.Warn("Failed to persist object",
				zap.String("object", u.object.Name),
				zap.String("error", reason))
			continue
		}
		cr.Succeeded++
		s.metrics.ObjectPersisted(r.dialect.String(), cr.Label(), true)
	}

	logger.Info("Category extracted",
		zap.Int("listed", cr.Listed),
		zap.Int("succeeded", cr.Succeeded),
		zap.Int("failed", cr.Failed))
	return cr
}

// unit is one object awaiting persistence. children is nil for objects that
// own no child rows (triggers); fetching children is deferred so a failing
// child query only affects its own object.
type unit struct {
	object   *models.SchemaObject
	children func(ctx context.Context) (*models.SchemaChildren, error)
}

func (s *extractionService) listCategory(ctx context.Context, r *run, category models.ObjectType) ([]unit, error) {
	switch category {
	case models.ObjectTypeTable:
		return listObjects(ctx, r, category, r.reader.ListTables, r.tableChildren)
	case models.ObjectTypeView:
		return listObjects(ctx, r, category, r.reader.ListViews, func(ctx context.Context, ref datasource.ObjectRef) (*models.SchemaChildren, error) {
			cols, err := r.reader.ListViewColumns(ctx, ref)
			if err != nil {
				return nil, fmt.Errorf("list view columns: %w", err)
			}
			return &models.SchemaChildren{Columns: normalizeColumns(r.dialect, cols, true)}, nil
		})
	case models.ObjectTypeFunction:
		return listObjects(ctx, r, category, r.reader.ListFunctions, r.parameterChildren(r.reader.ListFunctionParameters))
	case models.ObjectTypeProcedure:
		return listObjects(ctx, r, category, r.reader.ListProcedures, r.parameterChildren(r.reader.ListProcedureParameters))
	case models.ObjectTypeTrigger:
		triggers, err := r.reader.ListTriggers(ctx)
		if err != nil {
			return nil, err
		}
		objects := normalizeTriggers(r.dialect, r.databaseID, triggers)
		units := make([]unit, 0, len(objects))
		for _, obj := range objects {
			units = append(units, unit{object: obj})
		}
		return units, nil
	}
	return nil, fmt.Errorf("unknown category %q", category)
}

type childLoader func(ctx context.Context, ref datasource.ObjectRef) (*models.SchemaChildren, error)

func listObjects(
	ctx context.Context,
	r *run,
	category models.ObjectType,
	list func(context.Context) ([]datasource.ObjectDescriptor, error),
	load childLoader,
) ([]unit, error) {
	descriptors, err := list(ctx)
	if err != nil {
		return nil, err
	}

	units := make([]unit, 0, len(descriptors))
	for _, d := range descriptors {
		ref := d.Ref
		units = append(units, unit{
			object: normalizeObject(r.dialect, r.databaseID, category, d),
			children: func(ctx context.Context) (*models.SchemaChildren, error) {
				return load(ctx, ref)
			},
		})
	}
	return units, nil
}

func (r *run) tableChildren(ctx context.Context, ref datasource.ObjectRef) (*models.SchemaChildren, error) {
	cols, err := r.reader.ListColumns(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	indexes, err := r.reader.ListIndexes(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	fks, err := r.reader.ListForeignKeys(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("list foreign keys: %w", err)
	}
	return &models.SchemaChildren{
		Columns:   normalizeColumns(r.dialect, cols, false),
		Indexes:   normalizeIndexes(indexes),
		Relations: normalizeRelations(r.dialect, fks),
	}, nil
}

func (r *run) parameterChildren(list func(context.Context, datasource.ObjectRef) ([]datasource.ParameterDescriptor, error)) childLoader {
	return func(ctx context.Context, ref datasource.ObjectRef) (*models.SchemaChildren, error) {
		params, err := list(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("list parameters: %w", err)
		}
		return &models.SchemaChildren{Parameters: normalizeParameters(r.dialect, params)}, nil
	}
}

// persistUnit upserts the parent, then fetches and replaces its children.
// Panics are converted to errors so one bad object cannot end the category.
func (s *extractionService) persistUnit(ctx context.Context, r *run, u unit) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
			r.logger.Error("Object extraction panicked",
				zap.String("object", u.object.Name),
				zap.Any("panic", p),
				zap.Stack("stack"))
		}
	}()

	if err := s.schemaRepo.UpsertObject(ctx, u.object); err != nil {
		return err
	}
	if u.children == nil {
		return nil
	}

	children, err := u.children(ctx)
	if err != nil {
		return err
	}
	return s.schemaRepo.ReplaceChildren(ctx, u.object.ID, children)
}
