package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockDatabaseRepository serves a fixed set of databases.
type mockDatabaseRepository struct {
	mu  sync.Mutex
	dbs map[uuid.UUID]*models.Database
}

func newMockDatabaseRepository(dbs ...*models.Database) *mockDatabaseRepository {
	m := &mockDatabaseRepository{dbs: make(map[uuid.UUID]*models.Database)}
	for _, db := range dbs {
		m.dbs[db.ID] = db
	}
	return m
}

func (m *mockDatabaseRepository) Create(ctx context.Context, db *models.Database) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.dbs {
		if existing.Name == db.Name {
			return apperrors.ErrConflict
		}
	}
	if db.ID == uuid.Nil {
		db.ID = uuid.New()
	}
	m.dbs[db.ID] = db
	return nil
}

func (m *mockDatabaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Database, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if db, ok := m.dbs[id]; ok {
		return db, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockDatabaseRepository) GetByName(ctx context.Context, name string) (*models.Database, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, db := range m.dbs {
		if db.Name == name {
			return db, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockDatabaseRepository) List(ctx context.Context) ([]*models.Database, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Database
	for _, db := range m.dbs {
		out = append(out, db)
	}
	return out, nil
}

type objectKey struct {
	databaseID uuid.UUID
	objectType models.ObjectType
	name       string
}

// memSchemaRepository is an in-memory SchemaRepository keyed like the real table.
type memSchemaRepository struct {
	objects  map[objectKey]*models.SchemaObject
	children map[uuid.UUID]*models.SchemaChildren

	upsertErr  map[string]error // by object name
	replaceErr map[string]error // by object name
}

func newMemSchemaRepository() *memSchemaRepository {
	return &memSchemaRepository{
		objects:    make(map[objectKey]*models.SchemaObject),
		children:   make(map[uuid.UUID]*models.SchemaChildren),
		upsertErr:  make(map[string]error),
		replaceErr: make(map[string]error),
	}
}

func (m *memSchemaRepository) UpsertObject(ctx context.Context, obj *models.SchemaObject) error {
	if err := m.upsertErr[obj.Name]; err != nil {
		return err
	}
	key := objectKey{obj.DatabaseID, obj.ObjectType, obj.Name}
	if existing, ok := m.objects[key]; ok {
		obj.ID = existing.ID
		obj.CreatedAt = existing.CreatedAt
		obj.Description = existing.Description
		obj.Language = existing.Language
	} else if obj.ID == uuid.Nil {
		obj.ID = uuid.New()
	}
	stored := *obj
	stored.Columns, stored.Indexes, stored.Relations, stored.Parameters = nil, nil, nil, nil
	m.objects[key] = &stored
	return nil
}

func (m *memSchemaRepository) ReplaceChildren(ctx context.Context, objectID uuid.UUID, children *models.SchemaChildren) error {
	for _, obj := range m.objects {
		if obj.ID == objectID {
			if err := m.replaceErr[obj.Name]; err != nil {
				return err
			}
		}
	}
	copied := *children
	m.children[objectID] = &copied
	return nil
}

func (m *memSchemaRepository) GetObject(ctx context.Context, objectID uuid.UUID) (*models.SchemaObject, error) {
	for _, obj := range m.objects {
		if obj.ID == objectID {
			return m.withChildren(obj), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memSchemaRepository) GetObjectByName(ctx context.Context, databaseID uuid.UUID, objectType models.ObjectType, name string) (*models.SchemaObject, error) {
	obj, ok := m.objects[objectKey{databaseID, objectType, name}]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return m.withChildren(obj), nil
}

func (m *memSchemaRepository) ListObjects(ctx context.Context, databaseID uuid.UUID, objectType models.ObjectType) ([]*models.SchemaObject, error) {
	var out []*models.SchemaObject
	for key, obj := range m.objects {
		if key.databaseID == databaseID && (objectType == "" || key.objectType == objectType) {
			copied := *obj
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ObjectType != out[j].ObjectType {
			return out[i].ObjectType < out[j].ObjectType
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *memSchemaRepository) withChildren(obj *models.SchemaObject) *models.SchemaObject {
	copied := *obj
	if c, ok := m.children[obj.ID]; ok {
		copied.Columns = c.Columns
		copied.Indexes = c.Indexes
		copied.Relations = c.Relations
		copied.Parameters = c.Parameters
	}
	return &copied
}

// fakeCatalogReader serves canned descriptors keyed by object name.
type fakeCatalogReader struct {
	tables     []datasource.ObjectDescriptor
	views      []datasource.ObjectDescriptor
	functions  []datasource.ObjectDescriptor
	procedures []datasource.ObjectDescriptor
	triggers   []datasource.TriggerDescriptor

	columns     map[string][]datasource.ColumnDescriptor
	indexes     map[string][]datasource.IndexDescriptor
	foreignKeys map[string][]datasource.ForeignKeyDescriptor
	params      map[string][]datasource.ParameterDescriptor

	listErr    map[models.ObjectType]error
	columnsErr map[string]error
	panicOn    map[string]bool
}

func newFakeCatalogReader() *fakeCatalogReader {
	return &fakeCatalogReader{
		columns:     make(map[string][]datasource.ColumnDescriptor),
		indexes:     make(map[string][]datasource.IndexDescriptor),
		foreignKeys: make(map[string][]datasource.ForeignKeyDescriptor),
		params:      make(map[string][]datasource.ParameterDescriptor),
		listErr:     make(map[models.ObjectType]error),
		columnsErr:  make(map[string]error),
		panicOn:     make(map[string]bool),
	}
}

var _ datasource.CatalogReader = (*fakeCatalogReader)(nil)

func (f *fakeCatalogReader) ListTables(ctx context.Context) ([]datasource.ObjectDescriptor, error) {
	return f.tables, f.listErr[models.ObjectTypeTable]
}

func (f *fakeCatalogReader) ListColumns(ctx context.Context, table datasource.ObjectRef) ([]datasource.ColumnDescriptor, error) {
	if f.panicOn[table.Name] {
		panic(fmt.Sprintf("unexpected catalog row for %s", table.Name))
	}
	if err := f.columnsErr[table.Name]; err != nil {
		return nil, err
	}
	return f.columns[table.Name], nil
}

func (f *fakeCatalogReader) ListIndexes(ctx context.Context, table datasource.ObjectRef) ([]datasource.IndexDescriptor, error) {
	return f.indexes[table.Name], nil
}

func (f *fakeCatalogReader) ListForeignKeys(ctx context.Context, table datasource.ObjectRef) ([]datasource.ForeignKeyDescriptor, error) {
	return f.foreignKeys[table.Name], nil
}

func (f *fakeCatalogReader) ListViews(ctx context.Context) ([]datasource.ObjectDescriptor, error) {
	return f.views, f.listErr[models.ObjectTypeView]
}

func (f *fakeCatalogReader) ListViewColumns(ctx context.Context, view datasource.ObjectRef) ([]datasource.ColumnDescriptor, error) {
	return f.ListColumns(ctx, view)
}

func (f *fakeCatalogReader) ListFunctions(ctx context.Context) ([]datasource.ObjectDescriptor, error) {
	return f.functions, f.listErr[models.ObjectTypeFunction]
}

func (f *fakeCatalogReader) ListFunctionParameters(ctx context.Context, fn datasource.ObjectRef) ([]datasource.ParameterDescriptor, error) {
	return f.params[fn.Name], nil
}

func (f *fakeCatalogReader) ListProcedures(ctx context.Context) ([]datasource.ObjectDescriptor, error) {
	return f.procedures, f.listErr[models.ObjectTypeProcedure]
}

func (f *fakeCatalogReader) ListProcedureParameters(ctx context.Context, proc datasource.ObjectRef) ([]datasource.ParameterDescriptor, error) {
	return f.params[proc.Name], nil
}

func (f *fakeCatalogReader) ListTriggers(ctx context.Context) ([]datasource.TriggerDescriptor, error) {
	return f.triggers, f.listErr[models.ObjectTypeTrigger]
}

// fakeReaderFactory hands out one reader for every connection.
type fakeReaderFactory struct {
	reader datasource.CatalogReader
	err    error
}

func (f *fakeReaderFactory) NewCatalogReader(conn datasource.Connection) (datasource.CatalogReader, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.reader, nil
}

// mockOverlayRepository records applied overlays and their audit entries.
type mockOverlayRepository struct {
	applyErr error
	applied  []appliedOverlay
}

type appliedOverlay struct {
	objectID uuid.UUID
	field    models.OverlayField
	value    *string
	entry    models.AuditLogEntry
}

func (m *mockOverlayRepository) ApplyOverlay(ctx context.Context, objectID uuid.UUID, field models.OverlayField, value *string, entry *models.AuditLogEntry) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	m.applied = append(m.applied, appliedOverlay{objectID: objectID, field: field, value: value, entry: *entry})
	return nil
}

// mockAuditRepository returns canned entries and captures the query.
type mockAuditRepository struct {
	entries   []*models.AuditLogEntry
	gotPrefix string
	gotLimit  int
}

func (m *mockAuditRepository) ListByObject(ctx context.Context, objectID uuid.UUID, fieldPrefix string, limit int) ([]*models.AuditLogEntry, error) {
	m.gotPrefix, m.gotLimit = fieldPrefix, limit
	return m.entries, nil
}
