package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/database"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
)

// DatabaseRepository provides data access for engine_databases.
type DatabaseRepository interface {
	Create(ctx context.Context, db *models.Database) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Database, error)
	GetByName(ctx context.Context, name string) (*models.Database, error)
	List(ctx context.Context) ([]*models.Database, error)
}

type databaseRepository struct{}

// NewDatabaseRepository creates a new DatabaseRepository.
func NewDatabaseRepository() DatabaseRepository {
	return &databaseRepository{}
}

var _ DatabaseRepository = (*databaseRepository)(nil)

// Create registers a database. Returns apperrors.ErrConflict when the name is taken.
func (r *databaseRepository) Create(ctx context.Context, db *models.Database) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no store scope in context")
	}

	now := time.Now()
	if db.ID == uuid.Nil {
		db.ID = uuid.New()
	}
	db.CreatedAt = now
	db.UpdatedAt = now

	query := `
		INSERT INTO engine_databases (id, name, dialect, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := scope.Conn.Exec(ctx, query, db.ID, db.Name, string(db.Dialect), db.CreatedAt, db.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create database: %w", err)
	}

	return nil
}

func (r *databaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Database, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *databaseRepository) GetByName(ctx context.Context, name string) (*models.Database, error) {
	return r.getOne(ctx, "name = $1", name)
}

func (r *databaseRepository) getOne(ctx context.Context, where string, arg any) (*models.Database, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no store scope in context")
	}

	query := `
		SELECT id, name, dialect, created_at, updated_at
		FROM engine_databases
		WHERE ` + where

	db, err := scanDatabase(scope.Conn.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("database %v: %w", arg, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	return db, nil
}

func (r *databaseRepository) List(ctx context.Context) ([]*models.Database, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no store scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, name, dialect, created_at, updated_at
		FROM engine_databases
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	defer rows.Close()

	var dbs []*models.Database
	for rows.Next() {
		db, err := scanDatabase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan database: %w", err)
		}
		dbs = append(dbs, db)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating databases: %w", err)
	}
	return dbs, nil
}

func scanDatabase(row pgx.Row) (*models.Database, error) {
	var db models.Database
	var dialect string
	if err := row.Scan(&db.ID, &db.Name, &dialect, &db.CreatedAt, &db.UpdatedAt); err != nil {
		return nil, err
	}
	db.Dialect = models.Dialect(dialect)
	return &db, nil
}
