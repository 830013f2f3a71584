package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schemadoc/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/models"
	"github.com/ekaya-inc/ekaya-schemadoc/pkg/repositories"
)

// DatabaseService manages the registry of documented databases.
type DatabaseService interface {
	// EnsureDatabase returns the database registered under name, creating it
	// when absent. An existing registration with another dialect is an error.
	EnsureDatabase(ctx context.Context, name string, dialect models.Dialect) (*models.Database, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Database, error)
	List(ctx context.Context) ([]*models.Database, error)
}

type databaseService struct {
	repo   repositories.DatabaseRepository
	logger *zap.Logger
}

// NewDatabaseService creates a new database service.
func NewDatabaseService(repo repositories.DatabaseRepository, logger *zap.Logger) DatabaseService {
	return &databaseService{
		repo:   repo,
		logger: logger.Named("databases"),
	}
}

var _ DatabaseService = (*databaseService)(nil)

func (s *databaseService) EnsureDatabase(ctx context.Context, name string, dialect models.Dialect) (*models.Database, error) {
	if name == "" {
		return nil, fmt.Errorf("database name is required")
	}

	db, err := s.repo.GetByName(ctx, name)
	switch {
	case err == nil:
		return checkDialect(db, dialect)
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("failed to look up database: %w", err)
	}

	db = &models.Database{Name: name, Dialect: dialect}
	if err := s.repo.Create(ctx, db); err != nil {
		if !errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("failed to register database: %w", err)
		}
		// Registered concurrently; use the winner.
		existing, getErr := s.repo.GetByName(ctx, name)
		if getErr != nil {
			return nil, fmt.Errorf("failed to look up database: %w", getErr)
		}
		return checkDialect(existing, dialect)
	}

	s.logger.Info("Registered database",
		zap.String("database_id", db.ID.String()),
		zap.String("name", name),
		zap.String("dialect", dialect.String()))
	return db, nil
}

func (s *databaseService) Get(ctx context.Context, id uuid.UUID) (*models.Database, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *databaseService) List(ctx context.Context) ([]*models.Database, error) {
	return s.repo.List(ctx)
}

func checkDialect(db *models.Database, dialect models.Dialect) (*models.Database, error) {
	if db.Dialect != dialect {
		return nil, fmt.Errorf("database %s is registered as %s, not %s", db.Name, db.Dialect, dialect)
	}
	return db, nil
}
