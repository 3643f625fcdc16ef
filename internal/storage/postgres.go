package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"

	"moodwave/pkg/logger"
	"moodwave/pkg/model"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

var (
	ErrAnalysisNotFound = errors.New("analysis not found")
	// ErrInvalidData marks values the database rejects outright; retrying
	// the same row can never succeed
	ErrInvalidData = errors.New("invalid analysis data")
)

// isDataException reports SQLSTATE class 22 errors
func isDataException(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "22")
}

type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage connects to databaseURL and applies pending migrations
func NewPostgresStorage(ctx context.Context, databaseURL string) (*PostgresStorage, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established")

	if err := runMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

func migrationsURL() (string, error) {
	migrationsPath, err := filepath.Abs("migrations")
	if err != nil {
		return "", fmt.Errorf("failed to get migrations path: %w", err)
	}

	if runtime.GOOS == "windows" {
		u := &url.URL{
			Scheme: "file",
			Path:   filepath.ToSlash(migrationsPath),
		}
		return u.String(), nil
	}
	return fmt.Sprintf("file://%s", migrationsPath), nil
}

// withMigrator runs fn against a migrate instance bound to databaseURL
func withMigrator(databaseURL string, fn func(m *migrate.Migrate) error) error {
	sourceURL, err := migrationsURL()
	if err != nil {
		return err
	}

	connConfig, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}

	db := stdlib.OpenDB(*connConfig)
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	logger.Info("Running migrations", zap.String("path", sourceURL))

	return fn(m)
}

func runMigrations(databaseURL string) error {
	return withMigrator(databaseURL, func(m *migrate.Migrate) error {
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("No new migrations to apply")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("Migrations applied successfully")
		return nil
	})
}

// ResetMigrations drops all tables and re-runs migrations (for development)
func ResetMigrations(databaseURL string) error {
	logger.Warn("Resetting database - this will drop all data!")

	return withMigrator(databaseURL, func(m *migrate.Migrate) error {
		if err := m.Drop(); err != nil {
			return fmt.Errorf("failed to drop database: %w", err)
		}

		logger.Info("Database dropped successfully")

		if err := m.Up(); err != nil {
			return fmt.Errorf("failed to run migrations after reset: %w", err)
		}

		logger.Info("Database reset and migrations applied successfully")
		return nil
	})
}

// Close closes the database connection pool
func (s *PostgresStorage) Close() {
	s.pool.Close()
}

// CreateAnalysis inserts an analysis. Returns false when a row with the
// same ID already exists, which happens on redelivery.
func (s *PostgresStorage) CreateAnalysis(ctx context.Context, a *model.Analysis) (bool, error) {
	query := `
		INSERT INTO analyses (
			id, session_id, file_name, file_size, mime_type, status,
			emotion, confidence, probabilities, error_text, requested_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		ON CONFLICT (id) DO NOTHING`

	result, err := s.pool.Exec(ctx, query,
		a.ID,
		a.SessionID,
		a.FileName,
		a.FileSize,
		a.MimeType,
		a.Status,
		a.Emotion,
		a.Confidence,
		a.Probabilities,
		a.ErrorText,
		a.RequestedAt,
		a.CompletedAt,
	)
	if isDataException(err) {
		return false, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if err != nil {
		return false, fmt.Errorf("failed to create analysis: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

const analysisColumns = `id, session_id, file_name, file_size, mime_type, status,
		       emotion, confidence, probabilities, error_text, requested_at, completed_at`

func scanAnalysis(row pgx.Row) (*model.Analysis, error) {
	var a model.Analysis
	err := row.Scan(
		&a.ID,
		&a.SessionID,
		&a.FileName,
		&a.FileSize,
		&a.MimeType,
		&a.Status,
		&a.Emotion,
		&a.Confidence,
		&a.Probabilities,
		&a.ErrorText,
		&a.RequestedAt,
		&a.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAnalysisByID retrieves an analysis by its ID
func (s *PostgresStorage) GetAnalysisByID(ctx context.Context, id string) (*model.Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1`

	a, err := scanAnalysis(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnalysisNotFound
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	return a, nil
}
