// Package postgresdb provides a PostgreSQL-based implementation of the
// storage interface for persisting URL records and user accounts.
// Schema migrations run on startup via goose.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

const uniqueViolationCode = "23505"

// PostgresDB is a PostgreSQL-backed implementation of the storage interface.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

// New establishes a connection to the PostgreSQL database,
// runs schema migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
) (*PostgresDB, error) {
	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			)
	}

	if err := goose.Up(result.database, migrationsDir); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.Up()` calling: %w",
				err,
			)
	}

	return result, nil
}

// Ping checks database connectivity within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(pingCtx)
}

// Close closes the underlying connection pool.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

// FindURLByShort returns the record stored under the short code.
func (db *PostgresDB) FindURLByShort(ctx context.Context, short string) (*models.URLRecord, bool, error) {
	record := models.URLRecord{}
	err := db.database.QueryRowContext(
		ctx,
		`SELECT short, long_url, owner_id FROM urls WHERE short = $1`,
		short,
	).Scan(&record.Short, &record.LongURL, &record.OwnerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &record, true, nil
}

// IsShortExists reports whether the short code is already taken.
func (db *PostgresDB) IsShortExists(ctx context.Context, short string) (bool, error) {
	var exists bool
	err := db.database.QueryRowContext(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM urls WHERE short = $1)`,
		short,
	).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

// SaveURL inserts the record or overwrites the one stored under the same short code.
func (db *PostgresDB) SaveURL(ctx context.Context, record *models.URLRecord) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			INSERT INTO urls (short, long_url, owner_id)
				VALUES ($1, $2, $3)
				ON CONFLICT (short) DO UPDATE
				SET long_url = EXCLUDED.long_url
		`,
		record.Short,
		record.LongURL,
		record.OwnerID,
	)

	return err
}

// DeleteURL removes the record stored under the short code.
// Deleting an unknown code returns models.ErrNotFound.
func (db *PostgresDB) DeleteURL(ctx context.Context, short string) error {
	result, err := db.database.ExecContext(ctx, `DELETE FROM urls WHERE short = $1`, short)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}

	return nil
}

// GetURLsByOwner returns all records owned by the given user, keyed by short code.
func (db *PostgresDB) GetURLsByOwner(ctx context.Context, ownerID string) (map[string]*models.URLRecord, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`SELECT short, long_url, owner_id FROM urls WHERE owner_id = $1`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string]*models.URLRecord{}
	for rows.Next() {
		record := models.URLRecord{}
		if err := rows.Scan(&record.Short, &record.LongURL, &record.OwnerID); err != nil {
			return nil, err
		}
		result[record.Short] = &record
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// GetNumberOfShortenedURLs returns the total number of stored URL records.
func (db *PostgresDB) GetNumberOfShortenedURLs(ctx context.Context) (int64, error) {
	var count int64
	err := db.database.QueryRowContext(ctx, `SELECT count(*) FROM urls`).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// CreateUser stores a new user. The unique index on email turns concurrent
// registrations with the same address into models.ErrEmailTaken.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User) error {
	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3)`,
		usr.ID,
		usr.Email,
		usr.PasswordHash,
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return models.ErrEmailTaken
	}

	return err
}

// GetUserByID returns the user stored under the id.
func (db *PostgresDB) GetUserByID(ctx context.Context, userID string) (*user.User, bool, error) {
	usr := user.User{}
	err := db.database.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash FROM users WHERE id = $1`,
		userID,
	).Scan(&usr.ID, &usr.Email, &usr.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &usr, true, nil
}

// FindUserByEmail returns the user registered with the given email.
func (db *PostgresDB) FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error) {
	usr := user.User{}
	err := db.database.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash FROM users WHERE email = $1`,
		email,
	).Scan(&usr.ID, &usr.Email, &usr.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &usr, true, nil
}

// GetNumberOfUsers returns the total number of registered users.
func (db *PostgresDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	var count int64
	err := db.database.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}
