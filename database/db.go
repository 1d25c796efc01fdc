package database

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/noisersup/filesmanager/database/memory"
	"github.com/noisersup/filesmanager/database/mongodb"
	"github.com/noisersup/filesmanager/logger"
	"github.com/noisersup/filesmanager/models"
)

// Database is the PostgreSQL/CockroachDB metadata store
type Database struct {
	pool *pgxpool.Pool // database connection
	l    *logger.Logger
}

// Open connects to the metadata store selected by driver
func Open(ctx context.Context, driver, uri, name string, l *logger.Logger) (models.Database, error) {
	switch driver {
	case "memory":
		l.Warn("using in-memory metadata store, nothing will survive a restart")
		return memory.New(), nil
	case "mongo":
		db, err := mongodb.Connect(ctx, uri, name)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := ConnectDB(ctx, uri, name, l)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", driver)
}

// Connects to database with provided data, migrates the schema
// and returns database object
func ConnectDB(ctx context.Context, uri, database string, l *logger.Logger) (*Database, error) {
	config, err := pgxpool.ParseConfig(os.ExpandEnv(uri))
	if err != nil {
		return nil, err
	}

	config.ConnConfig.Database = database

	l.LogV("Migrating database %s...", database)
	sqlDB := stdlib.OpenDB(*config.ConnConfig)
	err = migrate(sqlDB)
	sqlDB.Close()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	return &Database{pool: pool, l: l}, nil
}

// Close database connection
// ( pool.Close alias )
func (db *Database) Close() error {
	db.l.Log("Closing database...")
	db.pool.Close()
	db.l.Log("All database connections closed.")
	return nil
}

func (db *Database) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

func (db *Database) count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := db.pool.QueryRow(ctx, "SELECT count(*) FROM "+table+";").Scan(&n)
	return n, err
}

func (db *Database) CountUsers(ctx context.Context) (int64, error) {
	return db.count(ctx, "users")
}

func (db *Database) CountFiles(ctx context.Context) (int64, error) {
	return db.count(ctx, "files")
}
