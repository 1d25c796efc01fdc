/*
	Database user authentication operations
*/
package database

import (
	"context"
	"errors"

	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgx"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/noisersup/filesmanager/models"
)

/*
	Registers new user
	!!! remember to provide the digest as PasswordHash, never the plaintext !!!
*/
func (db *Database) NewUser(ctx context.Context, u *models.User) error {
	sqlFormula := "INSERT INTO users (id, email, password) VALUES ($1,$2,$3);"
	err := crdbpgx.ExecuteTx(ctx, db.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, sqlFormula, u.Id, u.Email, u.PasswordHash)
		return err
	})
	if isUniqueViolation(err) {
		return models.ErrUserExists
	}
	return err
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (db *Database) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return db.getUser(ctx, "SELECT id, email, password FROM users WHERE id=$1;", id)
}

func (db *Database) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.getUser(ctx, "SELECT id, email, password FROM users WHERE email=$1;", email)
}

func (db *Database) getUser(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	u := models.User{}
	err := db.pool.QueryRow(ctx, query, arg).Scan(&u.Id, &u.Email, &u.PasswordHash)
	if err == pgx.ErrNoRows {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
