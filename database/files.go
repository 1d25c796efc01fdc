package database

import (
	"context"
	"errors"

	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/noisersup/filesmanager/models"
)

const fileColumns = "id, user_id, name, type, parent_id, is_public, local_path"

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(row scanner) (*models.File, error) {
	f := models.File{}
	var parent uuid.NullUUID
	var fileType string
	var localPath *string
	if err := row.Scan(&f.Id, &f.UserId, &f.Name, &fileType, &parent, &f.IsPublic, &localPath); err != nil {
		return nil, err
	}
	f.Type = models.FileType(fileType)
	if parent.Valid {
		f.ParentId = models.InFolder(parent.UUID)
	}
	if localPath != nil {
		f.LocalPath = *localPath
	}
	return &f, nil
}

func parentParam(p models.ParentRef) uuid.NullUUID {
	id, ok := p.Folder()
	return uuid.NullUUID{UUID: id, Valid: ok}
}

// Adds file entry to database
func (db *Database) NewFile(ctx context.Context, f *models.File) error {
	var localPath *string
	if f.LocalPath != "" {
		localPath = &f.LocalPath
	}

	sqlFormula := "INSERT INTO files (id, user_id, name, type, parent_id, is_public, local_path) VALUES ($1, $2, $3, $4, $5, $6, $7);"
	return crdbpgx.ExecuteTx(ctx, db.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, sqlFormula, f.Id, f.UserId, f.Name, string(f.Type), parentParam(f.ParentId), f.IsPublic, localPath)
		return err
	})
}

// Get metadata of specified file from database
func (db *Database) GetFile(ctx context.Context, id uuid.UUID) (*models.File, error) {
	row := db.pool.QueryRow(ctx, "SELECT "+fileColumns+" FROM files WHERE id = $1;", id)
	return notFound(scanFile(row))
}

func (db *Database) GetUserFile(ctx context.Context, id, userId uuid.UUID) (*models.File, error) {
	row := db.pool.QueryRow(ctx, "SELECT "+fileColumns+" FROM files WHERE id = $1 AND user_id = $2;", id, userId)
	return notFound(scanFile(row))
}

// List directory of the user in insertion order
func (db *Database) ListDirectory(ctx context.Context, userId uuid.UUID, parent models.ParentRef, offset, limit int) ([]models.File, error) {
	var rows pgx.Rows
	var err error
	if folder, ok := parent.Folder(); ok {
		sqlFormula := "SELECT " + fileColumns + " FROM files WHERE user_id = $1 AND parent_id = $2 ORDER BY seq LIMIT $3 OFFSET $4;"
		rows, err = db.pool.Query(ctx, sqlFormula, userId, folder, limit, offset)
	} else {
		sqlFormula := "SELECT " + fileColumns + " FROM files WHERE user_id = $1 AND parent_id IS NULL ORDER BY seq LIMIT $2 OFFSET $3;"
		rows, err = db.pool.Query(ctx, sqlFormula, userId, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := []models.File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

func (db *Database) SetPublic(ctx context.Context, id, userId uuid.UUID, isPublic bool) (*models.File, error) {
	var f *models.File
	sqlFormula := "UPDATE files SET is_public = $1 WHERE id = $2 AND user_id = $3 RETURNING " + fileColumns + ";"
	err := crdbpgx.ExecuteTx(ctx, db.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var err error
		f, err = scanFile(tx.QueryRow(ctx, sqlFormula, isPublic, id, userId))
		return err
	})
	return notFound(f, err)
}

func notFound(f *models.File, err error) (*models.File, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}
