package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"imagecaster/internal/oops"
	"imagecaster/internal/storage"
)

func GetObject(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := DB.GetContext(ctx, &body, "SELECT body FROM objects WHERE key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, oops.New(err, "failed to get object %s", key)
	}
	return body, nil
}

func PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO objects (key, content_type, body, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE SET
			content_type = EXCLUDED.content_type,
			body = EXCLUDED.body,
			updated_at = NOW()`,
		key, contentType, body)
	if err != nil {
		return oops.New(err, "failed to put object %s", key)
	}
	return nil
}

func DeleteObject(ctx context.Context, key string) error {
	_, err := DB.ExecContext(ctx, "DELETE FROM objects WHERE key = $1", key)
	if err != nil {
		return oops.New(err, "failed to delete object %s", key)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func ListObjects(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := DB.SelectContext(ctx, &keys, "SELECT key FROM objects WHERE key LIKE $1 ORDER BY key", likeEscaper.Replace(prefix)+"%")
	if err != nil {
		return nil, oops.New(err, "failed to list objects under %s", prefix)
	}
	return keys, nil
}

// Store exposes the objects table as a storage.Store.
type Store struct{}

func (Store) Get(ctx context.Context, key string) ([]byte, error) {
	return GetObject(ctx, key)
}

func (Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	return PutObject(ctx, key, body, contentType)
}

func (Store) Delete(ctx context.Context, key string) error {
	return DeleteObject(ctx, key)
}

func (Store) List(ctx context.Context, prefix string) ([]string, error) {
	return ListObjects(ctx, prefix)
}

var _ storage.Store = Store{}
