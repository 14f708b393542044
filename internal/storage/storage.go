// Package storage is the object store the pipeline keeps its JSON
// documents and media blobs in.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// Store is a flat key/value object store. There are no transactions and
// no concurrency tokens: writes are last-writer-wins.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Exists reports whether key is present.
func Exists(ctx context.Context, s Store, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetJSON loads key and decodes it into v.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	body, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// PutJSON encodes v and stores it at key.
func PutJSON(ctx context.Context, s Store, key string, v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Put(ctx, key, body, "application/json")
}

// Move copies every object under fromPrefix to the same relative key under
// toPrefix, then deletes the originals. It is not atomic: a failure part
// way leaves both copies in place, never neither.
func Move(ctx context.Context, s Store, fromPrefix, toPrefix string) error {
	keys, err := s.List(ctx, fromPrefix)
	if err != nil {
		return fmt.Errorf("list %s: %w", fromPrefix, err)
	}
	for _, key := range keys {
		body, err := s.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("copy %s: %w", key, err)
		}
		dest := toPrefix + key[len(fromPrefix):]
		if err := s.Put(ctx, dest, body, ContentType(key)); err != nil {
			return fmt.Errorf("copy %s to %s: %w", key, dest, err)
		}
	}
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}
