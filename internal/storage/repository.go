package storage

import (
	"context"
	"errors"

	"IceStock/internal/model"
)

// ErrNotFound is returned when a store does not exist.
var ErrNotFound = errors.New("not found")

// Repository persists stores and their weekly suggestions.
type Repository interface {
	// CreateStore assigns the store an id and creation time and saves it.
	CreateStore(ctx context.Context, s *model.Store) (int64, error)
	GetStore(ctx context.Context, id int64) (*model.Store, error)
	ListStores(ctx context.Context) ([]model.Store, error)
	// SaveSuggestion assigns the record an id and saves it; CreatedAt is kept if set.
	SaveSuggestion(ctx context.Context, rec *model.SuggestionRecord) (int64, error)
	// ListSuggestions returns every suggestion with its store name, most recent first.
	ListSuggestions(ctx context.Context) ([]model.SuggestionRecord, error)
	Close() error
}
