package repository

import (
	"errors"

	"github.com/Clark-Hu/movie-catalog/internal/storage"
)

// ErrNotFound indicates no readable snapshot exists.
var ErrNotFound = errors.New("repository: not found")

// Repository aggregates all typed views over the key-value adapter.
type Repository struct {
	Movies *MoviesRepository
}

// New constructs a Repository backed by the provided adapter.
func New(kv *storage.Adapter) *Repository {
	return &Repository{
		Movies: &MoviesRepository{kv: kv, key: MoviesKey},
	}
}
