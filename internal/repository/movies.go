package repository

import (
	"context"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/storage"
)

// MoviesKey is the single key holding the serialized movie list.
const MoviesKey = "imdb_movies_tmp"

// MoviesRepository persists the whole movie list as one JSON array.
type MoviesRepository struct {
	kv  *storage.Adapter
	key string
}

// Load returns the persisted list. Missing, unreadable or malformed data
// yields ErrNotFound.
func (r *MoviesRepository) Load(ctx context.Context) ([]domain.Movie, error) {
	var movies []domain.Movie
	if !r.kv.Get(ctx, r.key, &movies) {
		return nil, ErrNotFound
	}
	if movies == nil {
		// A stored JSON null decodes to nil; treat it as an empty list.
		movies = []domain.Movie{}
	}
	return movies, nil
}

// Save overwrites the persisted list with movies.
func (r *MoviesRepository) Save(ctx context.Context, movies []domain.Movie) error {
	if movies == nil {
		movies = []domain.Movie{}
	}
	return r.kv.Set(ctx, r.key, movies)
}

// Exists reports whether a snapshot is stored.
func (r *MoviesRepository) Exists(ctx context.Context) bool {
	return r.kv.Has(ctx, r.key)
}

// Clear drops the persisted snapshot.
func (r *MoviesRepository) Clear(ctx context.Context) {
	r.kv.Remove(ctx, r.key)
}
