package main

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/movie-catalog/internal/catalog"
	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/movies"
	"github.com/Clark-Hu/movie-catalog/internal/repository"
	"github.com/Clark-Hu/movie-catalog/internal/storage"
)

// hangingCatalog blocks every search until the caller's context ends.
type hangingCatalog struct {
	started chan struct{}
}

func (h *hangingCatalog) Search(ctx context.Context, _ catalog.Query) ([]domain.Movie, error) {
	close(h.started)
	<-ctx.Done()
	return []domain.Movie{}, ctx.Err()
}

func TestRefreshInBackgroundDoesNotBlockStartup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := log.New(io.Discard, "", 0)
	repo := repository.New(storage.New(ctx, storage.NewMemoryBackend(), logger)).Movies
	require.NoError(t, repo.Save(ctx, []domain.Movie{{ID: "m1", PrimaryTitle: "Cached"}}))

	upstream := &hangingCatalog{started: make(chan struct{})}
	st := movies.New(ctx, repo, upstream, movies.Options{Logger: logger})

	returned := make(chan (<-chan struct{}), 1)
	go func() { returned <- refreshInBackground(ctx, st) }()

	var done <-chan struct{}
	select {
	case done = <-returned:
	case <-time.After(time.Second):
		t.Fatalf("refreshInBackground blocked on a hanging upstream")
	}

	select {
	case <-upstream.started:
	case <-time.After(time.Second):
		t.Fatalf("refresh never reached the upstream")
	}

	list := st.Snapshot()
	require.Len(t, list, 1)
	assert.Equal(t, "Cached", list[0].PrimaryTitle, "cached list keeps serving while the refresh hangs")

	select {
	case <-done:
		t.Fatalf("refresh finished before the upstream answered")
	default:
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("refresh did not stop after cancel")
	}
	assert.Equal(t, "Cached", st.Snapshot()[0].PrimaryTitle, "failed refresh leaves the list untouched")
}
