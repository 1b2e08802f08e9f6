// Package movies holds the authoritative in-memory movie list.
//
// The Store keeps the list, writes every effective change through to the
// snapshot repository, and notifies listeners with the full list. Consecutive
// structurally identical lists are delivered once: listeners may treat every
// notification as a real change.
package movies

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/Clark-Hu/movie-catalog/internal/catalog"
	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/repository"
)

// ErrRefreshFailed is the failure indicator returned by RefreshFromRemote.
var ErrRefreshFailed = errors.New("movies: refresh from remote failed")

const maxIDAttempts = 8

// Snapshots loads and saves the whole list. *repository.MoviesRepository implements it.
type Snapshots interface {
	Load(ctx context.Context) ([]domain.Movie, error)
	Save(ctx context.Context, movies []domain.Movie) error
}

// Listener receives a private copy of the full list after each change.
type Listener func(movies []domain.Movie)

// Options tunes a Store. The zero value is usable.
type Options struct {
	Logger *log.Logger
	// Query is sent on every remote refresh. Zero means catalog.DefaultQuery().
	Query catalog.Query
	// NewID generates candidate ids. Nil means UUID v4.
	NewID func() string
}

type subscription struct {
	id int
	fn Listener
}

// Store is the single owner of the movie list.
type Store struct {
	repo    Snapshots
	fetcher catalog.Client
	query   catalog.Query
	newID   func() string
	logger  *log.Logger

	mu     sync.Mutex
	movies []domain.Movie

	// emitMu orders notifications and guards the fields below. It is taken
	// before mu is released so listeners observe changes in mutation order.
	emitMu      sync.Mutex
	lastEmitted []domain.Movie
	emitted     bool
	listeners   []subscription
	nextSubID   int
}

// New constructs the store and hydrates it from repo.
func New(ctx context.Context, repo Snapshots, fetcher catalog.Client, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	query := opts.Query
	if query == (catalog.Query{}) {
		query = catalog.DefaultQuery()
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	s := &Store{
		repo:    repo,
		fetcher: fetcher,
		query:   query,
		newID:   newID,
		logger:  logger,
		movies:  []domain.Movie{},
	}
	s.hydrate(ctx)
	return s
}

// hydrate loads the persisted list once. It always produces the first notification.
func (s *Store) hydrate(ctx context.Context) {
	loaded, err := s.repo.Load(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Printf("movies: hydrate failed, starting empty: %v", err)
		}
		loaded = []domain.Movie{}
	}

	s.mu.Lock()
	next, repaired := s.ensureUniqueIDs(loaded)
	s.movies = next
	if repaired {
		s.persist(ctx, next)
	}
	snapshot := domain.CloneList(next)
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()

	s.logger.Printf("movies: hydrated %d movies", len(snapshot))
	s.emitLocked(snapshot)
}

// RefreshFromRemote replaces the whole list with the upstream search results.
//
// On failure the list is untouched, nothing is persisted, and the returned
// error wraps ErrRefreshFailed. Concurrent refreshes are not coordinated: the
// response that resolves last wins.
func (s *Store) RefreshFromRemote(ctx context.Context) error {
	fetched, err := s.fetcher.Search(ctx, s.query)
	if err != nil {
		s.logger.Printf("movies: refresh failed, keeping cached list: %v", err)
		return fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	s.mutate(ctx, func(_ []domain.Movie) ([]domain.Movie, bool) {
		next, _ := s.ensureUniqueIDs(domain.CloneList(fetched))
		return next, true
	})
	s.logger.Printf("movies: refreshed %d movies from remote", len(fetched))
	return nil
}

// Add appends candidate under a freshly generated id and returns the stored record.
// Any id carried by candidate is ignored.
func (s *Store) Add(ctx context.Context, candidate domain.Movie) domain.Movie {
	var created domain.Movie
	s.mutate(ctx, func(current []domain.Movie) ([]domain.Movie, bool) {
		created = candidate.Clone()
		created.ID = s.uniqueID(idSet(current))
		next := make([]domain.Movie, len(current), len(current)+1)
		copy(next, current)
		return append(next, created), true
	})
	return created.Clone()
}

// Update replaces the record with the same id in place. It reports whether the
// id exists; an unknown id never inserts.
func (s *Store) Update(ctx context.Context, record domain.Movie) bool {
	found := false
	s.mutate(ctx, func(current []domain.Movie) ([]domain.Movie, bool) {
		idx := indexOf(current, record.ID)
		if idx < 0 {
			return current, false
		}
		found = true
		if domain.Equal(current[idx], record) {
			return current, false
		}
		next := make([]domain.Movie, len(current))
		copy(next, current)
		next[idx] = record.Clone()
		return next, true
	})
	return found
}

// Delete removes the record with id and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) bool {
	found := false
	s.mutate(ctx, func(current []domain.Movie) ([]domain.Movie, bool) {
		idx := indexOf(current, id)
		if idx < 0 {
			return current, false
		}
		found = true
		next := make([]domain.Movie, 0, len(current)-1)
		next = append(next, current[:idx]...)
		return append(next, current[idx+1:]...), true
	})
	return found
}

// Snapshot returns a copy of the current list.
func (s *Store) Snapshot() []domain.Movie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneList(s.movies)
}

// Get returns a copy of the record with id.
func (s *Store) Get(id string) (domain.Movie, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.movies, id)
	if idx < 0 {
		return domain.Movie{}, false
	}
	return s.movies[idx].Clone(), true
}

// Subscribe registers fn and immediately replays the latest list to it.
// fn runs synchronously on the mutating goroutine and must not call Add,
// Update, Delete, RefreshFromRemote, Subscribe or an unsubscribe func.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})
	if s.emitted {
		s.deliver(fn, s.lastEmitted)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.emitMu.Lock()
			defer s.emitMu.Unlock()
			for i, sub := range s.listeners {
				if sub.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// mutate applies fn under the list lock. When fn reports a change the new list
// is stored, persisted and emitted.
func (s *Store) mutate(ctx context.Context, fn func(current []domain.Movie) ([]domain.Movie, bool)) {
	s.mu.Lock()
	next, changed := fn(s.movies)
	if !changed {
		s.mu.Unlock()
		return
	}
	s.movies = next
	s.persist(ctx, next)
	snapshot := domain.CloneList(next)

	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()
	s.emitLocked(snapshot)
}

// persist is best-effort: the in-memory list stays authoritative.
func (s *Store) persist(ctx context.Context, movies []domain.Movie) {
	if err := s.repo.Save(ctx, movies); err != nil {
		s.logger.Printf("movies: persist failed, in-memory list kept: %v", err)
	}
}

// emitLocked requires emitMu.
func (s *Store) emitLocked(snapshot []domain.Movie) {
	if s.emitted && domain.EqualLists(s.lastEmitted, snapshot) {
		return
	}
	s.lastEmitted = snapshot
	s.emitted = true
	for _, sub := range s.listeners {
		s.deliver(sub.fn, snapshot)
	}
}

func (s *Store) deliver(fn Listener, snapshot []domain.Movie) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("movies: listener panicked: %v", r)
		}
	}()
	fn(domain.CloneList(snapshot))
}

// ensureUniqueIDs gives empty ids a fresh id and drops later duplicates.
// Generated ids avoid every id present anywhere in list.
func (s *Store) ensureUniqueIDs(list []domain.Movie) ([]domain.Movie, bool) {
	taken := idSet(list)
	delete(taken, "")
	kept := make(map[string]struct{}, len(list))
	out := make([]domain.Movie, 0, len(list))
	changed := false
	for _, m := range list {
		if m.ID == "" {
			m.ID = s.uniqueID(taken)
			taken[m.ID] = struct{}{}
			changed = true
		} else if _, dup := kept[m.ID]; dup {
			s.logger.Printf("movies: dropping duplicate id %q (%s)", m.ID, m.PrimaryTitle)
			changed = true
			continue
		}
		kept[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out, changed
}

// uniqueID draws ids until one is not taken, then falls back to a numeric suffix.
func (s *Store) uniqueID(taken map[string]struct{}) string {
	var candidate string
	for i := 0; i < maxIDAttempts; i++ {
		candidate = s.newID()
		if _, ok := taken[candidate]; !ok && candidate != "" {
			return candidate
		}
	}
	for n := 1; ; n++ {
		suffixed := candidate + "-" + strconv.Itoa(n)
		if _, ok := taken[suffixed]; !ok {
			return suffixed
		}
	}
}

func idSet(list []domain.Movie) map[string]struct{} {
	ids := make(map[string]struct{}, len(list))
	for _, m := range list {
		ids[m.ID] = struct{}{}
	}
	return ids
}

func indexOf(list []domain.Movie, id string) int {
	for i, m := range list {
		if m.ID == id {
			return i
		}
	}
	return -1
}
