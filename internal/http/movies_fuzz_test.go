package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
)

func FuzzDecodeMovieBody(f *testing.F) {
	seeds := []string{
		`{"primaryTitle":"Dune","releaseDate":"2021-10-22","genres":["Sci-Fi"]}`,
		`{"releaseDate":"2021-10-22T00:00:00Z"}`,
		`{"releaseDate":"yesterday"}`,
		`{"runtimeMinutes":"long"}`,
		`{"averageRating":1e400}`,
		`[]`,
		"",
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		req := httptest.NewRequest(http.MethodPost, "/movies", strings.NewReader(raw))
		rec := httptest.NewRecorder()
		var movie domain.Movie
		if err := decodeJSONBody(rec, req, &movie); err != nil {
			return
		}
		_ = movie.Validate()
	})
}
