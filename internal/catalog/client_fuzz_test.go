package catalog

import (
	"testing"
)

func FuzzConvertToMovie(f *testing.F) {
	f.Add("tt0111161", "The Shawshank Redemption", "1994-10-14", "https://img", 142, 9.3)
	f.Add("", "", "", "", 0, 0.0)
	f.Add("tt1", "  padded  ", "1994-10-14T00:00:00Z", " ", -5, -1.0)

	f.Fuzz(func(t *testing.T, id, title, releaseDate, image string, runtime int, rating float64) {
		r := apiResult{
			ID:             optionalString(id),
			PrimaryTitle:   optionalString(title),
			ReleaseDate:    optionalString(releaseDate),
			PrimaryImage:   optionalString(image),
			RuntimeMinutes: &runtime,
			AverageRating:  &rating,
		}
		if runtime%2 == 0 {
			r.RuntimeMinutes = nil
		}

		movie := convertToMovie(r)
		if movie.PrimaryImage == nil || *movie.PrimaryImage == "" {
			t.Fatalf("primaryImage should never be empty")
		}
		if movie.Genres == nil {
			t.Fatalf("genres should never be nil")
		}
		if movie.ID != id {
			t.Fatalf("id = %q, want %q", movie.ID, id)
		}
		if r.RuntimeMinutes == nil && movie.RuntimeMinutes != nil {
			t.Fatalf("absent runtime must stay absent")
		}
	})
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
