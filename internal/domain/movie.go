package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// KnownGenres lists the genres offered by the entry form. Records may carry others.
var KnownGenres = []string{"Drama", "Comedy", "Action", "Horror", "Sci-Fi", "Romance"}

const dateLayout = "2006-01-02"

// ErrInvalidDate is wrapped by ParseDate failures.
var ErrInvalidDate = errors.New("domain: invalid date")

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate returns the Date for the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return Date{}, fmt.Errorf("%w %q", ErrInvalidDate, raw)
	}
	t = t.UTC()
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ProductionCompany is passed through from the upstream catalog.
type ProductionCompany struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Movie is the catalog record. The JSON shape is shared by the upstream API,
// the persisted snapshot and the HTTP surface.
type Movie struct {
	ID                  string              `json:"id"`
	URL                 string              `json:"url,omitempty"`
	PrimaryTitle        string              `json:"primaryTitle"`
	OriginalTitle       string              `json:"originalTitle,omitempty"`
	Type                string              `json:"type,omitempty"`
	Description         *string             `json:"description"`
	PrimaryImage        *string             `json:"primaryImage"`
	Trailer             *string             `json:"trailer"`
	ContentRating       *string             `json:"contentRating"`
	IsAdult             bool                `json:"isAdult"`
	ReleaseDate         *Date               `json:"releaseDate"`
	StartYear           *int                `json:"startYear"`
	RuntimeMinutes      *int                `json:"runtimeMinutes"`
	Genres              []string            `json:"genres"`
	CountriesOfOrigin   []string            `json:"countriesOfOrigin,omitempty"`
	ProductionCompanies []ProductionCompany `json:"productionCompanies,omitempty"`
	AverageRating       *float64            `json:"averageRating"`
	NumVotes            *int64              `json:"numVotes"`
}

// Clone returns a deep copy so callers never share slices or pointers with the original.
func (m Movie) Clone() Movie {
	out := m
	out.Description = clonePtr(m.Description)
	out.PrimaryImage = clonePtr(m.PrimaryImage)
	out.Trailer = clonePtr(m.Trailer)
	out.ContentRating = clonePtr(m.ContentRating)
	out.ReleaseDate = clonePtr(m.ReleaseDate)
	out.StartYear = clonePtr(m.StartYear)
	out.RuntimeMinutes = clonePtr(m.RuntimeMinutes)
	out.AverageRating = clonePtr(m.AverageRating)
	out.NumVotes = clonePtr(m.NumVotes)
	out.Genres = cloneSlice(m.Genres)
	out.CountriesOfOrigin = cloneSlice(m.CountriesOfOrigin)
	out.ProductionCompanies = cloneSlice(m.ProductionCompanies)
	return out
}

// CloneList deep-copies a list, preserving nil-ness of an empty input as an empty slice.
func CloneList(list []Movie) []Movie {
	out := make([]Movie, len(list))
	for i, m := range list {
		out[i] = m.Clone()
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
