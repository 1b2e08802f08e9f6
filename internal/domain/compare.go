package domain

import (
	"bytes"
	"encoding/json"
)

// FieldChange describes one differing field between two versions of a record.
type FieldChange struct {
	Field string          `json:"field"`
	From  json.RawMessage `json:"from"`
	To    json.RawMessage `json:"to"`
}

type fieldValue struct {
	name  string
	value any
}

// fields renders every field in declaration order. Nil and empty slices render
// the same so a snapshot that went through storage still compares equal.
func (m Movie) fields() []fieldValue {
	return []fieldValue{
		{"id", m.ID},
		{"url", m.URL},
		{"primaryTitle", m.PrimaryTitle},
		{"originalTitle", m.OriginalTitle},
		{"type", m.Type},
		{"description", m.Description},
		{"primaryImage", m.PrimaryImage},
		{"trailer", m.Trailer},
		{"contentRating", m.ContentRating},
		{"isAdult", m.IsAdult},
		{"releaseDate", m.ReleaseDate},
		{"startYear", m.StartYear},
		{"runtimeMinutes", m.RuntimeMinutes},
		{"genres", nonNil(m.Genres)},
		{"countriesOfOrigin", nonNil(m.CountriesOfOrigin)},
		{"productionCompanies", nonNil(m.ProductionCompanies)},
		{"averageRating", m.AverageRating},
		{"numVotes", m.NumVotes},
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func encodeField(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// Every field type is plain data; this only trips on NaN ratings.
		return json.RawMessage(`"` + err.Error() + `"`)
	}
	return b
}

// Diff lists the fields whose values differ between original and proposed.
func Diff(original, proposed Movie) []FieldChange {
	before := original.fields()
	after := proposed.fields()
	var changes []FieldChange
	for i := range before {
		from := encodeField(before[i].value)
		to := encodeField(after[i].value)
		if !bytes.Equal(from, to) {
			changes = append(changes, FieldChange{Field: before[i].name, From: from, To: to})
		}
	}
	return changes
}

// Equal reports whether two records are structurally identical.
func Equal(a, b Movie) bool {
	return len(Diff(a, b)) == 0
}

// EqualLists reports whether two lists hold structurally identical records in the same order.
func EqualLists(a, b []Movie) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
