package data

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marcellovf/teste-lista-filmes/internal/validator"
)

func validMovie() *Movie {
	return &Movie{
		Title:       "Casablanca",
		Year:        1942,
		Runtime:     102,
		ReleaseDate: time.Date(1942, 11, 26, 0, 0, 0, 0, time.UTC),
		Genres:      []Genre{{ID: 1}, {ID: 4}},
	}
}

func TestValidateMovie(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m *Movie)
		wantKey string
	}{
		{name: "valid", mutate: func(m *Movie) {}},
		{name: "missing title", mutate: func(m *Movie) { m.Title = "" }, wantKey: "title"},
		{name: "year too old", mutate: func(m *Movie) { m.Year = 1799 }, wantKey: "year"},
		{name: "year too far", mutate: func(m *Movie) { m.Year = 2101 }, wantKey: "year"},
		{name: "negative runtime", mutate: func(m *Movie) { m.Runtime = -5 }, wantKey: "runtime"},
		{name: "missing release date", mutate: func(m *Movie) { m.ReleaseDate = time.Time{} }, wantKey: "release_date"},
		{name: "no genres", mutate: func(m *Movie) { m.Genres = nil }, wantKey: "genres"},
		{name: "with details", mutate: func(m *Movie) { m.OriginalTitle, m.Overview, m.Budget = "Casablanca", "Rick runs a nightclub.", 950000 }},
		{name: "long original title", mutate: func(m *Movie) { m.OriginalTitle = strings.Repeat("a", 501) }, wantKey: "original_title"},
		{name: "long overview", mutate: func(m *Movie) { m.Overview = strings.Repeat("a", 5001) }, wantKey: "overview"},
		{name: "negative budget", mutate: func(m *Movie) { m.Budget = -1 }, wantKey: "budget"},
		{name: "duplicate genres", mutate: func(m *Movie) { m.Genres = []Genre{{ID: 2}, {ID: 2}} }, wantKey: "genres"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			movie := validMovie()
			tt.mutate(movie)

			v := validator.New()
			ValidateMovie(v, movie)

			if tt.wantKey == "" {
				assert.True(t, v.Valid(), "unexpected errors: %v", v.Errors)
				return
			}
			assert.Contains(t, v.Errors, tt.wantKey)
		})
	}
}

func TestMovieGenreIDs(t *testing.T) {
	assert.Equal(t, []int64{1, 4}, validMovie().GenreIDs())
	assert.Empty(t, (&Movie{}).GenreIDs())
}
