package data

import (
	"math"
	"strings"

	"github.com/marcellovf/teste-lista-filmes/internal/validator"
)

const (
	// Years accepted for a movie's release year and for the listing year range.
	MinReleaseYear = 1800
	MaxReleaseYear = 2100
)

// Filters carries the paging and sorting parameters shared by list endpoints.
type Filters struct {
	Page         int
	PageSize     int
	Sort         string
	SortSafelist []string
}

// MovieQuery narrows the catalog listing. Zero values disable a criterion.
type MovieQuery struct {
	Title     string
	GenreID   int64
	StartYear int
	EndYear   int
	Filters
}

// sortColumn returns the column for the client-provided Sort value with any
// leading hyphen stripped. Values outside the safelist are a programming error
// because ValidateFilters must run first.
func (f Filters) sortColumn() string {
	for _, safeValue := range f.SortSafelist {
		if f.Sort == safeValue {
			return strings.TrimPrefix(f.Sort, "-")
		}
	}
	panic("unsafe sort parameter: " + f.Sort)
}

func (f Filters) sortDirection() string {
	if strings.HasPrefix(f.Sort, "-") {
		return "DESC"
	}
	return "ASC"
}

func (f Filters) limit() int {
	return f.PageSize
}

func (f Filters) offset() int {
	return (f.Page - 1) * f.PageSize
}

// ValidateFilters adds an error to v for every paging or sorting value out of bounds.
func ValidateFilters(v *validator.Validator, f Filters) {
	v.Check(f.Page > 0, "page", "must be greater than zero")
	v.Check(f.Page <= 10_000_000, "page", "must be a maximum of 10 million")
	v.Check(f.PageSize > 0, "page_size", "must be greater than zero")
	v.Check(f.PageSize <= 100, "page_size", "must be a maximum of 100")
	v.Check(validator.In(f.Sort, f.SortSafelist...), "sort", "invalid sort value")
}

// ValidateMovieQuery checks the catalog criteria on top of the paging filters.
func ValidateMovieQuery(v *validator.Validator, q MovieQuery) {
	v.Check(q.GenreID >= 0, "genre", "must be a positive integer")
	if q.StartYear != 0 {
		v.Check(q.StartYear >= MinReleaseYear && q.StartYear <= MaxReleaseYear, "start_year", "must be between 1800 and 2100")
	}
	if q.EndYear != 0 {
		v.Check(q.EndYear >= MinReleaseYear && q.EndYear <= MaxReleaseYear, "end_year", "must be between 1800 and 2100")
	}
	if q.StartYear != 0 && q.EndYear != 0 {
		v.Check(q.StartYear <= q.EndYear, "end_year", "must not be before start_year")
	}

	ValidateFilters(v, q.Filters)
}

// Metadata holds the pagination details returned alongside a listing.
type Metadata struct {
	CurrentPage  int `json:"current_page"`
	PageSize     int `json:"page_size"`
	FirstPage    int `json:"first_page"`
	LastPage     int `json:"last_page"`
	TotalRecords int `json:"total_records"`
}

// calculateMetadata derives the pagination metadata from the total record
// count. There is always at least one page, even when it is empty.
func calculateMetadata(totalRecords, page, pageSize int) Metadata {
	lastPage := int(math.Ceil(float64(totalRecords) / float64(pageSize)))

	return Metadata{
		CurrentPage:  page,
		PageSize:     pageSize,
		FirstPage:    1,
		LastPage:     max(lastPage, 1),
		TotalRecords: totalRecords,
	}
}
