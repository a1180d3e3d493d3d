package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/marcellovf/teste-lista-filmes/internal/validator"
)

// DateLayout is the wire format of Movie.ReleaseDate in requests.
const DateLayout = "2006-01-02"

type Movie struct {
	ID int64 `json:"id"`
	// Timestamp for when the movie is added to our database
	CreatedAt time.Time `json:"-"`
	Title     string    `json:"title"`
	// Title in the original language, when it differs
	OriginalTitle string `json:"original_title,omitempty"`
	Overview      string `json:"overview,omitempty"`
	// Production budget in US dollars, 0 when unknown
	Budget int64 `json:"budget,omitempty"`
	// Public URL of the processed poster, empty when none was uploaded
	PosterPath string `json:"poster_path,omitempty"`
	// Movie release year
	Year int32 `json:"year,omitempty"`
	// Movie runtime (in minutes)
	Runtime     int32     `json:"runtime,omitempty"`
	ReleaseDate time.Time `json:"release_date"`
	Genres      []Genre   `json:"genres,omitempty"`
	// ID of the user who added the movie; nil once that account is gone
	AddedBy *int64 `json:"added_by,omitempty"`
	// Set once the release e-mail went out, never cleared
	Notified bool  `json:"-"`
	Version  int32 `json:"version"`
}

// GenreIDs returns the ids of the movie's genres in order.
func (m *Movie) GenreIDs() []int64 {
	ids := make([]int64, len(m.Genres))
	for i, g := range m.Genres {
		ids[i] = g.ID
	}
	return ids
}

// ValidateMovie adds an error to v for every field that breaks the catalog rules.
func ValidateMovie(v *validator.Validator, movie *Movie) {
	v.Check(movie.Title != "", "title", "must be provided")
	v.Check(len(movie.Title) <= 500, "title", "must not be more than 500 bytes long")
	v.Check(len(movie.OriginalTitle) <= 500, "original_title", "must not be more than 500 bytes long")
	v.Check(len(movie.Overview) <= 5000, "overview", "must not be more than 5000 bytes long")
	v.Check(movie.Budget >= 0, "budget", "must not be negative")

	v.Check(movie.Year != 0, "year", "must be provided")
	v.Check(movie.Year >= MinReleaseYear, "year", "must be greater than 1800")
	v.Check(movie.Year <= MaxReleaseYear, "year", "must not be greater than 2100")

	v.Check(movie.Runtime != 0, "runtime", "must be provided")
	v.Check(movie.Runtime > 0, "runtime", "must be a positive integer")

	v.Check(!movie.ReleaseDate.IsZero(), "release_date", "must be provided")

	ids := movie.GenreIDs()
	v.Check(len(ids) >= 1, "genres", "must contain at least 1 genre")
	v.Check(len(ids) <= 5, "genres", "must not contain more than 5 genres")
	v.Check(validator.Unique(ids), "genres", "must not contain duplicate values")
}

// MovieModel wraps a sql.DB connection pool.
type MovieModel struct {
	DB *sql.DB
}

// movieColumns is shared by every query that scans a full Movie with scanMovie.
const movieColumns = `m.id, m.created_at, m.title, m.original_title, m.overview, m.budget, m.poster_path, m.year, m.runtime, m.release_date,
	m.added_by, m.notified, m.version,
	COALESCE(array_agg(g.id ORDER BY g.name) FILTER (WHERE g.id IS NOT NULL), '{}'),
	COALESCE(array_agg(g.name ORDER BY g.name) FILTER (WHERE g.id IS NOT NULL), '{}')`

const movieJoins = `FROM movies m
	LEFT JOIN movies_genres mg ON mg.movie_id = m.id
	LEFT JOIN genres g ON g.id = mg.genre_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovie(row rowScanner, extra ...any) (*Movie, error) {
	var (
		movie      Movie
		addedBy    sql.NullInt64
		genreIDs   []int64
		genreNames []string
	)

	dest := append(extra,
		&movie.ID,
		&movie.CreatedAt,
		&movie.Title,
		&movie.OriginalTitle,
		&movie.Overview,
		&movie.Budget,
		&movie.PosterPath,
		&movie.Year,
		&movie.Runtime,
		&movie.ReleaseDate,
		&addedBy,
		&movie.Notified,
		&movie.Version,
		pq.Array(&genreIDs),
		pq.Array(&genreNames),
	)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if addedBy.Valid {
		movie.AddedBy = &addedBy.Int64
	}
	for i := range genreIDs {
		movie.Genres = append(movie.Genres, Genre{ID: genreIDs[i], Name: genreNames[i]})
	}

	return &movie, nil
}

// Insert adds a movie and its genre links in one transaction. The record's
// ID, CreatedAt and Version are filled from the database.
func (m MovieModel) Insert(movie *Movie) error {
	query := `
		INSERT INTO movies (title, original_title, overview, budget, poster_path, year, runtime, release_date, added_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, version`

	ctx, cancel := withTimeout()
	defer cancel()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	args := []any{
		movie.Title,
		movie.OriginalTitle,
		movie.Overview,
		movie.Budget,
		movie.PosterPath,
		movie.Year,
		movie.Runtime,
		movie.ReleaseDate,
		movie.AddedBy,
	}
	err = tx.QueryRowContext(ctx, query, args...).Scan(&movie.ID, &movie.CreatedAt, &movie.Version)
	if err != nil {
		return err
	}

	if err := linkGenres(ctx, tx, movie.ID, movie.GenreIDs()); err != nil {
		return err
	}

	return tx.Commit()
}

func linkGenres(ctx context.Context, tx *sql.Tx, movieID int64, genreIDs []int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM movies_genres WHERE movie_id = $1`, movieID)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO movies_genres (movie_id, genre_id)
		SELECT $1, unnest($2::bigint[])`

	_, err = tx.ExecContext(ctx, query, movieID, pq.Array(genreIDs))
	return err
}

// Get returns the movie with the given id, or ErrRecordNotFound.
func (m MovieModel) Get(id int64) (*Movie, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	query := `SELECT ` + movieColumns + ` ` + movieJoins + `
		WHERE m.id = $1
		GROUP BY m.id`

	ctx, cancel := withTimeout()
	defer cancel()

	movie, err := scanMovie(m.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	return movie, nil
}

// GetAll returns one page of movies matching q along with the pagination metadata.
// The title match is a case-insensitive substring match.
func (m MovieModel) GetAll(q MovieQuery) ([]*Movie, Metadata, error) {
	query := fmt.Sprintf(`
		SELECT count(*) OVER(), `+movieColumns+` `+movieJoins+`
		WHERE (m.title ILIKE '%%' || $1::text || '%%' OR $1::text = '')
		AND ($2::bigint = 0 OR EXISTS (SELECT 1 FROM movies_genres f WHERE f.movie_id = m.id AND f.genre_id = $2::bigint))
		AND ($3::int = 0 OR m.year >= $3::int)
		AND ($4::int = 0 OR m.year <= $4::int)
		GROUP BY m.id
		ORDER BY m.%s %s, m.id ASC
		LIMIT $5 OFFSET $6`, q.sortColumn(), q.sortDirection())

	ctx, cancel := withTimeout()
	defer cancel()

	args := []any{q.Title, q.GenreID, q.StartYear, q.EndYear, q.limit(), q.offset()}

	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Metadata{}, err
	}
	defer rows.Close()

	totalRecords := 0
	movies := []*Movie{}

	for rows.Next() {
		movie, err := scanMovie(rows, &totalRecords)
		if err != nil {
			return nil, Metadata{}, err
		}
		movies = append(movies, movie)
	}

	if err = rows.Err(); err != nil {
		return nil, Metadata{}, err
	}

	return movies, calculateMetadata(totalRecords, q.Page, q.PageSize), nil
}

// Update writes the editable fields back using optimistic locking on version.
// The notified flag is never touched here.
func (m MovieModel) Update(movie *Movie) error {
	query := `
		UPDATE movies
		SET title = $1, original_title = $2, overview = $3, budget = $4, poster_path = $5,
			year = $6, runtime = $7, release_date = $8, version = version + 1
		WHERE id = $9 AND version = $10
		RETURNING version`

	ctx, cancel := withTimeout()
	defer cancel()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	args := []any{
		movie.Title,
		movie.OriginalTitle,
		movie.Overview,
		movie.Budget,
		movie.PosterPath,
		movie.Year,
		movie.Runtime,
		movie.ReleaseDate,
		movie.ID,
		movie.Version,
	}

	err = tx.QueryRowContext(ctx, query, args...).Scan(&movie.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrEditConflict
		default:
			return err
		}
	}

	if err := linkGenres(ctx, tx, movie.ID, movie.GenreIDs()); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete removes the movie; genre links go with it through ON DELETE CASCADE.
func (m MovieModel) Delete(id int64) error {
	if id < 1 {
		return ErrRecordNotFound
	}

	ctx, cancel := withTimeout()
	defer cancel()

	result, err := m.DB.ExecContext(ctx, `DELETE FROM movies WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}
