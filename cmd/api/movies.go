package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/marcellovf/teste-lista-filmes/internal/data"
	"github.com/marcellovf/teste-lista-filmes/internal/poster"
	"github.com/marcellovf/teste-lista-filmes/internal/validator"
)

const (
	defaultMoviesPageSize = 12
	defaultMoviesSort     = "-year"

	// Room for the text fields on top of the largest accepted poster.
	maxMovieFormBytes = poster.MaxUploadBytes + 1<<20
)

var movieSortSafelist = []string{"id", "title", "year", "runtime", "release_date", "-id", "-title", "-year", "-runtime", "-release_date"}

// listMoviesHandler for the "GET /v1/movies" endpoint.
func (app *application) listMoviesHandler(w http.ResponseWriter, r *http.Request) {
	v := validator.New()
	qs := r.URL.Query()

	query := data.MovieQuery{
		Title:     app.readString(qs, "title", ""),
		GenreID:   int64(app.readInt(qs, "genre", 0, v)),
		StartYear: app.readInt(qs, "start_year", 0, v),
		EndYear:   app.readInt(qs, "end_year", 0, v),
		Filters: data.Filters{
			Page:         app.readInt(qs, "page", 1, v),
			PageSize:     app.readInt(qs, "page_size", defaultMoviesPageSize, v),
			Sort:         app.readString(qs, "sort", defaultMoviesSort),
			SortSafelist: movieSortSafelist,
		},
	}

	if data.ValidateMovieQuery(v, query); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	movies, metadata, err := app.models.Movies.GetAll(query)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"movies": movies, "metadata": metadata}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// createMovieHandler for the "POST /v1/movies" endpoint. The request is a
// multipart form; the optional "poster" file is resized before it is stored.
func (app *application) createMovieHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMovieFormBytes)

	err := r.ParseMultipartForm(1 << 20)
	if err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			app.badRequestResponse(w, r, fmt.Errorf("body must not be larger than %d bytes", maxBytesError.Limit))
			return
		}
		app.badRequestResponse(w, r, errors.New("body must be a multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	v := validator.New()
	form := r.PostForm

	user := app.contextGetUser(r)

	movie := &data.Movie{
		Title:         form.Get("title"),
		OriginalTitle: form.Get("original_title"),
		Overview:      form.Get("overview"),
		Budget:        app.readInt64(form, "budget", 0, v),
		Year:          app.readInt32(form, "year", 0, v),
		Runtime:       app.readInt32(form, "runtime", 0, v),
		ReleaseDate:   app.readDate(form, "release_date", v),
		Genres:        app.readGenres(form["genres"], v),
		AddedBy:       &user.ID,
	}

	if data.ValidateMovie(v, movie); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	if !app.checkGenres(w, r, v, movie) {
		return
	}

	posterPath, ok := app.savePoster(w, r, v)
	if !ok {
		return
	}
	movie.PosterPath = posterPath

	err = app.models.Movies.Insert(movie)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/v1/movies/%d", movie.ID))

	err = app.writeJSON(w, http.StatusCreated, envelope{"movie": movie}, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// checkGenres reports whether every genre of movie exists, writing the
// response itself when it does not.
func (app *application) checkGenres(w http.ResponseWriter, r *http.Request, v *validator.Validator, movie *data.Movie) bool {
	exist, err := app.models.Genres.AllExist(movie.GenreIDs())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return false
	}

	if !exist {
		v.AddError("genres", "must only contain existing genres")
		app.failedValidationResponse(w, r, v.Errors)
		return false
	}

	return true
}

// savePoster processes and stores the uploaded poster, if any, and returns
// its public URL. It writes the response itself when it reports false.
func (app *application) savePoster(w http.ResponseWriter, r *http.Request, v *validator.Validator) (string, bool) {
	file, header, err := r.FormFile("poster")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", true
		}
		app.badRequestResponse(w, r, err)
		return "", false
	}
	defer file.Close()

	if header.Size > poster.MaxUploadBytes {
		v.AddError("poster", "must not be larger than 5MB")
		app.failedValidationResponse(w, r, v.Errors)
		return "", false
	}

	processed, err := poster.Process(file)
	if err != nil {
		switch {
		case errors.Is(err, poster.ErrUnsupportedImage):
			v.AddError("poster", "must be a JPEG, PNG or GIF image")
			app.failedValidationResponse(w, r, v.Errors)
		default:
			app.badRequestResponse(w, r, err)
		}
		return "", false
	}

	url, err := app.posters.Save(header.Filename, processed)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return "", false
	}

	return url, true
}

// showMovieHandler for the "GET /v1/movies/:id" endpoint.
func (app *application) showMovieHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	movie, err := app.models.Movies.Get(id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"movie": movie}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateMovieHandler for the "PATCH /v1/movies/:id" endpoint. Only the user
// who added the movie may change it.
func (app *application) updateMovieHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	movie, err := app.models.Movies.Get(id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	if !app.ownsMovie(r, movie) {
		app.notPermittedResponse(w, r)
		return
	}

	// Clients may send X-Expected-Version to avoid overwriting a concurrent edit.
	if r.Header.Get("X-Expected-Version") != "" {
		if fmt.Sprint(movie.Version) != r.Header.Get("X-Expected-Version") {
			app.editConflictResponse(w, r)
			return
		}
	}

	var input struct {
		Title         *string `json:"title"`
		OriginalTitle *string `json:"original_title"`
		Overview      *string `json:"overview"`
		Budget        *int64  `json:"budget"`
		Year          *int32  `json:"year"`
		Runtime       *int32  `json:"runtime"`
		ReleaseDate   *string `json:"release_date"`
		Genres        []int64 `json:"genres"`
	}

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()

	if input.Title != nil {
		movie.Title = *input.Title
	}
	if input.OriginalTitle != nil {
		movie.OriginalTitle = *input.OriginalTitle
	}
	if input.Overview != nil {
		movie.Overview = *input.Overview
	}
	if input.Budget != nil {
		movie.Budget = *input.Budget
	}
	if input.Year != nil {
		movie.Year = *input.Year
	}
	if input.Runtime != nil {
		movie.Runtime = *input.Runtime
	}
	if input.ReleaseDate != nil {
		releaseDate, err := time.Parse(data.DateLayout, *input.ReleaseDate)
		if err != nil {
			v.AddError("release_date", "must be a date in YYYY-MM-DD format")
		}
		movie.ReleaseDate = releaseDate
	}
	if input.Genres != nil {
		movie.Genres = make([]data.Genre, len(input.Genres))
		for i, id := range input.Genres {
			movie.Genres[i] = data.Genre{ID: id}
		}
	}

	if data.ValidateMovie(v, movie); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	if input.Genres != nil && !app.checkGenres(w, r, v, movie) {
		return
	}

	err = app.models.Movies.Update(movie)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrEditConflict):
			app.editConflictResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"movie": movie}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// deleteMovieHandler for the "DELETE /v1/movies/:id" endpoint.
func (app *application) deleteMovieHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	movie, err := app.models.Movies.Get(id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	if !app.ownsMovie(r, movie) {
		app.notPermittedResponse(w, r)
		return
	}

	err = app.models.Movies.Delete(id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "movie successfully deleted"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) ownsMovie(r *http.Request, movie *data.Movie) bool {
	user := app.contextGetUser(r)
	return movie.AddedBy != nil && *movie.AddedBy == user.ID
}
