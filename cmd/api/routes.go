package main

import (
	"net/http"
	"os"

	"github.com/julienschmidt/httprouter"
)

// postersURLPrefix is where uploaded posters are served from.
const postersURLPrefix = "/static/posters"

func (app *application) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedResponse)

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthcheckHandler)
	router.HandlerFunc(http.MethodGet, "/v1/cron", app.startNotifierHandler)

	router.HandlerFunc(http.MethodGet, "/v1/genres", app.listGenresHandler)

	router.HandlerFunc(http.MethodGet, "/v1/movies", app.listMoviesHandler)
	router.HandlerFunc(http.MethodPost, "/v1/movies", app.requireVerifiedUser(app.createMovieHandler))
	router.HandlerFunc(http.MethodGet, "/v1/movies/:id", app.showMovieHandler)
	router.HandlerFunc(http.MethodPatch, "/v1/movies/:id", app.requireAuthenticatedUser(app.updateMovieHandler))
	router.HandlerFunc(http.MethodDelete, "/v1/movies/:id", app.requireAuthenticatedUser(app.deleteMovieHandler))

	router.HandlerFunc(http.MethodPost, "/v1/users", app.registerUserHandler)
	router.HandlerFunc(http.MethodGet, "/v1/users/verify", app.verifyUserHandler)

	router.HandlerFunc(http.MethodPost, "/v1/sessions", app.createSessionHandler)
	router.HandlerFunc(http.MethodDelete, "/v1/sessions", app.deleteSessionHandler)

	router.ServeFiles(postersURLPrefix+"/*filepath", filesOnly{http.Dir(app.config.posters.dir)})

	return app.recoverPanic(app.rateLimit(app.authenticate(router)))
}

// filesOnly hides directories so the poster store cannot be listed.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}

	return file, nil
}
