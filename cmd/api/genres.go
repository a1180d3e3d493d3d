package main

import "net/http"

// listGenresHandler for the "GET /v1/genres" endpoint.
func (app *application) listGenresHandler(w http.ResponseWriter, r *http.Request) {
	genres, err := app.models.Genres.GetAll()
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"genres": genres}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
