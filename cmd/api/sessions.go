package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/marcellovf/teste-lista-filmes/internal/data"
	"github.com/marcellovf/teste-lista-filmes/internal/validator"
)

const sessionCookieName = "session"

// startSession issues a session token for user and sets it as an HttpOnly cookie.
func (app *application) startSession(w http.ResponseWriter, user *data.User) error {
	token, expires, err := app.sessions.Issue(user.ID, user.Email, app.config.session.ttl)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   app.config.session.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

func (app *application) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   app.config.session.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// createSessionHandler signs a user in with their e-mail and password.
func (app *application) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()

	data.ValidateEmail(v, input.Email)
	data.ValidatePasswordPlaintext(v, input.Password)

	if !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	user, err := app.models.Users.GetByEmail(input.Email)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.invalidCredentialsResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	match, err := user.Password.Matches(input.Password)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	if !match {
		app.invalidCredentialsResponse(w, r)
		return
	}

	err = app.startSession(w, user)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"user": user}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// deleteSessionHandler signs the current user out by expiring the cookie.
func (app *application) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	app.clearSessionCookie(w)

	err := app.writeJSON(w, http.StatusOK, envelope{"message": "signed out"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
