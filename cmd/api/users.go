package main

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/marcellovf/teste-lista-filmes/internal/data"
	"github.com/marcellovf/teste-lista-filmes/internal/session"
	"github.com/marcellovf/teste-lista-filmes/internal/validator"
)

const verificationTemplate = "user_verification.tmpl"

// registerUserHandler creates an unverified account and e-mails the
// verification link in the background.
func (app *application) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ttl := app.config.session.verificationTTL
	expires := time.Now().Add(ttl)

	user := &data.User{
		Name:                input.Name,
		Email:               input.Email,
		Verified:            false,
		VerificationExpires: &expires,
	}

	err = user.Password.Set(input.Password)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	v := validator.New()

	if data.ValidateUser(v, user); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Users.Insert(user)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrDuplicateEmail):
			v.AddError("email", "a user with this email address already exists")
			app.failedValidationResponse(w, r, v.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	token, err := app.sessions.IssueVerification(user.Email, ttl)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	app.background(func() {
		vars := map[string]any{
			"Name":            user.Name,
			"VerificationURL": app.config.baseURL + "/v1/users/verify?token=" + url.QueryEscape(token),
			"ExpiresIn":       ttl.String(),
		}

		err := app.mailer.Send(user.Email, verificationTemplate, vars)
		if err != nil {
			app.logger.PrintError(err, map[string]string{
				"user_id": strconv.FormatInt(user.ID, 10),
			})
		}
	})

	err = app.writeJSON(w, http.StatusCreated, envelope{"user": user}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// verifyUserHandler confirms the e-mail address named by the token. Accounts
// that missed their deadline are deleted so the address can register again.
func (app *application) verifyUserHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		app.badRequestResponse(w, r, errors.New("missing verification token"))
		return
	}

	email, err := app.sessions.ParseVerification(token)
	tokenExpired := errors.Is(err, session.ErrExpiredToken)
	if err != nil && !tokenExpired {
		app.badRequestResponse(w, r, errors.New("invalid verification token"))
		return
	}

	user, err := app.models.Users.GetByEmail(email)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	if user.Verified {
		app.badRequestResponse(w, r, errors.New("email address already verified"))
		return
	}

	if tokenExpired || user.VerificationExpired(time.Now()) {
		// Only an account past its own deadline is removed.
		if user.VerificationExpired(time.Now()) {
			err = app.models.Users.Delete(user.ID)
			if err != nil && !errors.Is(err, data.ErrRecordNotFound) {
				app.serverErrorResponse(w, r, err)
				return
			}
		}

		app.badRequestResponse(w, r, errors.New("verification link expired, please register again"))
		return
	}

	user.MarkVerified()

	err = app.models.Users.Update(user)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrEditConflict):
			app.editConflictResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"user": user}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
