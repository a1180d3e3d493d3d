package main

import (
	"context"
	"net/http"

	"github.com/marcellovf/teste-lista-filmes/internal/data"
)

type contextKey string

const userContextKey = contextKey("user")

// contextSetUser returns a copy of the request with the user stored in its context.
func (app *application) contextSetUser(r *http.Request, user *data.User) *http.Request {
	ctx := context.WithValue(r.Context(), userContextKey, user)
	return r.WithContext(ctx)
}

// contextGetUser is only called after authenticate has run, so a missing
// value is a programming error.
func (app *application) contextGetUser(r *http.Request) *data.User {
	user, ok := r.Context().Value(userContextKey).(*data.User)
	if !ok {
		panic("missing user value in request context")
	}

	return user
}
