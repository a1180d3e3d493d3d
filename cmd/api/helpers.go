package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/marcellovf/teste-lista-filmes/internal/data"
	"github.com/marcellovf/teste-lista-filmes/internal/validator"
)

// envelope wraps every JSON response body.
type envelope map[string]any

// readIDParam returns the positive "id" URL parameter of the current request.
func (app *application) readIDParam(r *http.Request) (int64, error) {
	params := httprouter.ParamsFromContext(r.Context())

	id, err := strconv.ParseInt(params.ByName("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid id parameter")
	}

	return id, nil
}

func (app *application) writeJSON(w http.ResponseWriter, status int, data envelope, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}

	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(js)

	return nil
}

// readJSON decodes a single JSON value from the request body into dst and
// turns decoder failures into messages that are safe to show to clients.
func (app *application) readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	maxBytes := 1_048_576
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)

		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")

		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)

		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")

		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)

		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytesError.Limit)

		// dst must be a non-nil pointer; anything else is a bug in the handler.
		case errors.As(err, &invalidUnmarshalError):
			panic(err)

		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

// readString returns the value for key, or defaultValue when it is absent.
func (app *application) readString(values url.Values, key string, defaultValue string) string {
	s := values.Get(key)

	if s == "" {
		return defaultValue
	}

	return s
}

// readInt parses the value for key as an integer. A malformed value is
// recorded in v and defaultValue returned.
func (app *application) readInt(values url.Values, key string, defaultValue int, v *validator.Validator) int {
	s := values.Get(key)

	if s == "" {
		return defaultValue
	}

	i, err := strconv.Atoi(s)
	if err != nil {
		v.AddError(key, "must be an integer value")
		return defaultValue
	}

	return i
}

// readInt32 is readInt for int32 fields. Values that do not fit in an int32
// are recorded in v instead of being truncated.
func (app *application) readInt32(values url.Values, key string, defaultValue int32, v *validator.Validator) int32 {
	s := values.Get(key)

	if s == "" {
		return defaultValue
	}

	i, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		v.AddError(key, "must be an integer value")
		return defaultValue
	}

	return int32(i)
}

func (app *application) readInt64(values url.Values, key string, defaultValue int64, v *validator.Validator) int64 {
	s := values.Get(key)

	if s == "" {
		return defaultValue
	}

	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		v.AddError(key, "must be an integer value")
		return defaultValue
	}

	return i
}

// readDate parses the value for key with data.DateLayout. Absent or
// malformed values yield the zero time; malformed ones are recorded in v.
func (app *application) readDate(values url.Values, key string, v *validator.Validator) time.Time {
	s := values.Get(key)

	if s == "" {
		return time.Time{}
	}

	t, err := time.Parse(data.DateLayout, s)
	if err != nil {
		v.AddError(key, "must be a date in YYYY-MM-DD format")
		return time.Time{}
	}

	return t
}

// readGenres turns genre ids into Genre values, recording malformed ids in v.
func (app *application) readGenres(ids []string, v *validator.Validator) []data.Genre {
	genres := make([]data.Genre, 0, len(ids))

	for _, s := range ids {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id < 1 {
			v.AddError("genres", "must contain positive integer ids")
			continue
		}
		genres = append(genres, data.Genre{ID: id})
	}

	return genres
}

// background runs fn in a goroutine tracked by app.wg so graceful shutdown
// waits for it. A panic in fn is logged instead of crashing the process.
func (app *application) background(fn func()) {
	app.wg.Add(1)

	go func() {
		defer app.wg.Done()

		defer func() {
			if err := recover(); err != nil {
				app.logger.PrintError(fmt.Errorf("%s", err), nil)
			}
		}()

		fn()
	}()
}
