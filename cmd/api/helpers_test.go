package main

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marcellovf/teste-lista-filmes/internal/validator"
)

func TestReadInt32(t *testing.T) {
	app := &application{}

	tests := []struct {
		name    string
		value   string
		want    int32
		wantErr bool
	}{
		{name: "absent", value: "", want: 7},
		{name: "valid", value: "1942", want: 1942},
		{name: "negative", value: "-5", want: -5},
		{name: "max int32", value: "2147483647", want: 2147483647},
		{name: "overflow", value: "2147483648", want: 7, wantErr: true},
		{name: "wraps to a valid year", value: "4294969096", want: 7, wantErr: true},
		{name: "not a number", value: "1942a", want: 7, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validator.New()
			values := url.Values{}
			if tt.value != "" {
				values.Set("year", tt.value)
			}

			got := app.readInt32(values, "year", 7, v)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantErr, !v.Valid())
		})
	}
}

func TestReadInt64(t *testing.T) {
	app := &application{}
	v := validator.New()

	assert.Equal(t, int64(237000000), app.readInt64(url.Values{"budget": {"237000000"}}, "budget", 0, v))
	assert.True(t, v.Valid())

	assert.Zero(t, app.readInt64(url.Values{"budget": {"lots"}}, "budget", 0, v))
	assert.Equal(t, "must be an integer value", v.Errors["budget"])
}
