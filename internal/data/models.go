package data

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	// ErrRecordNotFound is returned when looking up a record that doesn't exist in our database.
	ErrRecordNotFound = errors.New("record not found")
	ErrEditConflict   = errors.New("edit conflict")
)

// queryTimeout bounds every statement issued by the models.
const queryTimeout = 3 * time.Second

// Models is 'container' which can hold and respresent all your database models
type Models struct {
	Movies interface {
		Insert(movie *Movie) error
		Get(id int64) (*Movie, error)
		GetAll(query MovieQuery) ([]*Movie, Metadata, error)
		Update(movie *Movie) error
		Delete(id int64) error
	}
	Users interface {
		Insert(user *User) error
		Get(id int64) (*User, error)
		GetByEmail(email string) (*User, error)
		Update(user *User) error
		Delete(id int64) error
	}
	Genres interface {
		GetAll() ([]Genre, error)
		AllExist(ids []int64) (bool, error)
	}
	Releases ReleaseModel
}

// NewModels return a Models struct
func NewModels(db *sql.DB) Models {
	return Models{
		Movies:   MovieModel{DB: db},
		Users:    UserModel{DB: db},
		Genres:   GenreModel{DB: db},
		Releases: ReleaseModel{DB: db},
	}
}

func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), queryTimeout)
}
