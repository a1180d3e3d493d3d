package data

import (
	"database/sql"

	"github.com/lib/pq"
)

type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

type GenreModel struct {
	DB *sql.DB
}

// GetAll returns every genre ordered by name.
func (m GenreModel) GetAll() ([]Genre, error) {
	ctx, cancel := withTimeout()
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, `SELECT id, name FROM genres ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	genres := []Genre{}
	for rows.Next() {
		var g Genre
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		genres = append(genres, g)
	}

	return genres, rows.Err()
}

// AllExist reports whether every id refers to a stored genre. ids must be unique.
func (m GenreModel) AllExist(ids []int64) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}

	ctx, cancel := withTimeout()
	defer cancel()

	var count int
	err := m.DB.QueryRowContext(ctx, `SELECT count(*) FROM genres WHERE id = ANY($1)`, pq.Array(ids)).Scan(&count)
	if err != nil {
		return false, err
	}

	return count == len(ids), nil
}
