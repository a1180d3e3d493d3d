package data

import (
	"context"
	"database/sql"
	"time"
)

// MovieRelease is the view of a movie that the release notifier works on.
type MovieRelease struct {
	ID          int64
	Title       string
	ReleaseDate time.Time
	Notified    bool
	// Address of the user who added the movie; nil when the movie has no
	// submitter or the submitter has no e-mail on file.
	SubmitterEmail *string
}

// ReleaseModel holds the queries behind release notifications.
type ReleaseModel struct {
	DB *sql.DB
}

// GetDue returns every movie released at or before now that has not been
// notified yet, with the submitter's e-mail joined in.
func (m ReleaseModel) GetDue(ctx context.Context, now time.Time) ([]*MovieRelease, error) {
	query := `
		SELECT m.id, m.title, m.release_date, m.notified, u.email
		FROM movies m
		LEFT JOIN users u ON u.id = m.added_by
		WHERE m.release_date <= $1 AND m.notified = false
		ORDER BY m.release_date ASC, m.id ASC`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := m.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	releases := []*MovieRelease{}
	for rows.Next() {
		var (
			r     MovieRelease
			email sql.NullString
		)

		if err := rows.Scan(&r.ID, &r.Title, &r.ReleaseDate, &r.Notified, &email); err != nil {
			return nil, err
		}
		if email.Valid && email.String != "" {
			r.SubmitterEmail = &email.String
		}
		releases = append(releases, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return releases, nil
}

// MarkNotified sets the notified flag of one movie. It is a plain field write:
// the movie's version is left alone so concurrent edits are not disturbed.
func (m ReleaseModel) MarkNotified(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := m.DB.ExecContext(ctx, `UPDATE movies SET notified = true WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}
