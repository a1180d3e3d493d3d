package data

import (
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/marcellovf/teste-lista-filmes/internal/validator"
)

var ErrDuplicateEmail = errors.New("duplicate email")

// AnonymousUser represents a request without a valid session.
var AnonymousUser = &User{}

type User struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  password  `json:"-"`
	Verified  bool      `json:"verified"`
	// Deadline for confirming the e-mail address, cleared once verified
	VerificationExpires *time.Time `json:"-"`
	Version             int        `json:"-"`
}

// IsAnonymous checks if a User instance is the AnonymousUser.
func (u *User) IsAnonymous() bool {
	return u == AnonymousUser
}

// VerificationExpired reports whether an unverified account missed its deadline.
func (u *User) VerificationExpired(now time.Time) bool {
	return !u.Verified && u.VerificationExpires != nil && now.After(*u.VerificationExpires)
}

// MarkVerified flips the account to verified and drops the deadline.
func (u *User) MarkVerified() {
	u.Verified = true
	u.VerificationExpires = nil
}

// password holds the plaintext only long enough to validate it.
type password struct {
	plaintext *string
	hash      []byte
}

const bcryptCost = 12

// Set calculates the bcrypt hash of a plaintext password and stores both.
func (p *password) Set(plaintextPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintextPassword), bcryptCost)
	if err != nil {
		return err
	}

	p.plaintext = &plaintextPassword
	p.hash = hash

	return nil
}

// Matches checks whether the plaintext password matches the stored hash.
func (p *password) Matches(plaintextPassword string) (bool, error) {
	err := bcrypt.CompareHashAndPassword(p.hash, []byte(plaintextPassword))
	if err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, err
		}
	}

	return true, nil
}

func ValidateEmail(v *validator.Validator, email string) {
	v.Check(email != "", "email", "must be provided")
	v.Check(validator.Matches(email, validator.EmailRX), "email", "must be a valid email address")
}

func ValidatePasswordPlaintext(v *validator.Validator, password string) {
	v.Check(password != "", "password", "must be provided")
	v.Check(len(password) >= 6, "password", "must be at least 6 bytes long")
	v.Check(len(password) <= 72, "password", "must not be more than 72 bytes long")
}

func ValidateUser(v *validator.Validator, user *User) {
	v.Check(user.Name != "", "name", "must be provided")
	v.Check(len(user.Name) >= 2, "name", "must be at least 2 bytes long")
	v.Check(len(user.Name) <= 500, "name", "must not be more than 500 bytes long")

	ValidateEmail(v, user.Email)

	if user.Password.plaintext != nil {
		ValidatePasswordPlaintext(v, *user.Password.plaintext)
	}

	// A missing hash means the handler forgot to call Set.
	if user.Password.hash == nil {
		panic("missing password hash for user")
	}
}

type UserModel struct {
	DB *sql.DB
}

const duplicateEmailViolation = `pq: duplicate key value violates unique constraint "users_email_key"`

// Insert stores a new user, reporting ErrDuplicateEmail when the address is taken.
func (m UserModel) Insert(user *User) error {
	query := `
		INSERT INTO users (name, email, password_hash, verified, verification_expires)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, version`

	args := []any{user.Name, user.Email, user.Password.hash, user.Verified, user.VerificationExpires}

	ctx, cancel := withTimeout()
	defer cancel()

	err := m.DB.QueryRowContext(ctx, query, args...).Scan(&user.ID, &user.CreatedAt, &user.Version)
	if err != nil {
		switch {
		case err.Error() == duplicateEmailViolation:
			return ErrDuplicateEmail
		default:
			return err
		}
	}

	return nil
}

const userColumns = `id, created_at, name, email, password_hash, verified, verification_expires, version`

func scanUser(row rowScanner) (*User, error) {
	var (
		user    User
		expires sql.NullTime
	)

	err := row.Scan(
		&user.ID,
		&user.CreatedAt,
		&user.Name,
		&user.Email,
		&user.Password.hash,
		&user.Verified,
		&expires,
		&user.Version,
	)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	if expires.Valid {
		user.VerificationExpires = &expires.Time
	}

	return &user, nil
}

func (m UserModel) Get(id int64) (*User, error) {
	ctx, cancel := withTimeout()
	defer cancel()

	return scanUser(m.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (m UserModel) GetByEmail(email string) (*User, error) {
	ctx, cancel := withTimeout()
	defer cancel()

	return scanUser(m.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// Update saves the user with optimistic locking on version.
func (m UserModel) Update(user *User) error {
	query := `
		UPDATE users
		SET name = $1, email = $2, password_hash = $3, verified = $4, verification_expires = $5, version = version + 1
		WHERE id = $6 AND version = $7
		RETURNING version`

	args := []any{
		user.Name,
		user.Email,
		user.Password.hash,
		user.Verified,
		user.VerificationExpires,
		user.ID,
		user.Version,
	}

	ctx, cancel := withTimeout()
	defer cancel()

	err := m.DB.QueryRowContext(ctx, query, args...).Scan(&user.Version)
	if err != nil {
		switch {
		case err.Error() == duplicateEmailViolation:
			return ErrDuplicateEmail
		case errors.Is(err, sql.ErrNoRows):
			return ErrEditConflict
		default:
			return err
		}
	}

	return nil
}

// Delete removes the account. Movies it added keep existing with added_by set to NULL.
func (m UserModel) Delete(id int64) error {
	ctx, cancel := withTimeout()
	defer cancel()

	result, err := m.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
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
