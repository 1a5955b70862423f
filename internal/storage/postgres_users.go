package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const userColumns = `id, email, username, password_hash, role, created_at, updated_at`

// PostgresUserStore persists users in the users table.
type PostgresUserStore struct {
	conn *Connection
}

// NewPostgresUserStore creates a user store over conn.
func NewPostgresUserStore(conn *Connection) *PostgresUserStore {
	return &PostgresUserStore{conn: conn}
}

// Create inserts user with a new id.
func (s *PostgresUserStore) Create(ctx context.Context, user *User) (*User, error) {
	query := `
		INSERT INTO users (id, email, username, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns

	row := s.conn.QueryRowContext(ctx, query,
		uuid.NewString(), user.Email, user.Username, user.PasswordHash, string(user.Role))

	created, err := scanUser(row)
	if err != nil {
		return nil, translate(err, "create user")
	}

	return created, nil
}

// Get returns the user with id.
func (s *PostgresUserStore) Get(ctx context.Context, id string) (*User, error) {
	if !validID(id) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	row := s.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	user, err := scanUser(row)
	if err != nil {
		return nil, translate(err, "get user")
	}

	return user, nil
}

// GetByEmail returns the user whose email matches case-insensitively.
func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)

	user, err := scanUser(row)
	if err != nil {
		return nil, translate(err, "get user by email")
	}

	return user, nil
}

// List returns every user ordered by creation time.
func (s *PostgresUserStore) List(ctx context.Context) ([]*User, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, translate(err, "list users")
	}

	defer func() {
		_ = rows.Close()
	}()

	var users []*User

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, translate(err, "scan user")
		}

		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, translate(err, "list users")
	}

	return users, nil
}

// Update applies patch to the user with id.
func (s *PostgresUserStore) Update(ctx context.Context, id string, patch UserPatch) (*User, error) {
	if !validID(id) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	var set setClause

	if patch.Email != nil {
		set.add("email", *patch.Email)
	}

	if patch.Username != nil {
		set.add("username", *patch.Username)
	}

	if patch.PasswordHash != nil {
		set.add("password_hash", *patch.PasswordHash)
	}

	if patch.Role != nil {
		set.add("role", string(*patch.Role))
	}

	if set.empty() {
		return s.Get(ctx, id)
	}

	set.raw("updated_at = NOW()")

	args := append(set.args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`, set.String(), len(args), userColumns)

	user, err := scanUser(s.conn.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, translate(err, "update user")
	}

	return user, nil
}

// Delete removes the user with id. Their sessions go with them.
func (s *PostgresUserStore) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	result, err := s.conn.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete user")
	}

	return affectedOrNotFound(result, "delete user")
}

func scanUser(row rowScanner) (*User, error) {
	var (
		user User
		role string
	)

	if err := row.Scan(&user.ID, &user.Email, &user.Username, &user.PasswordHash, &role,
		&user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}

	user.Role = Role(role)

	return &user, nil
}
