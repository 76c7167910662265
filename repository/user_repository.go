package repository

import (
	"context"
	"errors"
	"fmt"

	"courtside/database"
	"courtside/domain/entities"

	"github.com/jackc/pgx/v5"
)

// UserRepository implements interfaces.UserRepository on Postgres
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

const userColumns = `id, display_name, balance, role, credential_ref, active, created_at, updated_at`

func scanUser(row pgx.Row) (*entities.User, error) {
	var user entities.User
	err := row.Scan(
		&user.ID,
		&user.DisplayName,
		&user.Balance,
		&user.Role,
		&user.CredentialRef,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByID retrieves a user, returning nil if none exists
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return user, nil
}

// Create inserts a user with a zero balance
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	if user.Balance != 0 {
		return errors.New("users start with a zero balance")
	}

	query := `
		INSERT INTO users (id, display_name, balance, role, credential_ref, active)
		VALUES ($1, $2, 0, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		user.ID,
		user.DisplayName,
		user.Role,
		user.CredentialRef,
		user.Active,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err, "users_pkey") {
		return fmt.Errorf("user %s already exists", user.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.ID, err)
	}
	return nil
}

// GetAll returns all users ordered by id
func (r *UserRepository) GetAll(ctx context.Context) ([]*entities.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
}

// GetBelowBalance returns active users whose balance is below threshold
func (r *UserRepository) GetBelowBalance(ctx context.Context, threshold int64) ([]*entities.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE active AND balance < $1 ORDER BY balance, id`, threshold)
}

// SetActive activates or deactivates a user
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.q.Exec(ctx, `UPDATE users SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) list(ctx context.Context, query string, args ...any) ([]*entities.User, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*entities.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}
