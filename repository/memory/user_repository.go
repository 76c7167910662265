package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"courtside/domain/entities"
)

// UserRepository implements interfaces.UserRepository in memory
type UserRepository struct {
	store *Store
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	user, ok := r.store.users[id]
	if !ok {
		return nil, nil
	}
	return copyUser(user), nil
}

func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	if user.Balance != 0 {
		return errors.New("users start with a zero balance")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.users[user.ID]; exists {
		return fmt.Errorf("user %s already exists", user.ID)
	}

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.store.users[user.ID] = copyUser(user)
	return nil
}

func (r *UserRepository) GetAll(ctx context.Context) ([]*entities.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	users := make([]*entities.User, 0, len(r.store.users))
	for _, user := range r.store.users {
		users = append(users, copyUser(user))
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (r *UserRepository) GetBelowBalance(ctx context.Context, threshold int64) ([]*entities.User, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var users []*entities.User
	for _, user := range all {
		if user.Active && user.IsBelow(threshold) {
			users = append(users, user)
		}
	}
	return users, nil
}

func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.users[id]
	if !ok {
		return entities.ErrUserNotFound
	}
	user.Active = active
	user.UpdatedAt = time.Now()
	return nil
}
