package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jkurtz678/reddit-or-replicant/game"
)

const tableUsers = "users"

type UserRepository struct {
	db *sql.DB
}

var _ game.UserRepository = (*UserRepository)(nil)

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const (
	userFieldID        = "id"
	userFieldCreatedAt = "created_at"
)

func (repo *UserRepository) Insert(ctx context.Context, user *game.User) error {
	q := sq.Insert(tableUsers).
		Columns(userFieldID, userFieldCreatedAt).
		Values(user.ID, user.CreatedAt)

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec insert: %w", err)
	}

	return nil
}

func (repo *UserRepository) Find(ctx context.Context, userID string) (*game.User, error) {
	q := sq.Select(userFieldID, userFieldCreatedAt).
		From(tableUsers).
		Where(sq.Eq{userFieldID: userID})

	q = q.RunWith(repo.db)

	var user game.User

	err := q.QueryRowContext(ctx).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, game.UserNotFoundError{ID: userID}
		}

		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	return &user, nil
}
