package sqlite3

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/jkurtz678/reddit-or-replicant/game"
)

const tableGuesses = "guesses"

type GuessRepository struct {
	db *sql.DB
}

var _ game.GuessRepository = (*GuessRepository)(nil)

func NewGuessRepository(db *sql.DB) *GuessRepository {
	return &GuessRepository{db: db}
}

const (
	guessFieldID             = "id"
	guessFieldUserID         = "user_id"
	guessFieldPostID         = "post_id"
	guessFieldCommentID      = "comment_id"
	guessFieldGuess          = "guess"
	guessFieldIsCorrect      = "is_correct"
	guessFieldFlaggedObvious = "flagged_obvious"
	guessFieldGuessedAt      = "guessed_at"
)

func guessColumns() []string {
	return []string{
		guessFieldID,
		guessFieldUserID,
		guessFieldPostID,
		guessFieldCommentID,
		guessFieldGuess,
		guessFieldIsCorrect,
		guessFieldFlaggedObvious,
		guessFieldGuessedAt,
	}
}

func scanGuess(row sq.RowScanner) (*game.Guess, error) {
	var guess game.Guess

	err := row.Scan(
		&guess.ID,
		&guess.UserID,
		&guess.PostID,
		&guess.CommentID,
		&guess.Guess,
		&guess.IsCorrect,
		&guess.FlaggedObvious,
		&guess.GuessedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &guess, nil
}

// Upsert stores a guess, replacing any previous guess by the same user on
// the same comment.
func (repo *GuessRepository) Upsert(ctx context.Context, guess *game.Guess) error {
	q := sq.Insert(tableGuesses).
		Columns(guessColumns()...).
		Values(
			guess.ID,
			guess.UserID,
			guess.PostID,
			guess.CommentID,
			guess.Guess,
			guess.IsCorrect,
			guess.FlaggedObvious,
			guess.GuessedAt,
		).
		Suffix(fmt.Sprintf(
			"ON CONFLICT (%s, %s, %s) DO UPDATE SET %s = excluded.%s, %s = excluded.%s, %s = excluded.%s",
			guessFieldUserID, guessFieldPostID, guessFieldCommentID,
			guessFieldGuess, guessFieldGuess,
			guessFieldIsCorrect, guessFieldIsCorrect,
			guessFieldGuessedAt, guessFieldGuessedAt,
		))

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec upsert: %w", err)
	}

	return nil
}

func (repo *GuessRepository) list(ctx context.Context, where sq.Eq) ([]*game.Guess, error) {
	q := sq.Select(guessColumns()...).
		From(tableGuesses).
		Where(where).
		OrderBy(guessFieldGuessedAt + " ASC")

	q = q.RunWith(repo.db)

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			slog.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	guesses := make([]*game.Guess, 0)

	for rows.Next() {
		guess, err := scanGuess(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan guess: %w", err)
		}

		guesses = append(guesses, guess)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return guesses, nil
}

func (repo *GuessRepository) ListByUserAndPost(ctx context.Context, userID, postID string) ([]*game.Guess, error) {
	return repo.list(ctx, sq.Eq{guessFieldUserID: userID, guessFieldPostID: postID})
}

func (repo *GuessRepository) ListByUser(ctx context.Context, userID string) ([]*game.Guess, error) {
	return repo.list(ctx, sq.Eq{guessFieldUserID: userID})
}

func (repo *GuessRepository) DeleteByUserAndPost(ctx context.Context, userID, postID string) error {
	q := sq.Delete(tableGuesses).
		Where(sq.Eq{guessFieldUserID: userID, guessFieldPostID: postID})

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec delete: %w", err)
	}

	return nil
}

func (repo *GuessRepository) SetFlaggedObvious(ctx context.Context, userID, postID, commentID string) error {
	q := sq.Update(tableGuesses).
		Set(guessFieldFlaggedObvious, true).
		Where(sq.Eq{
			guessFieldUserID:    userID,
			guessFieldPostID:    postID,
			guessFieldCommentID: commentID,
		})

	q = q.RunWith(repo.db)

	result, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec update: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return game.GuessNotFoundError{UserID: userID, PostID: postID, CommentID: commentID}
	}

	return nil
}

func (repo *GuessRepository) Stats(ctx context.Context) (*game.GuessStats, error) {
	q := sq.Select(
		"COUNT(*)",
		fmt.Sprintf("COALESCE(SUM(%s), 0)", guessFieldIsCorrect),
	).From(tableGuesses)

	q = q.RunWith(repo.db)

	var stats game.GuessStats

	err := q.QueryRowContext(ctx).Scan(&stats.TotalGuesses, &stats.CorrectGuesses)
	if err != nil {
		return nil, fmt.Errorf("failed to scan stats: %w", err)
	}

	if stats.TotalGuesses > 0 {
		stats.Accuracy = float64(stats.CorrectGuesses) / float64(stats.TotalGuesses)
	}

	return &stats, nil
}
