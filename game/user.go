package game

import (
	"context"
	"fmt"
	"time"
)

// User is an anonymous player identified only by a server-issued id held in
// the client session.
type User struct {
	ID        string
	CreatedAt time.Time
}

type UserRepository interface {
	Insert(ctx context.Context, user *User) (err error)
	Find(ctx context.Context, userID string) (user *User, err error)
}

type UserNotFoundError struct {
	ID string
}

func (err UserNotFoundError) Error() string {
	return fmt.Sprintf("user with id %q not found", err.ID)
}

// Guess records one call a player made on one comment. A player can re-guess
// the same comment; the latest guess wins.
type Guess struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	PostID         string    `json:"post_id"`
	CommentID      string    `json:"comment_id"`
	Guess          string    `json:"guess"`
	IsCorrect      bool      `json:"is_correct"`
	FlaggedObvious bool      `json:"flagged_obvious"`
	GuessedAt      time.Time `json:"guessed_at"`
}

type GuessStats struct {
	TotalGuesses   int     `json:"total_guesses"`
	CorrectGuesses int     `json:"correct_guesses"`
	Accuracy       float64 `json:"accuracy"`
}

type GuessRepository interface {
	Upsert(ctx context.Context, guess *Guess) (err error)
	ListByUserAndPost(ctx context.Context, userID, postID string) (guesses []*Guess, err error)
	ListByUser(ctx context.Context, userID string) (guesses []*Guess, err error)
	DeleteByUserAndPost(ctx context.Context, userID, postID string) (err error)
	SetFlaggedObvious(ctx context.Context, userID, postID, commentID string) (err error)
	Stats(ctx context.Context) (stats *GuessStats, err error)
}

type GuessNotFoundError struct {
	UserID    string
	PostID    string
	CommentID string
}

func (err GuessNotFoundError) Error() string {
	return fmt.Sprintf("no guess by user %q on comment %q of post %q", err.UserID, err.CommentID, err.PostID)
}
