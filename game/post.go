package game

import (
	"context"
	"fmt"
	"time"

	"github.com/jkurtz678/reddit-or-replicant/reddit"
)

// Post is a stored game round: the assembled mixed tree plus bookkeeping.
// Once written it is served read-only; an overwrite submission replaces the
// whole row.
type Post struct {
	ID         string
	RedditURL  string
	Title      string
	Subreddit  string
	Round      *reddit.Thread
	AICount    int
	TotalCount int
	CreatedAt  time.Time
	DeletedAt  *time.Time
}

type PostSummary struct {
	ID         string    `json:"id"`
	RedditURL  string    `json:"reddit_url"`
	Title      string    `json:"title"`
	Subreddit  string    `json:"subreddit"`
	AICount    int       `json:"ai_count"`
	TotalCount int       `json:"total_count"`
	CreatedAt  time.Time `json:"created_at"`
	Deleted    bool      `json:"deleted"`
}

type ListPostsParams struct {
	Subreddit      string
	IncludeDeleted bool
}

type PostRepository interface {
	Insert(ctx context.Context, post *Post) (err error)
	Update(ctx context.Context, post *Post) (err error)
	Find(ctx context.Context, postID string) (post *Post, err error)
	FindByURL(ctx context.Context, redditURL string) (post *Post, err error)
	List(ctx context.Context, params *ListPostsParams) (posts []*PostSummary, err error)
	SoftDelete(ctx context.Context, postID string) (err error)
	Restore(ctx context.Context, postID string) (err error)
}

type PostNotFoundError struct {
	ID string
}

func (err PostNotFoundError) Error() string {
	return fmt.Sprintf("post with id %q not found", err.ID)
}

type PostByURLNotFoundError struct {
	URL string
}

func (err PostByURLNotFoundError) Error() string {
	return fmt.Sprintf("post with url %q not found", err.URL)
}

type PostAlreadyExistsError struct {
	URL string
}

func (err PostAlreadyExistsError) Error() string {
	return fmt.Sprintf("post with url %q has already been processed", err.URL)
}

type CommentNotFoundError struct {
	PostID    string
	CommentID string
}

func (err CommentNotFoundError) Error() string {
	return fmt.Sprintf("comment %q not found in post %q", err.CommentID, err.PostID)
}
