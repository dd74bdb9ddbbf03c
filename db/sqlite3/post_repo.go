package sqlite3

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jkurtz678/reddit-or-replicant/game"
	"github.com/jkurtz678/reddit-or-replicant/reddit"
)

const tablePosts = "posts"

type PostRepository struct {
	db *sql.DB
}

var _ game.PostRepository = (*PostRepository)(nil)

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

const (
	postFieldID         = "id"
	postFieldRedditURL  = "reddit_url"
	postFieldTitle      = "title"
	postFieldSubreddit  = "subreddit"
	postFieldRoundJSON  = "round_json"
	postFieldAICount    = "ai_count"
	postFieldTotalCount = "total_count"
	postFieldCreatedAt  = "created_at"
	postFieldDeletedAt  = "deleted_at"
)

func postColumns() []string {
	return []string{
		postFieldID,
		postFieldRedditURL,
		postFieldTitle,
		postFieldSubreddit,
		postFieldRoundJSON,
		postFieldAICount,
		postFieldTotalCount,
		postFieldCreatedAt,
		postFieldDeletedAt,
	}
}

func scanPost(row sq.RowScanner) (*game.Post, error) {
	var (
		post      game.Post
		roundJSON string
	)

	err := row.Scan(
		&post.ID,
		&post.RedditURL,
		&post.Title,
		&post.Subreddit,
		&roundJSON,
		&post.AICount,
		&post.TotalCount,
		&post.CreatedAt,
		&post.DeletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	var round reddit.Thread

	err = json.Unmarshal([]byte(roundJSON), &round)
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored round: %w", err)
	}

	post.Round = &round

	return &post, nil
}

func marshalRound(post *game.Post) (string, error) {
	roundJSON, err := json.Marshal(post.Round)
	if err != nil {
		return "", fmt.Errorf("failed to encode round: %w", err)
	}

	return string(roundJSON), nil
}

func (repo *PostRepository) Insert(ctx context.Context, post *game.Post) error {
	roundJSON, err := marshalRound(post)
	if err != nil {
		return err
	}

	q := sq.Insert(tablePosts).
		Columns(postColumns()...).
		Values(
			post.ID,
			post.RedditURL,
			post.Title,
			post.Subreddit,
			roundJSON,
			post.AICount,
			post.TotalCount,
			post.CreatedAt,
			post.DeletedAt,
		)

	q = q.RunWith(repo.db)

	_, err = q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec insert: %w", err)
	}

	return nil
}

// Update replaces the whole stored round in one statement, so an overwrite
// submission is atomic from a reader's perspective.
func (repo *PostRepository) Update(ctx context.Context, post *game.Post) error {
	roundJSON, err := marshalRound(post)
	if err != nil {
		return err
	}

	q := sq.Update(tablePosts).
		Set(postFieldTitle, post.Title).
		Set(postFieldSubreddit, post.Subreddit).
		Set(postFieldRoundJSON, roundJSON).
		Set(postFieldAICount, post.AICount).
		Set(postFieldTotalCount, post.TotalCount).
		Where(sq.Eq{postFieldID: post.ID})

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
		return game.PostNotFoundError{ID: post.ID}
	}

	return nil
}

func (repo *PostRepository) Find(ctx context.Context, postID string) (*game.Post, error) {
	q := sq.Select(postColumns()...).
		From(tablePosts).
		Where(sq.Eq{postFieldID: postID})

	q = q.RunWith(repo.db)

	row := q.QueryRowContext(ctx)

	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, game.PostNotFoundError{ID: postID}
		}

		return nil, fmt.Errorf("failed to scan post: %w", err)
	}

	return post, nil
}

func (repo *PostRepository) FindByURL(ctx context.Context, redditURL string) (*game.Post, error) {
	q := sq.Select(postColumns()...).
		From(tablePosts).
		Where(sq.Eq{postFieldRedditURL: redditURL})

	q = q.RunWith(repo.db)

	row := q.QueryRowContext(ctx)

	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, game.PostByURLNotFoundError{URL: redditURL}
		}

		return nil, fmt.Errorf("failed to scan post: %w", err)
	}

	return post, nil
}

func (repo *PostRepository) List(ctx context.Context, params *game.ListPostsParams) ([]*game.PostSummary, error) {
	q := sq.Select(
		postFieldID,
		postFieldRedditURL,
		postFieldTitle,
		postFieldSubreddit,
		postFieldAICount,
		postFieldTotalCount,
		postFieldCreatedAt,
		postFieldDeletedAt,
	).
		From(tablePosts).
		OrderBy(postFieldCreatedAt + " DESC")

	if params.Subreddit != "" {
		q = q.Where(sq.Eq{postFieldSubreddit: params.Subreddit})
	}

	if !params.IncludeDeleted {
		q = q.Where(sq.Eq{postFieldDeletedAt: nil})
	}

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

	summaries := make([]*game.PostSummary, 0)

	for rows.Next() {
		var (
			summary   game.PostSummary
			deletedAt *time.Time
		)

		err := rows.Scan(
			&summary.ID,
			&summary.RedditURL,
			&summary.Title,
			&summary.Subreddit,
			&summary.AICount,
			&summary.TotalCount,
			&summary.CreatedAt,
			&deletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post summary: %w", err)
		}

		summary.Deleted = deletedAt != nil
		summaries = append(summaries, &summary)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return summaries, nil
}

func (repo *PostRepository) SoftDelete(ctx context.Context, postID string) error {
	q := sq.Update(tablePosts).
		Set(postFieldDeletedAt, time.Now()).
		Where(sq.Eq{postFieldID: postID, postFieldDeletedAt: nil})

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
		return game.PostNotFoundError{ID: postID}
	}

	return nil
}

func (repo *PostRepository) Restore(ctx context.Context, postID string) error {
	q := sq.Update(tablePosts).
		Set(postFieldDeletedAt, nil).
		Where(sq.Eq{postFieldID: postID}).
		Where(sq.NotEq{postFieldDeletedAt: nil})

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
		return game.PostNotFoundError{ID: postID}
	}

	return nil
}
