// Package game is the application service: it runs the submission pipeline
// (fetch, parse, select, anonymize, generate, mix, persist) and serves
// assembled rounds and player guesses.
package game

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jkurtz678/reddit-or-replicant/mixer"
	"github.com/jkurtz678/reddit-or-replicant/reddit"
)

// maxRedditComments caps how much of the source thread survives
// representative selection before mixing.
const maxRedditComments = 12

const (
	GuessReddit    = "reddit"
	GuessReplicant = "replicant"
)

var ErrInvalidGuess = errors.New(`guess must be "reddit" or "replicant"`)

// ThreadFetcher retrieves and parses a Reddit thread. *reddit.Fetcher is the
// production implementation.
type ThreadFetcher interface {
	FetchThread(ctx context.Context, url string) (*reddit.Thread, error)
}

// GeneratorFactory builds a fresh generator per submission, bound to the
// submission's rng. One generator never serves two posts.
type GeneratorFactory func(rng *rand.Rand) mixer.Generator

type Service struct {
	fetcher      ThreadFetcher
	newGenerator GeneratorFactory
	postRepo     PostRepository
	userRepo     UserRepository
	guessRepo    GuessRepository
}

func NewService(
	fetcher ThreadFetcher,
	newGenerator GeneratorFactory,
	postRepo PostRepository,
	userRepo UserRepository,
	guessRepo GuessRepository,
) *Service {
	return &Service{
		fetcher:      fetcher,
		newGenerator: newGenerator,
		postRepo:     postRepo,
		userRepo:     userRepo,
		guessRepo:    guessRepo,
	}
}

type SubmitRequest struct {
	URL       string
	Overwrite bool
}

// Submit runs the whole pipeline for one Reddit URL and persists the
// assembled round. Nothing is persisted on failure, so a stored post always
// satisfies the 8/8 balance.
func (svc *Service) Submit(ctx context.Context, req SubmitRequest) (*Post, error) {
	normalizedURL, err := reddit.NormalizeURL(req.URL)
	if err != nil {
		return nil, err
	}

	existing, err := svc.postRepo.FindByURL(ctx, normalizedURL)
	if err != nil {
		var notFoundErr PostByURLNotFoundError
		if !errors.As(err, &notFoundErr) {
			return nil, fmt.Errorf("failed to check for existing post: %w", err)
		}

		existing = nil
	}

	if existing != nil && !req.Overwrite {
		return nil, PostAlreadyExistsError{URL: normalizedURL}
	}

	thread, err := svc.fetcher.FetchThread(ctx, normalizedURL)
	if err != nil {
		return nil, err
	}

	// Seeding from the Reddit post id makes selection, anonymization, and
	// assembly reproducible for a given source thread.
	rng := rand.New(rand.NewSource(seedFor(thread.Post.ID)))

	selected := reddit.SelectRepresentative(rng, thread.Comments, maxRedditComments)
	thread.Comments = selected
	reddit.AnonymizeAuthors(rng, thread)

	mixed, err := mixer.New(svc.newGenerator(rng)).Mix(ctx, rng, thread.Post, thread.Comments)
	if err != nil {
		return nil, err
	}

	total := reddit.Count(mixed)
	aiCount := mixer.CountSynthetic(mixed)

	thread.Comments = mixed
	thread.Post.CommentCount = total

	post := &Post{
		ID:         uuid.NewString(),
		RedditURL:  normalizedURL,
		Title:      thread.Post.Title,
		Subreddit:  thread.Post.Subreddit,
		Round:      thread,
		AICount:    aiCount,
		TotalCount: total,
		CreatedAt:  time.Now(),
	}

	if existing != nil {
		post.ID = existing.ID
		post.CreatedAt = existing.CreatedAt

		err = svc.postRepo.Update(ctx, post)
		if err != nil {
			return nil, fmt.Errorf("failed to overwrite post: %w", err)
		}
	} else {
		err = svc.postRepo.Insert(ctx, post)
		if err != nil {
			return nil, fmt.Errorf("failed to save post: %w", err)
		}
	}

	slog.InfoContext(ctx, "assembled post",
		"post_id", post.ID,
		"subreddit", post.Subreddit,
		"total_comments", total,
		"ai_comments", aiCount,
		"overwrite", existing != nil,
	)

	return post, nil
}

// GetPost returns the stored round verbatim, synthetic flags included. The
// client is responsible for hiding them until a guess is made. The stored
// JSON is served as-is, so ids and labels never drift across reads.
func (svc *Service) GetPost(ctx context.Context, postID string) (*Post, error) {
	post, err := svc.postRepo.Find(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}

	return post, nil
}

func (svc *Service) ListPosts(ctx context.Context, params ListPostsParams) ([]*PostSummary, error) {
	posts, err := svc.postRepo.List(ctx, &params)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	return posts, nil
}

func (svc *Service) DeletePost(ctx context.Context, postID string) error {
	err := svc.postRepo.SoftDelete(ctx, postID)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	return nil
}

func (svc *Service) RestorePost(ctx context.Context, postID string) error {
	err := svc.postRepo.Restore(ctx, postID)
	if err != nil {
		return fmt.Errorf("failed to restore post: %w", err)
	}

	return nil
}

// RegisterUser creates a new anonymous player.
func (svc *Service) RegisterUser(ctx context.Context) (*User, error) {
	user := &User{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}

	err := svc.userRepo.Insert(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	return user, nil
}

type RecordGuessRequest struct {
	UserID    string
	PostID    string
	CommentID string
	Guess     string
}

// RecordGuess stores a player's call on one comment. Correctness is
// recomputed here from the stored tree; the client's opinion is never
// trusted.
func (svc *Service) RecordGuess(ctx context.Context, req RecordGuessRequest) (*Guess, error) {
	if req.Guess != GuessReddit && req.Guess != GuessReplicant {
		return nil, ErrInvalidGuess
	}

	post, err := svc.postRepo.Find(ctx, req.PostID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}

	comment := findComment(post.Round.Comments, req.CommentID)
	if comment == nil {
		return nil, CommentNotFoundError{PostID: req.PostID, CommentID: req.CommentID}
	}

	guess := &Guess{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		PostID:    req.PostID,
		CommentID: req.CommentID,
		Guess:     req.Guess,
		IsCorrect: (req.Guess == GuessReplicant) == comment.IsAI,
		GuessedAt: time.Now(),
	}

	err = svc.guessRepo.Upsert(ctx, guess)
	if err != nil {
		return nil, fmt.Errorf("failed to save guess: %w", err)
	}

	return guess, nil
}

// Progress summarizes a player's guesses on one post.
type Progress struct {
	PostID         string   `json:"post_id"`
	Guesses        []*Guess `json:"guesses"`
	CorrectGuesses int      `json:"correct_guesses"`
}

func (svc *Service) GetProgress(ctx context.Context, userID, postID string) (*Progress, error) {
	guesses, err := svc.guessRepo.ListByUserAndPost(ctx, userID, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list guesses: %w", err)
	}

	progress := &Progress{PostID: postID, Guesses: guesses}

	for _, guess := range guesses {
		if guess.IsCorrect {
			progress.CorrectGuesses++
		}
	}

	return progress, nil
}

func (svc *Service) GetAllProgress(ctx context.Context, userID string) ([]*Guess, error) {
	guesses, err := svc.guessRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list guesses: %w", err)
	}

	return guesses, nil
}

func (svc *Service) ResetProgress(ctx context.Context, userID, postID string) error {
	err := svc.guessRepo.DeleteByUserAndPost(ctx, userID, postID)
	if err != nil {
		return fmt.Errorf("failed to reset progress: %w", err)
	}

	return nil
}

// FlagObvious marks a previously guessed comment as a giveaway, feedback for
// tuning generation.
func (svc *Service) FlagObvious(ctx context.Context, userID, postID, commentID string) error {
	err := svc.guessRepo.SetFlaggedObvious(ctx, userID, postID, commentID)
	if err != nil {
		return fmt.Errorf("failed to flag comment: %w", err)
	}

	return nil
}

func (svc *Service) Stats(ctx context.Context) (*GuessStats, error) {
	stats, err := svc.guessRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	return stats, nil
}

func seedFor(postID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(postID))

	return int64(h.Sum64())
}

func findComment(comments []*reddit.Comment, id string) *reddit.Comment {
	for _, comment := range comments {
		if comment.ID == id {
			return comment
		}

		if found := findComment(comment.Replies, id); found != nil {
			return found
		}
	}

	return nil
}
