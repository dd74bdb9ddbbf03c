package game_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jkurtz678/reddit-or-replicant/game"
	"github.com/jkurtz678/reddit-or-replicant/mixer"
	"github.com/jkurtz678/reddit-or-replicant/reddit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	thread func() (*reddit.Thread, error)
	calls  int
}

func (f *stubFetcher) FetchThread(_ context.Context, _ string) (*reddit.Thread, error) {
	f.calls++

	return f.thread()
}

// countingGenerator produces deterministic synthetic comments so repeated
// submissions of the same thread can be compared.
type countingGenerator struct {
	topLevelSizes []int
	failReplies   bool
	topLevels     int
	replies       int
}

var _ mixer.Generator = (*countingGenerator)(nil)

func (g *countingGenerator) TopLevel(_ context.Context, _ *reddit.Post, _ []*reddit.Comment, n int) ([]*reddit.Comment, error) {
	if len(g.topLevelSizes) > 0 {
		n = g.topLevelSizes[0]
		g.topLevelSizes = g.topLevelSizes[1:]
	}

	comments := make([]*reddit.Comment, 0, n)
	for range n {
		g.topLevels++
		comments = append(comments, &reddit.Comment{
			ID:      fmt.Sprintf("ai-top-%d", g.topLevels),
			Author:  fmt.Sprintf("synthetic%d", g.topLevels),
			Content: "generated comment",
			Score:   20,
		})
	}

	return comments, nil
}

func (g *countingGenerator) Reply(_ context.Context, _ *reddit.Post, _ []*reddit.Comment, parent *reddit.Comment) (*reddit.Comment, error) {
	if g.failReplies {
		return nil, errors.New("model unavailable")
	}

	g.replies++

	return &reddit.Comment{
		ID:      fmt.Sprintf("ai-reply-%d", g.replies),
		Author:  fmt.Sprintf("replier%d", g.replies),
		Content: "generated reply",
		Score:   5,
	}, nil
}

type memPostRepo struct {
	posts map[string]*game.Post
}

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{posts: map[string]*game.Post{}}
}

func (r *memPostRepo) Insert(_ context.Context, post *game.Post) error {
	r.posts[post.ID] = post

	return nil
}

func (r *memPostRepo) Update(_ context.Context, post *game.Post) error {
	if _, ok := r.posts[post.ID]; !ok {
		return game.PostNotFoundError{ID: post.ID}
	}

	r.posts[post.ID] = post

	return nil
}

func (r *memPostRepo) Find(_ context.Context, postID string) (*game.Post, error) {
	post, ok := r.posts[postID]
	if !ok {
		return nil, game.PostNotFoundError{ID: postID}
	}

	return post, nil
}

func (r *memPostRepo) FindByURL(_ context.Context, redditURL string) (*game.Post, error) {
	for _, post := range r.posts {
		if post.RedditURL == redditURL {
			return post, nil
		}
	}

	return nil, game.PostByURLNotFoundError{URL: redditURL}
}

func (r *memPostRepo) List(_ context.Context, params *game.ListPostsParams) ([]*game.PostSummary, error) {
	summaries := make([]*game.PostSummary, 0, len(r.posts))

	for _, post := range r.posts {
		if post.DeletedAt != nil && !params.IncludeDeleted {
			continue
		}

		summaries = append(summaries, &game.PostSummary{
			ID:        post.ID,
			RedditURL: post.RedditURL,
			Title:     post.Title,
			Subreddit: post.Subreddit,
			Deleted:   post.DeletedAt != nil,
		})
	}

	return summaries, nil
}

func (r *memPostRepo) SoftDelete(_ context.Context, postID string) error {
	post, ok := r.posts[postID]
	if !ok {
		return game.PostNotFoundError{ID: postID}
	}

	now := post.CreatedAt
	post.DeletedAt = &now

	return nil
}

func (r *memPostRepo) Restore(_ context.Context, postID string) error {
	post, ok := r.posts[postID]
	if !ok {
		return game.PostNotFoundError{ID: postID}
	}

	post.DeletedAt = nil

	return nil
}

type memUserRepo struct {
	users map[string]*game.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]*game.User{}}
}

func (r *memUserRepo) Insert(_ context.Context, user *game.User) error {
	r.users[user.ID] = user

	return nil
}

func (r *memUserRepo) Find(_ context.Context, userID string) (*game.User, error) {
	user, ok := r.users[userID]
	if !ok {
		return nil, game.UserNotFoundError{ID: userID}
	}

	return user, nil
}

type memGuessRepo struct {
	guesses map[string]*game.Guess
}

func newMemGuessRepo() *memGuessRepo {
	return &memGuessRepo{guesses: map[string]*game.Guess{}}
}

func guessKey(userID, postID, commentID string) string {
	return userID + "/" + postID + "/" + commentID
}

func (r *memGuessRepo) Upsert(_ context.Context, guess *game.Guess) error {
	r.guesses[guessKey(guess.UserID, guess.PostID, guess.CommentID)] = guess

	return nil
}

func (r *memGuessRepo) ListByUserAndPost(_ context.Context, userID, postID string) ([]*game.Guess, error) {
	var guesses []*game.Guess

	for _, guess := range r.guesses {
		if guess.UserID == userID && guess.PostID == postID {
			guesses = append(guesses, guess)
		}
	}

	return guesses, nil
}

func (r *memGuessRepo) ListByUser(_ context.Context, userID string) ([]*game.Guess, error) {
	var guesses []*game.Guess

	for _, guess := range r.guesses {
		if guess.UserID == userID {
			guesses = append(guesses, guess)
		}
	}

	return guesses, nil
}

func (r *memGuessRepo) DeleteByUserAndPost(_ context.Context, userID, postID string) error {
	for key, guess := range r.guesses {
		if guess.UserID == userID && guess.PostID == postID {
			delete(r.guesses, key)
		}
	}

	return nil
}

func (r *memGuessRepo) SetFlaggedObvious(_ context.Context, userID, postID, commentID string) error {
	guess, ok := r.guesses[guessKey(userID, postID, commentID)]
	if !ok {
		return game.GuessNotFoundError{UserID: userID, PostID: postID, CommentID: commentID}
	}

	guess.FlaggedObvious = true

	return nil
}

func (r *memGuessRepo) Stats(_ context.Context) (*game.GuessStats, error) {
	stats := &game.GuessStats{}

	for _, guess := range r.guesses {
		stats.TotalGuesses++
		if guess.IsCorrect {
			stats.CorrectGuesses++
		}
	}

	if stats.TotalGuesses > 0 {
		stats.Accuracy = float64(stats.CorrectGuesses) / float64(stats.TotalGuesses)
	}

	return stats, nil
}

func fetchedThread() (*reddit.Thread, error) {
	comments := make([]*reddit.Comment, 0, 10)
	for i := range 10 {
		comments = append(comments, &reddit.Comment{
			ID:      fmt.Sprintf("real-%d", i),
			Author:  fmt.Sprintf("original_author_%d", i),
			Content: fmt.Sprintf("this is real comment number %d", i),
			Score:   500 - i*40,
			Replies: []*reddit.Comment{},
		})
	}

	return &reddit.Thread{
		Post: &reddit.Post{
			ID:        "abc123",
			Title:     "AITA for rewriting the backend over a weekend?",
			Author:    "original_op",
			Subreddit: "amitheasshole",
			Content:   "It seemed like a good idea at the time.",
		},
		Comments: comments,
	}, nil
}

type fixture struct {
	svc       *game.Service
	fetcher   *stubFetcher
	postRepo  *memPostRepo
	userRepo  *memUserRepo
	guessRepo *memGuessRepo
}

func newFixture() *fixture {
	return newFixtureWithGenerator(func() *countingGenerator { return &countingGenerator{} })
}

func newFixtureWithGenerator(gen func() *countingGenerator) *fixture {
	fetcher := &stubFetcher{thread: fetchedThread}
	postRepo := newMemPostRepo()
	userRepo := newMemUserRepo()
	guessRepo := newMemGuessRepo()

	newGenerator := func(_ *rand.Rand) mixer.Generator {
		return gen()
	}

	svc := game.NewService(fetcher, newGenerator, postRepo, userRepo, guessRepo)

	return &fixture{svc: svc, fetcher: fetcher, postRepo: postRepo, userRepo: userRepo, guessRepo: guessRepo}
}

const testURL = "https://old.reddit.com/r/AmItheAsshole/comments/abc123/some_title?share=1"

const normalizedTestURL = "https://www.reddit.com/r/AmItheAsshole/comments/abc123/some_title/"

func TestSubmit(t *testing.T) {
	t.Parallel()

	f := newFixture()

	post, err := f.svc.Submit(context.Background(), game.SubmitRequest{URL: testURL})
	require.NoError(t, err)

	assert.Equal(t, normalizedTestURL, post.RedditURL)
	assert.Equal(t, "amitheasshole", post.Subreddit)
	assert.Equal(t, 16, post.TotalCount)
	assert.Equal(t, 8, post.AICount)

	require.NotNil(t, post.Round)
	assert.Equal(t, 16, reddit.Count(post.Round.Comments))
	assert.Equal(t, 8, mixer.CountSynthetic(post.Round.Comments))

	// Real authors never survive into the stored round.
	for _, comment := range reddit.Flatten(post.Round.Comments) {
		assert.NotContains(t, comment.Author, "original_author")
	}
	assert.NotEqual(t, "original_op", post.Round.Post.Author)

	stored, err := f.postRepo.Find(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, post, stored)
}

func TestSubmitRejectsDuplicateURL(t *testing.T) {
	t.Parallel()

	f := newFixture()

	_, err := f.svc.Submit(context.Background(), game.SubmitRequest{URL: testURL})
	require.NoError(t, err)

	fetchesBefore := f.fetcher.calls

	_, err = f.svc.Submit(context.Background(), game.SubmitRequest{URL: testURL})

	var existsErr game.PostAlreadyExistsError

	require.ErrorAs(t, err, &existsErr)
	assert.Equal(t, normalizedTestURL, existsErr.URL)
	assert.Equal(t, fetchesBefore, f.fetcher.calls, "duplicate submission must not refetch")
}

func TestSubmitOverwriteKeepsIdentity(t *testing.T) {
	t.Parallel()

	f := newFixture()

	first, err := f.svc.Submit(context.Background(), game.SubmitRequest{URL: testURL})
	require.NoError(t, err)

	second, err := f.svc.Submit(context.Background(), game.SubmitRequest{URL: testURL, Overwrite: true})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	// Same source thread and post id seed the same round.
	if diff := cmp.Diff(first.Round, second.Round); diff != "" {
		t.Errorf("rebuilt round differs (-first +second):\n%s", diff)
	}
}

func TestSubmitInvalidURL(t *testing.T) {
	t.Parallel()

	f := newFixture()

	_, err := f.svc.Submit(context.Background(), game.SubmitRequest{URL: "https://example.com/nope"})

	var invalidErr reddit.InvalidURLError

	require.ErrorAs(t, err, &invalidErr)
	assert.Zero(t, f.fetcher.calls)
	assert.Empty(t, f.postRepo.posts)
}

func TestSubmitFetchFailure(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.fetcher.thread = func() (*reddit.Thread, error) {
		return nil, reddit.FetchError{URL: normalizedTestURL, StatusCode: 429}
	}

	_, err := f.svc.Submit(context.Background(), game.SubmitRequest{URL: testURL})

	var fetchErr reddit.FetchError

	require.ErrorAs(t, err, &fetchErr)
	assert.Empty(t, f.postRepo.posts, "failed submissions must not persist anything")
}

func TestSubmitGenerationShortfall(t *testing.T) {
	t.Parallel()

	// The generator underdelivers on both the initial and the compensating
	// request, and replies fail entirely.
	f := newFixtureWithGenerator(func() *countingGenerator {
		return &countingGenerator{topLevelSizes: []int{1, 1}, failReplies: true}
	})

	_, err := f.svc.Submit(context.Background(), game.SubmitRequest{URL: testURL})

	var insufficientErr mixer.InsufficientGenerationError

	require.ErrorAs(t, err, &insufficientErr)
	assert.Empty(t, f.postRepo.posts, "failed submissions must not persist anything")
}

func TestSubmitThinThread(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.fetcher.thread = func() (*reddit.Thread, error) {
		thread, _ := fetchedThread()
		thread.Comments = thread.Comments[:3]

		return thread, nil
	}

	_, err := f.svc.Submit(context.Background(), game.SubmitRequest{URL: testURL})

	var insufficientErr mixer.InsufficientRealCommentsError

	require.ErrorAs(t, err, &insufficientErr)
	assert.Empty(t, f.postRepo.posts)
}

func submitTestPost(t *testing.T, f *fixture) *game.Post {
	t.Helper()

	post, err := f.svc.Submit(context.Background(), game.SubmitRequest{URL: testURL})
	require.NoError(t, err)

	return post
}

func TestRecordGuess(t *testing.T) {
	t.Parallel()

	f := newFixture()
	post := submitTestPost(t, f)

	var realID, aiID string
	for _, comment := range reddit.Flatten(post.Round.Comments) {
		if comment.IsAI {
			aiID = comment.ID
		} else {
			realID = comment.ID
		}
	}

	require.NotEmpty(t, realID)
	require.NotEmpty(t, aiID)

	tests := []struct {
		name        string
		commentID   string
		guess       string
		wantCorrect bool
	}{
		{name: "replicant on synthetic", commentID: aiID, guess: game.GuessReplicant, wantCorrect: true},
		{name: "reddit on synthetic", commentID: aiID, guess: game.GuessReddit, wantCorrect: false},
		{name: "reddit on real", commentID: realID, guess: game.GuessReddit, wantCorrect: true},
		{name: "replicant on real", commentID: realID, guess: game.GuessReplicant, wantCorrect: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guess, err := f.svc.RecordGuess(context.Background(), game.RecordGuessRequest{
				UserID:    "user-1",
				PostID:    post.ID,
				CommentID: tt.commentID,
				Guess:     tt.guess,
			})
			require.NoError(t, err)

			assert.Equal(t, tt.wantCorrect, guess.IsCorrect)
			assert.Equal(t, tt.guess, guess.Guess)
		})
	}
}

func TestRecordGuessValidation(t *testing.T) {
	t.Parallel()

	f := newFixture()
	post := submitTestPost(t, f)

	_, err := f.svc.RecordGuess(context.Background(), game.RecordGuessRequest{
		UserID: "user-1", PostID: post.ID, CommentID: "whatever", Guess: "maybe",
	})
	require.ErrorIs(t, err, game.ErrInvalidGuess)

	_, err = f.svc.RecordGuess(context.Background(), game.RecordGuessRequest{
		UserID: "user-1", PostID: post.ID, CommentID: "no-such-comment", Guess: game.GuessReddit,
	})

	var commentErr game.CommentNotFoundError

	require.ErrorAs(t, err, &commentErr)

	_, err = f.svc.RecordGuess(context.Background(), game.RecordGuessRequest{
		UserID: "user-1", PostID: "no-such-post", CommentID: "c", Guess: game.GuessReddit,
	})

	var postErr game.PostNotFoundError

	require.ErrorAs(t, err, &postErr)
}

func TestRecordGuessUpsertsLatest(t *testing.T) {
	t.Parallel()

	f := newFixture()
	post := submitTestPost(t, f)

	commentID := reddit.Flatten(post.Round.Comments)[0].ID

	_, err := f.svc.RecordGuess(context.Background(), game.RecordGuessRequest{
		UserID: "user-1", PostID: post.ID, CommentID: commentID, Guess: game.GuessReddit,
	})
	require.NoError(t, err)

	_, err = f.svc.RecordGuess(context.Background(), game.RecordGuessRequest{
		UserID: "user-1", PostID: post.ID, CommentID: commentID, Guess: game.GuessReplicant,
	})
	require.NoError(t, err)

	progress, err := f.svc.GetProgress(context.Background(), "user-1", post.ID)
	require.NoError(t, err)

	require.Len(t, progress.Guesses, 1)
	assert.Equal(t, game.GuessReplicant, progress.Guesses[0].Guess)
}

func TestGetProgress(t *testing.T) {
	t.Parallel()

	f := newFixture()
	post := submitTestPost(t, f)

	var correct, wrong int

	for i, comment := range reddit.Flatten(post.Round.Comments) {
		guess := game.GuessReddit
		if i%2 == 0 {
			guess = game.GuessReplicant
		}

		recorded, err := f.svc.RecordGuess(context.Background(), game.RecordGuessRequest{
			UserID: "user-1", PostID: post.ID, CommentID: comment.ID, Guess: guess,
		})
		require.NoError(t, err)

		if recorded.IsCorrect {
			correct++
		} else {
			wrong++
		}
	}

	progress, err := f.svc.GetProgress(context.Background(), "user-1", post.ID)
	require.NoError(t, err)

	assert.Len(t, progress.Guesses, correct+wrong)
	assert.Equal(t, correct, progress.CorrectGuesses)

	require.NoError(t, f.svc.ResetProgress(context.Background(), "user-1", post.ID))

	progress, err = f.svc.GetProgress(context.Background(), "user-1", post.ID)
	require.NoError(t, err)
	assert.Empty(t, progress.Guesses)
}

func TestFlagObvious(t *testing.T) {
	t.Parallel()

	f := newFixture()
	post := submitTestPost(t, f)

	commentID := reddit.Flatten(post.Round.Comments)[0].ID

	err := f.svc.FlagObvious(context.Background(), "user-1", post.ID, commentID)

	var notFoundErr game.GuessNotFoundError

	require.ErrorAs(t, err, &notFoundErr, "flagging requires an existing guess")

	_, err = f.svc.RecordGuess(context.Background(), game.RecordGuessRequest{
		UserID: "user-1", PostID: post.ID, CommentID: commentID, Guess: game.GuessReddit,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.FlagObvious(context.Background(), "user-1", post.ID, commentID))

	progress, err := f.svc.GetProgress(context.Background(), "user-1", post.ID)
	require.NoError(t, err)

	require.Len(t, progress.Guesses, 1)
	assert.True(t, progress.Guesses[0].FlaggedObvious)
}

func TestDeleteAndRestorePost(t *testing.T) {
	t.Parallel()

	f := newFixture()
	post := submitTestPost(t, f)

	require.NoError(t, f.svc.DeletePost(context.Background(), post.ID))

	visible, err := f.svc.ListPosts(context.Background(), game.ListPostsParams{})
	require.NoError(t, err)
	assert.Empty(t, visible)

	all, err := f.svc.ListPosts(context.Background(), game.ListPostsParams{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, f.svc.RestorePost(context.Background(), post.ID))

	visible, err = f.svc.ListPosts(context.Background(), game.ListPostsParams{})
	require.NoError(t, err)
	assert.Len(t, visible, 1)

	err = f.svc.DeletePost(context.Background(), "no-such-post")

	var notFoundErr game.PostNotFoundError

	require.ErrorAs(t, err, &notFoundErr)
}

func TestRegisterUser(t *testing.T) {
	t.Parallel()

	f := newFixture()

	user, err := f.svc.RegisterUser(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)

	found, err := f.userRepo.Find(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user, found)

	_, err = f.userRepo.Find(context.Background(), "missing")

	var notFoundErr game.UserNotFoundError

	require.ErrorAs(t, err, &notFoundErr)
}
