// Package web exposes the game as a JSON API.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/jkurtz678/reddit-or-replicant/game"
	"github.com/jkurtz678/reddit-or-replicant/mixer"
	"github.com/jkurtz678/reddit-or-replicant/reddit"
	"golang.org/x/crypto/bcrypt"
)

// GameService is the application surface the handler depends on. *game.Service
// is the production implementation.
type GameService interface {
	Submit(ctx context.Context, req game.SubmitRequest) (*game.Post, error)
	GetPost(ctx context.Context, postID string) (*game.Post, error)
	ListPosts(ctx context.Context, params game.ListPostsParams) ([]*game.PostSummary, error)
	DeletePost(ctx context.Context, postID string) error
	RestorePost(ctx context.Context, postID string) error
	RegisterUser(ctx context.Context) (*game.User, error)
	RecordGuess(ctx context.Context, req game.RecordGuessRequest) (*game.Guess, error)
	GetProgress(ctx context.Context, userID, postID string) (*game.Progress, error)
	GetAllProgress(ctx context.Context, userID string) ([]*game.Guess, error)
	ResetProgress(ctx context.Context, userID, postID string) error
	FlagObvious(ctx context.Context, userID, postID, commentID string) error
	Stats(ctx context.Context) (*game.GuessStats, error)
}

type Handler struct {
	mux               *http.ServeMux
	gameSvc           GameService
	cookieStore       *sessions.CookieStore
	sessionName       string
	adminPasswordHash []byte
}

var _ http.Handler = (*Handler)(nil)

func NewHandler(gameSvc GameService, cookieStore *sessions.CookieStore, sessionName string, adminPasswordHash []byte) *Handler {
	h := &Handler{
		mux:               &http.ServeMux{},
		gameSvc:           gameSvc,
		cookieStore:       cookieStore,
		sessionName:       sessionName,
		adminPasswordHash: adminPasswordHash,
	}

	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /api/posts", h.handleListPosts)
	h.mux.HandleFunc("POST /api/posts", h.handleSubmit)
	h.mux.HandleFunc("GET /api/posts/{postID}", h.handleGetPost)

	h.mux.HandleFunc("POST /api/posts/{postID}/guesses", h.handleRecordGuess)
	h.mux.HandleFunc("GET /api/posts/{postID}/progress", h.handleGetProgress)
	h.mux.HandleFunc("POST /api/posts/{postID}/progress/reset", h.handleResetProgress)
	h.mux.HandleFunc("POST /api/posts/{postID}/comments/{commentID}/flag", h.handleFlagObvious)
	h.mux.HandleFunc("GET /api/progress", h.handleGetAllProgress)

	h.mux.HandleFunc("GET /api/stats", h.handleStats)

	h.mux.HandleFunc("POST /api/admin/login", h.handleAdminLogin)
	h.mux.HandleFunc("POST /api/admin/posts/{postID}/delete", h.handleDeletePost)
	h.mux.HandleFunc("POST /api/admin/posts/{postID}/restore", h.handleRestorePost)
}

// currentUserID returns the player id held in the session, registering a new
// anonymous user on first contact.
func (h *Handler) currentUserID(w http.ResponseWriter, r *http.Request) (string, error) {
	value, err := h.getSessionValue(r, sessionUserIDKey)
	if err == nil {
		if userID, ok := value.(string); ok && userID != "" {
			return userID, nil
		}
	}

	user, err := h.gameSvc.RegisterUser(r.Context())
	if err != nil {
		return "", err
	}

	err = h.setSessionValue(w, r, sessionUserIDKey, user.ID)
	if err != nil {
		return "", err
	}

	return user.ID, nil
}

// respondServiceError maps the error taxonomy onto HTTP statuses: bad input
// is the submitter's problem, generation failures are upstream, unknown ids
// are 404.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalidURLErr       reddit.InvalidURLError
		parseErr            reddit.ParseError
		fetchErr            reddit.FetchError
		alreadyExistsErr    game.PostAlreadyExistsError
		postNotFoundErr     game.PostNotFoundError
		commentNotFoundErr  game.CommentNotFoundError
		guessNotFoundErr    game.GuessNotFoundError
		insufficientRealErr mixer.InsufficientRealCommentsError
		insufficientGenErr  mixer.InsufficientGenerationError
	)

	switch {
	case errors.As(err, &invalidURLErr):
		respondError(w, r, http.StatusBadRequest, invalidURLErr.Error())
	case errors.As(err, &parseErr):
		respondError(w, r, http.StatusBadRequest, parseErr.Error())
	case errors.Is(err, game.ErrInvalidGuess):
		respondError(w, r, http.StatusBadRequest, err.Error())
	case errors.As(err, &alreadyExistsErr):
		respondError(w, r, http.StatusConflict, alreadyExistsErr.Error())
	case errors.As(err, &postNotFoundErr):
		respondError(w, r, http.StatusNotFound, postNotFoundErr.Error())
	case errors.As(err, &commentNotFoundErr):
		respondError(w, r, http.StatusNotFound, commentNotFoundErr.Error())
	case errors.As(err, &guessNotFoundErr):
		respondError(w, r, http.StatusNotFound, guessNotFoundErr.Error())
	case errors.As(err, &insufficientRealErr):
		respondError(w, r, http.StatusUnprocessableEntity, insufficientRealErr.Error())
	case errors.As(err, &insufficientGenErr):
		respondError(w, r, http.StatusBadGateway, insufficientGenErr.Error())
	case errors.As(err, &fetchErr):
		respondError(w, r, http.StatusBadGateway, fetchErr.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed", "error", err)
		respondError(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}

type submitRequest struct {
	URL       string `json:"url"`
	Overwrite bool   `json:"overwrite"`
}

type submitResponse struct {
	ID    string      `json:"id"`
	Stats submitStats `json:"stats"`
}

type submitStats struct {
	TotalComments int `json:"total_comments"`
	AIComments    int `json:"ai_comments"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest

	err := decodeJSON(r, &req)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	post, err := h.gameSvc.Submit(r.Context(), game.SubmitRequest{
		URL:       req.URL,
		Overwrite: req.Overwrite,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusCreated, submitResponse{
		ID: post.ID,
		Stats: submitStats{
			TotalComments: post.TotalCount,
			AIComments:    post.AICount,
		},
	})
}

func (h *Handler) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.gameSvc.GetPost(r.Context(), r.PathValue("postID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	// Synthetic flags ship with the tree; hiding them until a guess is made
	// is the client's job.
	respondJSON(w, r, http.StatusOK, post.Round)
}

func (h *Handler) handleListPosts(w http.ResponseWriter, r *http.Request) {
	params := game.ListPostsParams{
		Subreddit:      r.URL.Query().Get("subreddit"),
		IncludeDeleted: r.URL.Query().Get("include_deleted") == "true" && h.isAdmin(r),
	}

	posts, err := h.gameSvc.ListPosts(r.Context(), params)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]any{"posts": posts})
}

type guessRequest struct {
	CommentID string `json:"comment_id"`
	Guess     string `json:"guess"`
}

func (h *Handler) handleRecordGuess(w http.ResponseWriter, r *http.Request) {
	var req guessRequest

	err := decodeJSON(r, &req)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := h.currentUserID(w, r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	guess, err := h.gameSvc.RecordGuess(r.Context(), game.RecordGuessRequest{
		UserID:    userID,
		PostID:    r.PathValue("postID"),
		CommentID: req.CommentID,
		Guess:     req.Guess,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, guess)
}

func (h *Handler) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := h.currentUserID(w, r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	progress, err := h.gameSvc.GetProgress(r.Context(), userID, r.PathValue("postID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, progress)
}

func (h *Handler) handleGetAllProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := h.currentUserID(w, r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	guesses, err := h.gameSvc.GetAllProgress(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]any{"progress": guesses})
}

func (h *Handler) handleResetProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := h.currentUserID(w, r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	err = h.gameSvc.ResetProgress(r.Context(), userID, r.PathValue("postID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]any{"message": "progress reset"})
}

func (h *Handler) handleFlagObvious(w http.ResponseWriter, r *http.Request) {
	userID, err := h.currentUserID(w, r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	err = h.gameSvc.FlagObvious(r.Context(), userID, r.PathValue("postID"), r.PathValue("commentID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]any{"message": "comment flagged"})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.gameSvc.Stats(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, stats)
}

type adminLoginRequest struct {
	Password string `json:"password"`
}

func (h *Handler) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest

	err := decodeJSON(r, &req)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	err = bcrypt.CompareHashAndPassword(h.adminPasswordHash, []byte(req.Password))
	if err != nil {
		respondError(w, r, http.StatusUnauthorized, "invalid admin password")
		return
	}

	err = h.setSessionValue(w, r, sessionAdminKey, true)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]any{"message": "login successful"})
}

func (h *Handler) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if !h.isAdmin(r) {
		respondError(w, r, http.StatusForbidden, "admin access required")
		return
	}

	err := h.gameSvc.DeletePost(r.Context(), r.PathValue("postID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]any{"message": "post deleted"})
}

func (h *Handler) handleRestorePost(w http.ResponseWriter, r *http.Request) {
	if !h.isAdmin(r) {
		respondError(w, r, http.StatusForbidden, "admin access required")
		return
	}

	err := h.gameSvc.RestorePost(r.Context(), r.PathValue("postID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]any{"message": "post restored"})
}
